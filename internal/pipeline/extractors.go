package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/sales-etl/internal/blob"
	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/google/uuid"
)

// Extractor reads one source and returns its records already normalized.
// An error means the source is unavailable; ExtractAll contains it.
type Extractor interface {
	Source() domain.Source
	Extract(ctx context.Context) ([]Record, error)
}

// OpenFunc opens a source location for reading.
type OpenFunc func(ctx context.Context, location string) (io.ReadCloser, error)

func openOrDefault(open OpenFunc) OpenFunc {
	if open != nil {
		return open
	}
	return blob.Open
}

// ColumnarFileExtractor reads a delimited file with a header row.
// Extra columns are ignored; missing mapped columns make the source unavailable.
type ColumnarFileExtractor struct {
	Location string
	Open     OpenFunc
}

// NewColumnarFileExtractor creates an extractor for a local path or gs:// URI.
func NewColumnarFileExtractor(location string) *ColumnarFileExtractor {
	return &ColumnarFileExtractor{Location: location}
}

func (e *ColumnarFileExtractor) Source() domain.Source { return domain.SourceColumnarFile }

func (e *ColumnarFileExtractor) Extract(ctx context.Context) ([]Record, error) {
	rc, err := openOrDefault(e.Open)(ctx, e.Location)
	if err != nil {
		return nil, fmt.Errorf("ColumnarFileExtractor: %w", err)
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ColumnarFileExtractor: reading header of %s: %w", e.Location, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		// A repeated column name keeps its first position.
		name = strings.TrimSpace(name)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	wanted := SourceFields(e.Source())
	for _, name := range wanted {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("ColumnarFileExtractor: %s has no %q column", e.Location, name)
		}
	}

	var out []Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ColumnarFileExtractor: %s line %d: %w", e.Location, line, err)
		}

		raw := make(RawRecord, len(wanted))
		for _, name := range wanted {
			if i := index[name]; i < len(row) {
				raw[name] = row[i]
			}
		}
		rec, err := Normalize(e.Source(), raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// DocumentFileExtractor reads a JSON array of objects.
type DocumentFileExtractor struct {
	Location string
	Open     OpenFunc
}

// NewDocumentFileExtractor creates an extractor for a local path or gs:// URI.
func NewDocumentFileExtractor(location string) *DocumentFileExtractor {
	return &DocumentFileExtractor{Location: location}
}

func (e *DocumentFileExtractor) Source() domain.Source { return domain.SourceDocumentFile }

func (e *DocumentFileExtractor) Extract(ctx context.Context) ([]Record, error) {
	rc, err := openOrDefault(e.Open)(ctx, e.Location)
	if err != nil {
		return nil, fmt.Errorf("DocumentFileExtractor: %w", err)
	}
	defer rc.Close()

	dec := json.NewDecoder(rc)
	// Keep amounts as decimal text rather than float64.
	dec.UseNumber()

	var objects []map[string]interface{}
	if err := dec.Decode(&objects); err != nil {
		return nil, fmt.Errorf("DocumentFileExtractor: decoding %s: %w", e.Location, err)
	}

	out := make([]Record, 0, len(objects))
	for _, obj := range objects {
		if obj == nil {
			continue
		}
		rec, err := Normalize(e.Source(), RawRecord(obj))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// RemoteCallExtractor simulates a sales API: every call yields exactly one
// record in canonical field names with a fresh transaction ID.
type RemoteCallExtractor struct {
	NewID func() string
}

// NewRemoteCallExtractor creates a remote-call extractor that uses random UUIDs.
func NewRemoteCallExtractor() *RemoteCallExtractor {
	return &RemoteCallExtractor{NewID: uuid.NewString}
}

func (e *RemoteCallExtractor) Source() domain.Source { return domain.SourceRemoteCall }

func (e *RemoteCallExtractor) Extract(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("RemoteCallExtractor: %w", err)
	}
	newID := e.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	rec, err := Normalize(e.Source(), RawRecord{
		"transaction_id": newID(),
		"product":        RemoteProduct,
		"amount":         RemoteAmount,
		"source":         string(e.Source()),
	})
	if err != nil {
		return nil, err
	}
	return []Record{rec}, nil
}

// Ensure types implement interface.
var (
	_ Extractor = (*ColumnarFileExtractor)(nil)
	_ Extractor = (*DocumentFileExtractor)(nil)
	_ Extractor = (*RemoteCallExtractor)(nil)
)
