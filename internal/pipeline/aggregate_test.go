package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/rs/zerolog"
)

// mockExtractor is a mock for testing extraction.
type mockExtractor struct {
	source      domain.Source
	ExtractFunc func(ctx context.Context) ([]Record, error)
}

func (m *mockExtractor) Source() domain.Source { return m.source }

func (m *mockExtractor) Extract(ctx context.Context) ([]Record, error) {
	return m.ExtractFunc(ctx)
}

func records(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{Fields: RawRecord{FieldAmount: "1"}}
	}
	return out
}

func TestExtractAll_IsolatesFailures(t *testing.T) {
	buf := &bytes.Buffer{}
	log := zerolog.New(buf)

	var order []domain.Source
	track := func(src domain.Source, f func(ctx context.Context) ([]Record, error)) *mockExtractor {
		return &mockExtractor{source: src, ExtractFunc: func(ctx context.Context) ([]Record, error) {
			order = append(order, src)
			return f(ctx)
		}}
	}

	ex := ExtractAll(context.Background(), log,
		track(domain.SourceColumnarFile, func(ctx context.Context) ([]Record, error) { return records(2), nil }),
		track(domain.SourceDocumentFile, func(ctx context.Context) ([]Record, error) { return nil, errors.New("file not found") }),
		track(domain.SourceRemoteCall, func(ctx context.Context) ([]Record, error) { return records(1), nil }),
	)

	if len(ex.Records) != 3 {
		t.Errorf("len(Records) = %d, want 3", len(ex.Records))
	}
	if len(order) != 3 {
		t.Errorf("every extractor should run, got %v", order)
	}
	if len(ex.Failed) != 1 || ex.Failed[0] != domain.SourceDocumentFile {
		t.Errorf("Failed = %v", ex.Failed)
	}
	if ex.Counts[domain.SourceColumnarFile] != 2 || ex.Counts[domain.SourceDocumentFile] != 0 || ex.Counts[domain.SourceRemoteCall] != 1 {
		t.Errorf("Counts = %v", ex.Counts)
	}
	if !strings.Contains(buf.String(), "Source unavailable") || !strings.Contains(buf.String(), "document-file") {
		t.Errorf("expected a warning for the failed source, got %s", buf.String())
	}
}

func TestExtractAll_TagsProvenance(t *testing.T) {
	ex := ExtractAll(context.Background(), zerolog.Nop(),
		&mockExtractor{source: domain.SourceDocumentFile, ExtractFunc: func(ctx context.Context) ([]Record, error) {
			return []Record{{Source: domain.SourceColumnarFile, Fields: RawRecord{}}}, nil
		}},
	)
	if ex.Records[0].Source != domain.SourceDocumentFile {
		t.Errorf("Source = %q, want the extractor's tag", ex.Records[0].Source)
	}
}

func TestExtractAll_RecoversPanics(t *testing.T) {
	ex := ExtractAll(context.Background(), zerolog.Nop(),
		&mockExtractor{source: domain.SourceColumnarFile, ExtractFunc: func(ctx context.Context) ([]Record, error) {
			panic("corrupt reader")
		}},
		&mockExtractor{source: domain.SourceRemoteCall, ExtractFunc: func(ctx context.Context) ([]Record, error) {
			return records(1), nil
		}},
	)
	if len(ex.Records) != 1 || len(ex.Failed) != 1 || ex.Failed[0] != domain.SourceColumnarFile {
		t.Errorf("unexpected extraction %+v", ex)
	}
}

func TestExtractAll_AllEmpty(t *testing.T) {
	empty := func(ctx context.Context) ([]Record, error) { return nil, nil }
	ex := ExtractAll(context.Background(), zerolog.Nop(),
		&mockExtractor{source: domain.SourceColumnarFile, ExtractFunc: empty},
		&mockExtractor{source: domain.SourceDocumentFile, ExtractFunc: empty},
	)
	if len(ex.Records) != 0 || len(ex.Failed) != 0 {
		t.Errorf("expected empty batch without failures, got %+v", ex)
	}

	ex = ExtractAll(context.Background(), zerolog.Nop())
	if len(ex.Records) != 0 {
		t.Errorf("no extractors should give an empty batch")
	}
}
