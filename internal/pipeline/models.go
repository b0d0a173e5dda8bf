package pipeline

import (
	"fmt"

	"github.com/dvloznov/sales-etl/internal/domain"
)

// RawRecord is one source record in its native shape.
type RawRecord map[string]interface{}

// Record is a normalized record: canonical field names only, tagged with its provenance.
// Values keep their source types until the Transformer coerces them.
type Record struct {
	Source domain.Source
	Fields RawRecord
}

// FieldMapping renames one source field to a canonical field.
type FieldMapping struct {
	From string
	To   string
}

// SourceMappings is the per-source schema mapping table. Adding a source means
// adding an entry here; Normalize stays the same.
var SourceMappings = map[domain.Source][]FieldMapping{
	domain.SourceColumnarFile: {
		{From: "transaction_id", To: FieldTransactionID},
		{From: "product", To: FieldProduct},
		{From: "amount", To: FieldAmount},
	},
	domain.SourceDocumentFile: {
		{From: "id", To: FieldTransactionID},
		{From: "item", To: FieldProduct},
		{From: "price", To: FieldAmount},
	},
	domain.SourceRemoteCall: {
		{From: "transaction_id", To: FieldTransactionID},
		{From: "product", To: FieldProduct},
		{From: "amount", To: FieldAmount},
	},
}

// SourceFields returns the native field names a source must provide.
func SourceFields(src domain.Source) []string {
	mapping := SourceMappings[src]
	fields := make([]string, 0, len(mapping))
	for _, m := range mapping {
		fields = append(fields, m.From)
	}
	return fields
}

// Normalize maps raw onto the canonical schema using the source's mapping.
// Only mapped fields survive; a mapped field absent from raw stays absent.
func Normalize(src domain.Source, raw RawRecord) (Record, error) {
	mapping, ok := SourceMappings[src]
	if !ok {
		return Record{}, fmt.Errorf("Normalize: no field mapping for source %q", src)
	}

	fields := make(RawRecord, len(mapping))
	for _, m := range mapping {
		if v, ok := raw[m.From]; ok {
			fields[m.To] = v
		}
	}
	return Record{Source: src, Fields: fields}, nil
}
