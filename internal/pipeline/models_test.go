package pipeline

import (
	"testing"

	"github.com/dvloznov/sales-etl/internal/domain"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		source domain.Source
		raw    RawRecord
		want   RawRecord
	}{
		{
			name:   "document fields are renamed",
			source: domain.SourceDocumentFile,
			raw:    RawRecord{"id": "X", "item": "Chair", "price": 50.0},
			want:   RawRecord{FieldTransactionID: "X", FieldProduct: "Chair", FieldAmount: 50.0},
		},
		{
			name:   "unmapped fields are dropped",
			source: domain.SourceColumnarFile,
			raw:    RawRecord{"transaction_id": "c1", "product": "Mouse", "amount": "25.50", "region": "EU", "date": "2024-01-01"},
			want:   RawRecord{FieldTransactionID: "c1", FieldProduct: "Mouse", FieldAmount: "25.50"},
		},
		{
			name:   "remote source tag field is not carried",
			source: domain.SourceRemoteCall,
			raw:    RawRecord{"transaction_id": "r1", "product": "SaaS Subscription", "amount": "99.00", "source": "remote-call"},
			want:   RawRecord{FieldTransactionID: "r1", FieldProduct: "SaaS Subscription", FieldAmount: "99.00"},
		},
		{
			name:   "absent mapped field stays absent",
			source: domain.SourceDocumentFile,
			raw:    RawRecord{"id": "X", "item": "Chair"},
			want:   RawRecord{FieldTransactionID: "X", FieldProduct: "Chair"},
		},
		{
			name:   "document source ignores canonical names",
			source: domain.SourceDocumentFile,
			raw:    RawRecord{"transaction_id": "X", "price": 1.0},
			want:   RawRecord{FieldAmount: 1.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.source, tt.raw)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if got.Source != tt.source {
				t.Errorf("Source = %q, want %q", got.Source, tt.source)
			}
			if len(got.Fields) != len(tt.want) {
				t.Fatalf("Fields = %v, want %v", got.Fields, tt.want)
			}
			for k, v := range tt.want {
				if got.Fields[k] != v {
					t.Errorf("Fields[%q] = %v, want %v", k, got.Fields[k], v)
				}
			}
		})
	}
}

func TestNormalize_UnknownSource(t *testing.T) {
	if _, err := Normalize(domain.Source("ftp"), RawRecord{"id": "1"}); err == nil {
		t.Error("expected error for source without a mapping")
	}
}

func TestSourceMappings_CoverEverySource(t *testing.T) {
	for _, src := range domain.Sources {
		mapping, ok := SourceMappings[src]
		if !ok {
			t.Errorf("no mapping for %q", src)
			continue
		}
		targets := map[string]bool{}
		for _, m := range mapping {
			targets[m.To] = true
		}
		for _, f := range []string{FieldTransactionID, FieldProduct, FieldAmount} {
			if !targets[f] {
				t.Errorf("%q mapping does not produce %q", src, f)
			}
		}
	}
}
