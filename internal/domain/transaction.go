package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Source is the provenance tag identifying which extractor produced a record.
type Source string

const (
	SourceColumnarFile Source = "columnar-file"
	SourceDocumentFile Source = "document-file"
	SourceRemoteCall   Source = "remote-call"
)

// Sources lists every known provenance tag in extraction order.
var Sources = []Source{SourceColumnarFile, SourceDocumentFile, SourceRemoteCall}

// Valid reports whether s is one of the known provenance tags.
func (s Source) Valid() bool {
	switch s {
	case SourceColumnarFile, SourceDocumentFile, SourceRemoteCall:
		return true
	}
	return false
}

// ParseSource converts a stored tag back into a Source.
func ParseSource(v string) (Source, error) {
	s := Source(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown source %q", v)
	}
	return s, nil
}

// Transaction is a canonical sales transaction after transformation.
// This is a domain struct, not a storage row; each store maps it into its own layout.
type Transaction struct {
	TransactionID string          // natural key, assigned at origin
	Product       string          // display name of the sold item
	Amount        decimal.Decimal // monetary value
	Source        Source          // provenance tag
	Timestamp     time.Time       // processing time of the batch, not the sale time
	IsAnomaly     bool            // set by the anomaly policy
}

// SalesRecord is a persisted transaction with its surrogate identifier.
type SalesRecord struct {
	ID uint64
	Transaction
}
