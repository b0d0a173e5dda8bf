// Package store defines the persistence contracts shared by the sales store
// implementations under internal/infra.
package store

import (
	"context"

	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/shopspring/decimal"
)

// SalesRepository provides the write side used by the pipeline loader.
type SalesRepository interface {
	// EnsureSchema creates the sales table and its indexes if they do not exist.
	EnsureSchema(ctx context.Context) error

	// InsertNew persists every transaction whose transaction_id is not yet stored
	// and returns how many were inserted. The whole batch is committed atomically:
	// on error nothing from the batch is visible to readers.
	InsertNew(ctx context.Context, txs []domain.Transaction) (int, error)

	// Close releases the underlying handle.
	Close() error
}

// ReportRepository provides the aggregate reads used by the reporting layer.
type ReportRepository interface {
	// Summary returns total, average and count of amount across all records.
	Summary(ctx context.Context) (Summary, error)

	// ListAnomalies returns every record flagged as an anomaly.
	ListAnomalies(ctx context.Context) ([]domain.SalesRecord, error)

	// TotalsBySource returns the sum of amount grouped by provenance tag.
	TotalsBySource(ctx context.Context) (map[domain.Source]decimal.Decimal, error)

	// FindByTransactionID returns the record with the given natural key, or nil if absent.
	FindByTransactionID(ctx context.Context, transactionID string) (*domain.SalesRecord, error)
}

// Repository is a sales store usable by both the pipeline and the reporting layer.
type Repository interface {
	SalesRepository
	ReportRepository
}

// Summary holds aggregate metrics over the stored amounts.
// An empty store yields zero values for every field.
type Summary struct {
	Total   decimal.Decimal
	Average decimal.Decimal
	Count   int64
}

// Dedupe returns txs with later duplicates of a transaction_id removed.
// The first occurrence wins, matching the per-record lookup order of the loader.
func Dedupe(txs []domain.Transaction) []domain.Transaction {
	seen := make(map[string]struct{}, len(txs))
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if _, ok := seen[tx.TransactionID]; ok {
			continue
		}
		seen[tx.TransactionID] = struct{}{}
		out = append(out, tx)
	}
	return out
}
