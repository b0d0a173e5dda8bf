package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/dvloznov/sales-etl/internal/store"
	"github.com/shopspring/decimal"
)

// Ensure type implements interface.
var _ store.Repository = (*SalesRepository)(nil)

// SalesRepository is the BigQuery implementation of store.Repository. It holds a
// shared BigQuery client to avoid creating a new connection for each operation.
type SalesRepository struct {
	client *bigquery.Client
	ref    TableRef
}

// NewSalesRepository creates a repository bound to the given table.
func NewSalesRepository(ctx context.Context, ref TableRef) (*SalesRepository, error) {
	if ref.ProjectID == "" {
		return nil, fmt.Errorf("NewSalesRepository: project ID is required")
	}
	client, err := bigquery.NewClient(ctx, ref.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewSalesRepository: creating client: %w", err)
	}
	if ref.Location != "" {
		client.Location = ref.Location
	}
	return &SalesRepository{client: client, ref: ref}, nil
}

// Close closes the BigQuery client connection.
func (r *SalesRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// EnsureSchema delegates to EnsureSalesTableWithClient with the shared client.
func (r *SalesRepository) EnsureSchema(ctx context.Context) error {
	return EnsureSalesTableWithClient(ctx, r.client, r.ref)
}

// InsertNew delegates to InsertNewWithClient with the shared client.
func (r *SalesRepository) InsertNew(ctx context.Context, txs []domain.Transaction) (int, error) {
	return InsertNewWithClient(ctx, r.client, r.ref, txs)
}

// Summary delegates to SummaryWithClient with the shared client.
func (r *SalesRepository) Summary(ctx context.Context) (store.Summary, error) {
	return SummaryWithClient(ctx, r.client, r.ref)
}

// ListAnomalies delegates to ListAnomaliesWithClient with the shared client.
func (r *SalesRepository) ListAnomalies(ctx context.Context) ([]domain.SalesRecord, error) {
	return ListAnomaliesWithClient(ctx, r.client, r.ref)
}

// TotalsBySource delegates to TotalsBySourceWithClient with the shared client.
func (r *SalesRepository) TotalsBySource(ctx context.Context) (map[domain.Source]decimal.Decimal, error) {
	return TotalsBySourceWithClient(ctx, r.client, r.ref)
}

// FindByTransactionID delegates to FindByTransactionIDWithClient with the shared client.
func (r *SalesRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.SalesRecord, error) {
	return FindByTransactionIDWithClient(ctx, r.client, r.ref, transactionID)
}
