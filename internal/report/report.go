// Package report shapes stored sales data into the aggregate views served by
// the HTTP API and printed by the CLI. Monetary aggregates are rounded to 2
// decimal places and rendered as JSON numbers.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/dvloznov/sales-etl/internal/store"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a transaction ID is not stored.
var ErrNotFound = errors.New("transaction not found")

// Money renders an amount as a JSON number rounded to 2 decimal places.
func Money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// Summary is the revenue overview.
type Summary struct {
	TotalRevenue      json.Number `json:"total_revenue"`
	AverageOrderValue json.Number `json:"average_order_value"`
	TransactionCount  int64       `json:"transaction_count"`
}

// Record is the public view of a stored sales record.
type Record struct {
	ID            uint64        `json:"id"`
	TransactionID string        `json:"transaction_id"`
	Product       string        `json:"product"`
	Amount        json.Number   `json:"amount"`
	Source        domain.Source `json:"source"`
	Timestamp     time.Time     `json:"timestamp"`
	IsAnomaly     bool          `json:"is_anomaly"`
}

// NewRecord converts a stored record. The amount keeps its full precision.
func NewRecord(rec domain.SalesRecord) Record {
	return Record{
		ID:            rec.ID,
		TransactionID: rec.TransactionID,
		Product:       rec.Product,
		Amount:        json.Number(rec.Amount.String()),
		Source:        rec.Source,
		Timestamp:     rec.Timestamp,
		IsAnomaly:     rec.IsAnomaly,
	}
}

// Anomalies lists every flagged record.
type Anomalies struct {
	Count   int      `json:"anomalies_count"`
	Records []Record `json:"records"`
}

// Trends maps each source present in the store to its rounded revenue.
type Trends map[domain.Source]json.Number

// Service builds reports from a ReportRepository.
type Service struct {
	repo store.ReportRepository
}

// NewService creates a report service.
func NewService(repo store.ReportRepository) *Service {
	return &Service{repo: repo}
}

// Summary returns totals over all stored records; zeros on an empty store.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	sum, err := s.repo.Summary(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("Summary: %w", err)
	}
	return Summary{
		TotalRevenue:      Money(sum.Total),
		AverageOrderValue: Money(sum.Average),
		TransactionCount:  sum.Count,
	}, nil
}

// Anomalies returns every record flagged by the anomaly policy.
func (s *Service) Anomalies(ctx context.Context) (Anomalies, error) {
	recs, err := s.repo.ListAnomalies(ctx)
	if err != nil {
		return Anomalies{}, fmt.Errorf("Anomalies: %w", err)
	}
	out := Anomalies{Records: make([]Record, 0, len(recs))}
	for _, rec := range recs {
		out.Records = append(out.Records, NewRecord(rec))
	}
	out.Count = len(out.Records)
	return out, nil
}

// Trends returns revenue grouped by provenance tag.
func (s *Service) Trends(ctx context.Context) (Trends, error) {
	totals, err := s.repo.TotalsBySource(ctx)
	if err != nil {
		return nil, fmt.Errorf("Trends: %w", err)
	}
	out := make(Trends, len(totals))
	for src, total := range totals {
		out[src] = Money(total)
	}
	return out, nil
}

// Transaction looks up a single record by its natural key.
func (s *Service) Transaction(ctx context.Context, transactionID string) (Record, error) {
	rec, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return Record{}, fmt.Errorf("Transaction: %w", err)
	}
	if rec == nil {
		return Record{}, ErrNotFound
	}
	return NewRecord(*rec), nil
}
