package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/dvloznov/sales-etl/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepo is a mock implementation of store.ReportRepository for testing.
type mockRepo struct {
	summary   store.Summary
	anomalies []domain.SalesRecord
	totals    map[domain.Source]decimal.Decimal
	records   map[string]domain.SalesRecord
	err       error
}

func (m *mockRepo) Summary(ctx context.Context) (store.Summary, error) { return m.summary, m.err }

func (m *mockRepo) ListAnomalies(ctx context.Context) ([]domain.SalesRecord, error) {
	return m.anomalies, m.err
}

func (m *mockRepo) TotalsBySource(ctx context.Context) (map[domain.Source]decimal.Decimal, error) {
	return m.totals, m.err
}

func (m *mockRepo) FindByTransactionID(ctx context.Context, transactionID string) (*domain.SalesRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[transactionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func TestMoney(t *testing.T) {
	tests := map[string]string{
		"0":          "0.00",
		"99":         "99.00",
		"1250.005":   "1250.01",
		"416.664":    "416.66",
		"-12.345":    "-12.35",
		"10000.0100": "10000.01",
	}
	for in, want := range tests {
		assert.Equal(t, json.Number(want), Money(decimal.RequireFromString(in)), in)
	}
}

func TestService_Summary(t *testing.T) {
	svc := NewService(&mockRepo{summary: store.Summary{
		Total:   decimal.RequireFromString("21200.01"),
		Average: decimal.RequireFromString("7066.67"),
		Count:   3,
	}})
	got, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{TotalRevenue: "21200.01", AverageOrderValue: "7066.67", TransactionCount: 3}, got)
}

func TestService_SummaryEmpty(t *testing.T) {
	got, err := NewService(&mockRepo{}).Summary(context.Background())
	require.NoError(t, err)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_revenue":0,"average_order_value":0,"transaction_count":0}`, string(data))
}

func TestService_Anomalies(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(&mockRepo{anomalies: []domain.SalesRecord{{
		ID: 2,
		Transaction: domain.Transaction{
			TransactionID: "c2", Product: "Enterprise Server", Amount: decimal.RequireFromString("10000.01"),
			Source: domain.SourceColumnarFile, Timestamp: ts, IsAnomaly: true,
		},
	}}})

	got, err := svc.Anomalies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got.Count)
	require.Len(t, got.Records, 1)
	assert.Equal(t, json.Number("10000.01"), got.Records[0].Amount)

	empty, err := NewService(&mockRepo{}).Anomalies(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, empty.Records)
	assert.Zero(t, empty.Count)
}

func TestService_Trends(t *testing.T) {
	svc := NewService(&mockRepo{totals: map[domain.Source]decimal.Decimal{
		domain.SourceDocumentFile: decimal.RequireFromString("50.0"),
		domain.SourceRemoteCall:   decimal.RequireFromString("198"),
	}})
	got, err := svc.Trends(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Trends{domain.SourceDocumentFile: "50.00", domain.SourceRemoteCall: "198.00"}, got)
}

func TestService_Transaction(t *testing.T) {
	svc := NewService(&mockRepo{records: map[string]domain.SalesRecord{
		"X": {ID: 5, Transaction: domain.Transaction{TransactionID: "X", Product: "Chair", Amount: decimal.NewFromInt(50)}},
	}})

	got, err := svc.Transaction(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.ID)
	assert.Equal(t, "Chair", got.Product)

	_, err = svc.Transaction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_PropagatesErrors(t *testing.T) {
	boom := errors.New("store offline")
	svc := NewService(&mockRepo{err: boom})

	_, err := svc.Summary(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = svc.Anomalies(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = svc.Trends(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = svc.Transaction(context.Background(), "X")
	assert.ErrorIs(t, err, boom)
}
