package bigquery

import (
	"errors"
	"math/big"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
)

func TestToStagedRows(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	txs := []domain.Transaction{
		{TransactionID: "a", Product: "Chair", Amount: decimal.RequireFromString("50.25"), Source: domain.SourceDocumentFile, Timestamp: ts},
		{TransactionID: "b", Product: "Server", Amount: decimal.RequireFromString("50000"), Source: domain.SourceColumnarFile, Timestamp: ts, IsAnomaly: true},
	}

	rows, err := toStagedRows(txs)
	if err != nil {
		t.Fatalf("toStagedRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].Ordinal != 0 || rows[1].Ordinal != 1 {
		t.Errorf("ordinals = %d, %d, want 0, 1", rows[0].Ordinal, rows[1].Ordinal)
	}
	if got := rows[0].Amount.RatString(); got != "201/4" {
		t.Errorf("amount = %s, want 201/4", got)
	}
	if rows[0].Source != "document-file" {
		t.Errorf("source = %q, want document-file", rows[0].Source)
	}
	if rows[0].Timestamp.Location() != time.UTC {
		t.Errorf("timestamp not normalized to UTC: %v", rows[0].Timestamp)
	}
	if !rows[1].IsAnomaly {
		t.Error("anomaly flag lost")
	}
}

func TestSalesRowToRecord(t *testing.T) {
	row := &SalesRow{
		ID:            7,
		TransactionID: "X",
		Product:       "Chair",
		Amount:        big.NewRat(50, 1),
		Source:        "document-file",
		Timestamp:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	rec, err := row.toRecord()
	if err != nil {
		t.Fatalf("toRecord() error = %v", err)
	}
	if rec.ID != 7 || rec.TransactionID != "X" || rec.Product != "Chair" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if !rec.Amount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("amount = %s, want 50", rec.Amount)
	}
	if rec.Source != domain.SourceDocumentFile {
		t.Errorf("source = %q", rec.Source)
	}

	row.Source = "CSV"
	if _, err := row.toRecord(); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestRatToDecimal(t *testing.T) {
	tests := []struct {
		name string
		in   *big.Rat
		want string
	}{
		{"nil is zero", nil, "0"},
		{"integer", big.NewRat(60, 1), "60"},
		{"fraction", big.NewRat(1, 3), "0.333333333"},
		{"cents", big.NewRat(1000001, 100), "10000.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ratToDecimal(tt.in)
			if err != nil {
				t.Fatalf("ratToDecimal() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("ratToDecimal() = %s, want %s", got.String(), tt.want)
			}
		})
	}
}

func TestAffectedRows(t *testing.T) {
	if got := affectedRows(nil); got != 0 {
		t.Errorf("affectedRows(nil) = %d", got)
	}
	status := &bigquery.JobStatus{
		Statistics: &bigquery.JobStatistics{
			Details: &bigquery.QueryStatistics{NumDMLAffectedRows: 4},
		},
	}
	if got := affectedRows(status); got != 4 {
		t.Errorf("affectedRows() = %d, want 4", got)
	}
}

func TestTableRefFullName(t *testing.T) {
	ref := TableRef{ProjectID: "p", DatasetID: "sales", TableID: "sales_records"}
	if got := ref.FullName(); got != "`p.sales.sales_records`" {
		t.Errorf("FullName() = %s", got)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(&googleapi.Error{Code: http.StatusNotFound}) {
		t.Error("expected 404 to be not found")
	}
	if isNotFound(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Error("403 is not a not-found error")
	}
	if isNotFound(errors.New("boom")) {
		t.Error("plain errors are not not-found errors")
	}
	if !isAlreadyExists(&googleapi.Error{Code: http.StatusConflict}) {
		t.Error("expected 409 to be already exists")
	}
}
