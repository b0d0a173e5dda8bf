package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/shopspring/decimal"
)

// SalesRow is one row of the sales_records table.
type SalesRow struct {
	ID            int64     `bigquery:"id"`             // REQUIRED surrogate key
	TransactionID string    `bigquery:"transaction_id"` // REQUIRED natural key, unique via MERGE
	Product       string    `bigquery:"product"`        // NULLABLE
	Amount        *big.Rat  `bigquery:"amount"`         // REQUIRED NUMERIC
	Source        string    `bigquery:"source"`         // REQUIRED
	Timestamp     time.Time `bigquery:"timestamp"`      // REQUIRED processing time
	IsAnomaly     bool      `bigquery:"is_anomaly"`     // REQUIRED
}

// stagedRow is the STRUCT element of the @rows array parameter fed to MERGE.
// Ordinal keeps the batch order so surrogate ids follow extraction order.
type stagedRow struct {
	Ordinal       int64     `bigquery:"ordinal"`
	TransactionID string    `bigquery:"transaction_id"`
	Product       string    `bigquery:"product"`
	Amount        *big.Rat  `bigquery:"amount"`
	Source        string    `bigquery:"source"`
	Timestamp     time.Time `bigquery:"timestamp"`
	IsAnomaly     bool      `bigquery:"is_anomaly"`
}

func toStagedRows(txs []domain.Transaction) ([]stagedRow, error) {
	rows := make([]stagedRow, 0, len(txs))
	for i, t := range txs {
		amount, err := decimalToRat(t.Amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %q: %w", t.TransactionID, err)
		}
		rows = append(rows, stagedRow{
			Ordinal:       int64(i),
			TransactionID: t.TransactionID,
			Product:       t.Product,
			Amount:        amount,
			Source:        string(t.Source),
			Timestamp:     t.Timestamp.UTC(),
			IsAnomaly:     t.IsAnomaly,
		})
	}
	return rows, nil
}

func (r *SalesRow) toRecord() (domain.SalesRecord, error) {
	src, err := domain.ParseSource(r.Source)
	if err != nil {
		return domain.SalesRecord{}, fmt.Errorf("row %d: %w", r.ID, err)
	}
	amount, err := ratToDecimal(r.Amount)
	if err != nil {
		return domain.SalesRecord{}, fmt.Errorf("row %d: %w", r.ID, err)
	}
	return domain.SalesRecord{
		ID: uint64(r.ID),
		Transaction: domain.Transaction{
			TransactionID: r.TransactionID,
			Product:       r.Product,
			Amount:        amount,
			Source:        src,
			Timestamp:     r.Timestamp,
			IsAnomaly:     r.IsAnomaly,
		},
	}, nil
}

// numericScale is the number of fractional digits BigQuery NUMERIC keeps.
const numericScale = 9

func decimalToRat(d decimal.Decimal) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(d.String())
	if !ok {
		return nil, fmt.Errorf("amount %s is not a rational number", d.String())
	}
	return r, nil
}

func ratToDecimal(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(r.FloatString(numericScale))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("converting NUMERIC %s: %w", r.String(), err)
	}
	return d, nil
}
