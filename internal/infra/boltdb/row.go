package boltdb

import (
	"encoding/json"
	"time"

	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// row is the encoded form of a sales record stored in bucketRecords.
type row struct {
	ID            uint64          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	Product       string          `json:"product"`
	Amount        decimal.Decimal `json:"amount"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	IsAnomaly     bool            `json:"is_anomaly"`
}

func newRow(id uint64, t domain.Transaction) row {
	return row{
		ID:            id,
		TransactionID: t.TransactionID,
		Product:       t.Product,
		Amount:        t.Amount,
		Source:        string(t.Source),
		Timestamp:     t.Timestamp.UTC(),
		IsAnomaly:     t.IsAnomaly,
	}
}

func decodeRow(data []byte) (row, error) {
	var r row
	if err := json.Unmarshal(data, &r); err != nil {
		return row{}, errors.Wrap(err, "decoding record")
	}
	return r, nil
}

func (r row) record() (domain.SalesRecord, error) {
	src, err := domain.ParseSource(r.Source)
	if err != nil {
		return domain.SalesRecord{}, errors.Wrapf(err, "record %d", r.ID)
	}
	return domain.SalesRecord{
		ID: r.ID,
		Transaction: domain.Transaction{
			TransactionID: r.TransactionID,
			Product:       r.Product,
			Amount:        r.Amount,
			Source:        src,
			Timestamp:     r.Timestamp,
			IsAnomaly:     r.IsAnomaly,
		},
	}, nil
}
