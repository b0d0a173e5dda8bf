package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an amount is present but not a number.
// It aborts the run.
var ErrInvalidAmount = errors.New("invalid amount")

// AnomalyPolicy decides whether an amount is anomalous.
type AnomalyPolicy func(amount decimal.Decimal) bool

// ThresholdPolicy flags amounts strictly greater than threshold.
func ThresholdPolicy(threshold decimal.Decimal) AnomalyPolicy {
	return func(amount decimal.Decimal) bool {
		return amount.GreaterThan(threshold)
	}
}

// Transformed is the output of one Transform call.
type Transformed struct {
	Transactions []domain.Transaction
	Dropped      int
	Anomalies    int
}

// Transformer validates, coerces and flags a batch.
type Transformer struct {
	// Now supplies the processing time stamped on every record of a batch.
	Now func() time.Time
	// IsAnomaly defaults to ThresholdPolicy(DefaultAnomalyThreshold).
	IsAnomaly AnomalyPolicy
}

// NewTransformer creates a transformer using the wall clock and the default threshold.
func NewTransformer() *Transformer {
	return &Transformer{
		Now:       time.Now,
		IsAnomaly: ThresholdPolicy(DefaultAnomalyThreshold),
	}
}

// Transform applies validation, coercion and anomaly flagging in that order.
// Records are only dropped by validation.
func (t *Transformer) Transform(batch []Record) (Transformed, error) {
	kept, dropped := Validate(batch)

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	txs, err := Coerce(kept, now().UTC())
	if err != nil {
		return Transformed{Dropped: dropped}, fmt.Errorf("Transform: %w", err)
	}

	policy := t.IsAnomaly
	if policy == nil {
		policy = ThresholdPolicy(DefaultAnomalyThreshold)
	}
	anomalies := FlagAnomalies(txs, policy)

	return Transformed{Transactions: txs, Dropped: dropped, Anomalies: anomalies}, nil
}

// Coerce converts validated records to transactions, all stamped with ts.
func Coerce(batch []Record, ts time.Time) ([]domain.Transaction, error) {
	txs := make([]domain.Transaction, 0, len(batch))
	for i, rec := range batch {
		amount, err := getDecimalField(rec.Fields, FieldAmount)
		if err != nil {
			return nil, fmt.Errorf("record %d from %s: %w", i, rec.Source, err)
		}
		txs = append(txs, domain.Transaction{
			TransactionID: getStringField(rec.Fields, FieldTransactionID),
			Product:       getStringField(rec.Fields, FieldProduct),
			Amount:        amount,
			Source:        rec.Source,
			Timestamp:     ts,
		})
	}
	return txs, nil
}

// FlagAnomalies sets IsAnomaly in place and returns how many were flagged.
func FlagAnomalies(txs []domain.Transaction, policy AnomalyPolicy) int {
	n := 0
	for i := range txs {
		txs[i].IsAnomaly = policy(txs[i].Amount)
		if txs[i].IsAnomaly {
			n++
		}
	}
	return n
}

func getStringField(m RawRecord, key string) string {
	switch val := m[key].(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func getDecimalField(m RawRecord, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Decimal{}, fmt.Errorf("missing required field %q", key)
	}
	switch val := v.(type) {
	case decimal.Decimal:
		return val, nil
	case json.Number:
		return parseAmount(val.String())
	case string:
		return parseAmount(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidAmount, val)
		}
		return decimal.NewFromFloat(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: field %q has type %T, want number", ErrInvalidAmount, key, v)
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}
