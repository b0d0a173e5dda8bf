package bigquery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/dvloznov/sales-etl/internal/store"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// TableRef identifies the sales table.
type TableRef struct {
	ProjectID string
	DatasetID string
	TableID   string
	Location  string
}

// FullName returns the backquoted `project.dataset.table` identifier used in SQL.
func (t TableRef) FullName() string {
	return fmt.Sprintf("`%s.%s.%s`", t.ProjectID, t.DatasetID, t.TableID)
}

// EnsureSalesTableWithClient creates the dataset and the sales_records table if
// either is missing. The table is clustered on the two lookup columns.
func EnsureSalesTableWithClient(ctx context.Context, client *bigquery.Client, ref TableRef) error {
	ds := client.DatasetInProject(ref.ProjectID, ref.DatasetID)
	if _, err := ds.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("EnsureSalesTable: dataset metadata: %w", err)
		}
		if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: ref.Location}); err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("EnsureSalesTable: creating dataset: %w", err)
		}
	}

	table := ds.Table(ref.TableID)
	if _, err := table.Metadata(ctx); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("EnsureSalesTable: table metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(SalesRow{})
	if err != nil {
		return fmt.Errorf("EnsureSalesTable: inferring schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema:     schema,
		Clustering: &bigquery.Clustering{Fields: []string{"transaction_id", "is_anomaly"}},
	}
	if err := table.Create(ctx, meta); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("EnsureSalesTable: creating table: %w", err)
	}
	return nil
}

// InsertNewWithClient loads the batch with a single MERGE statement. A DML
// statement is atomic in BigQuery, so either every new row becomes visible or none does.
func InsertNewWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, txs []domain.Transaction) (int, error) {
	txs = store.Dedupe(txs)
	if len(txs) == 0 {
		return 0, nil
	}

	rows, err := toStagedRows(txs)
	if err != nil {
		return 0, fmt.Errorf("InsertNew: staging rows: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		MERGE %[1]s T
		USING (
			SELECT
				s.transaction_id,
				s.product,
				s.amount,
				s.source,
				s.timestamp,
				s.is_anomaly,
				(SELECT IFNULL(MAX(id), 0) FROM %[1]s) + ROW_NUMBER() OVER (ORDER BY s.ordinal) AS id
			FROM UNNEST(@rows) AS s
		) S
		ON T.transaction_id = S.transaction_id
		WHEN NOT MATCHED THEN
			INSERT (id, transaction_id, product, amount, source, timestamp, is_anomaly)
			VALUES (S.id, S.transaction_id, S.product, S.amount, S.source, S.timestamp, S.is_anomaly)
	`, ref.FullName()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "rows", Value: rows},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("InsertNew: running merge: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("InsertNew: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("InsertNew: job error: %w", err)
	}

	return affectedRows(status), nil
}

func affectedRows(status *bigquery.JobStatus) int {
	if status == nil || status.Statistics == nil {
		return 0
	}
	qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics)
	if !ok {
		return 0
	}
	return int(qs.NumDMLAffectedRows)
}

// SummaryWithClient aggregates every stored amount.
func SummaryWithClient(ctx context.Context, client *bigquery.Client, ref TableRef) (store.Summary, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			IFNULL(SUM(amount), 0) AS total,
			IFNULL(AVG(amount), 0) AS average,
			COUNT(id) AS count
		FROM %s
	`, ref.FullName()))

	it, err := q.Read(ctx)
	if err != nil {
		return store.Summary{}, fmt.Errorf("Summary: query read: %w", err)
	}

	var row struct {
		Total   *big.Rat `bigquery:"total"`
		Average *big.Rat `bigquery:"average"`
		Count   int64    `bigquery:"count"`
	}
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return store.Summary{}, nil
		}
		return store.Summary{}, fmt.Errorf("Summary: reading row: %w", err)
	}

	total, err := ratToDecimal(row.Total)
	if err != nil {
		return store.Summary{}, fmt.Errorf("Summary: %w", err)
	}
	avg, err := ratToDecimal(row.Average)
	if err != nil {
		return store.Summary{}, fmt.Errorf("Summary: %w", err)
	}
	return store.Summary{Total: total, Average: avg, Count: row.Count}, nil
}

// ListAnomaliesWithClient returns every flagged record ordered by id.
func ListAnomaliesWithClient(ctx context.Context, client *bigquery.Client, ref TableRef) ([]domain.SalesRecord, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT id, transaction_id, product, amount, source, timestamp, is_anomaly
		FROM %s
		WHERE is_anomaly
		ORDER BY id
	`, ref.FullName()))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAnomalies: query read: %w", err)
	}

	var out []domain.SalesRecord
	for {
		var r SalesRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAnomalies: iter next: %w", err)
		}
		rec, err := r.toRecord()
		if err != nil {
			return nil, fmt.Errorf("ListAnomalies: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// TotalsBySourceWithClient sums amount per source tag.
func TotalsBySourceWithClient(ctx context.Context, client *bigquery.Client, ref TableRef) (map[domain.Source]decimal.Decimal, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT source, SUM(amount) AS total
		FROM %s
		GROUP BY source
	`, ref.FullName()))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("TotalsBySource: query read: %w", err)
	}

	totals := make(map[domain.Source]decimal.Decimal)
	for {
		var row struct {
			Source string   `bigquery:"source"`
			Total  *big.Rat `bigquery:"total"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("TotalsBySource: iter next: %w", err)
		}
		src, err := domain.ParseSource(row.Source)
		if err != nil {
			return nil, fmt.Errorf("TotalsBySource: %w", err)
		}
		total, err := ratToDecimal(row.Total)
		if err != nil {
			return nil, fmt.Errorf("TotalsBySource: %w", err)
		}
		totals[src] = total
	}
	return totals, nil
}

// FindByTransactionIDWithClient retrieves the record with the given natural key.
// Returns nil if no record exists.
func FindByTransactionIDWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, transactionID string) (*domain.SalesRecord, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT id, transaction_id, product, amount, source, timestamp, is_anomaly
		FROM %s
		WHERE transaction_id = @transaction_id
		LIMIT 1
	`, ref.FullName()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: transactionID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindByTransactionID: query read: %w", err)
	}

	var r SalesRow
	err = it.Next(&r)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByTransactionID: reading row: %w", err)
	}
	rec, err := r.toRecord()
	if err != nil {
		return nil, fmt.Errorf("FindByTransactionID: %w", err)
	}
	return &rec, nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func isAlreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}
