package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/dvloznov/sales-etl/internal/store"
	"github.com/rs/zerolog"
)

// Loader writes a transformed batch through the store's idempotent insert.
// The store commits the batch as one unit and skips natural keys it already holds.
type Loader struct {
	repo store.SalesRepository
	log  zerolog.Logger
}

// NewLoader creates a loader over the given store handle.
func NewLoader(repo store.SalesRepository, log zerolog.Logger) *Loader {
	return &Loader{repo: repo, log: log}
}

// Load returns the number of newly inserted records. On error nothing from
// the batch is persisted; the error is logged here and returned for run reporting.
func (l *Loader) Load(ctx context.Context, txs []domain.Transaction) (int, error) {
	if len(txs) == 0 {
		l.log.Info().Msg("Nothing to load")
		return 0, nil
	}

	n, err := l.repo.InsertNew(ctx, txs)
	if err != nil {
		l.log.Error().Err(err).Int("batch_size", len(txs)).Msg("Load failed, batch rolled back")
		return 0, fmt.Errorf("Load: %w", err)
	}

	l.log.Info().Int("loaded", n).Int("skipped", len(txs)-n).Msg("Load committed")
	return n, nil
}
