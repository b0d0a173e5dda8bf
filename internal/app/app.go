// Package app assembles the store, extractors and orchestrator from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/dvloznov/sales-etl/internal/config"
	infraBQ "github.com/dvloznov/sales-etl/internal/infra/bigquery"
	"github.com/dvloznov/sales-etl/internal/infra/boltdb"
	"github.com/dvloznov/sales-etl/internal/pipeline"
	"github.com/dvloznov/sales-etl/internal/runs"
	"github.com/dvloznov/sales-etl/internal/store"
	"github.com/rs/zerolog"
)

// NewRepository opens the sales store selected by cfg.Store.Driver.
// The caller must close it.
func NewRepository(ctx context.Context, cfg config.Config) (store.Repository, error) {
	switch cfg.Store.Driver {
	case config.DriverBolt:
		s, err := boltdb.Open(cfg.Store.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("NewRepository: %w", err)
		}
		return s, nil
	case config.DriverBigQuery:
		repo, err := infraBQ.NewSalesRepository(ctx, infraBQ.TableRef{
			ProjectID: cfg.BigQuery.Project,
			DatasetID: cfg.BigQuery.Dataset,
			TableID:   cfg.BigQuery.Table,
			Location:  cfg.BigQuery.Location,
		})
		if err != nil {
			return nil, fmt.Errorf("NewRepository: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("NewRepository: unknown store driver %q", cfg.Store.Driver)
	}
}

// NewExtractors returns the three sources in extraction order.
func NewExtractors(cfg config.Config) []pipeline.Extractor {
	return []pipeline.Extractor{
		pipeline.NewColumnarFileExtractor(cfg.Sources.CSVPath),
		pipeline.NewDocumentFileExtractor(cfg.Sources.JSONPath),
		pipeline.NewRemoteCallExtractor(),
	}
}

// NewOrchestrator wires the pipeline against repo. runStore may be nil.
func NewOrchestrator(cfg config.Config, repo store.SalesRepository, runStore runs.Store, log zerolog.Logger) *pipeline.Orchestrator {
	opts := []pipeline.Option{pipeline.WithLogger(log)}
	if runStore != nil {
		opts = append(opts, pipeline.WithRunStore(runStore))
	}
	return pipeline.NewOrchestrator(repo, NewExtractors(cfg), opts...)
}
