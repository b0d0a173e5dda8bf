package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/sales-etl/internal/store"
	"github.com/rs/zerolog"
)

// PipelineStep represents a single stage of an ETL run.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps of one run.
type PipelineState struct {
	Extraction  Extraction
	Transformed Transformed
	Loaded      int
}

// Step 1: EnsureSchemaStep creates the sales table and indexes if missing.
type EnsureSchemaStep struct {
	Repo store.SalesRepository
}

func (s *EnsureSchemaStep) Name() string { return "ensure-schema" }

func (s *EnsureSchemaStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.Repo.EnsureSchema(ctx)
}

// Step 2: ExtractStep runs every extractor with per-source failure isolation.
// It never fails.
type ExtractStep struct {
	Extractors []Extractor
	Log        zerolog.Logger
}

func (s *ExtractStep) Name() string { return "extract" }

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Extraction = ExtractAll(ctx, s.Log, s.Extractors...)
	return nil
}

// Step 3: TransformStep validates, coerces and flags the extracted batch.
type TransformStep struct {
	Transformer *Transformer
}

func (s *TransformStep) Name() string { return "transform" }

func (s *TransformStep) Execute(ctx context.Context, state *PipelineState) error {
	out, err := s.Transformer.Transform(state.Extraction.Records)
	state.Transformed = out
	return err
}

// Step 4: LoadStep persists the new records of the batch.
type LoadStep struct {
	Loader *Loader
}

func (s *LoadStep) Name() string { return "load" }

func (s *LoadStep) Execute(ctx context.Context, state *PipelineState) error {
	n, err := s.Loader.Load(ctx, state.Transformed.Transactions)
	state.Loaded = n
	return err
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially, stopping at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

// NewETLPipeline creates the standard four-step pipeline:
// ensure schema, extract, transform, load.
func NewETLPipeline(repo store.SalesRepository, extractors []Extractor, transformer *Transformer, log zerolog.Logger) *Pipeline {
	return NewPipeline(
		&EnsureSchemaStep{Repo: repo},
		&ExtractStep{Extractors: extractors, Log: log},
		&TransformStep{Transformer: transformer},
		&LoadStep{Loader: NewLoader(repo, log)},
	)
}
