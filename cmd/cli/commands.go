package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dvloznov/sales-etl/internal/app"
	"github.com/dvloznov/sales-etl/internal/config"
	"github.com/dvloznov/sales-etl/internal/generate"
	"github.com/dvloznov/sales-etl/internal/logger"
	"github.com/dvloznov/sales-etl/internal/report"
	"github.com/dvloznov/sales-etl/internal/runs"
	"github.com/dvloznov/sales-etl/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const commandTimeout = 5 * time.Minute

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "sales-etl",
		Short: "Sales ETL command line",
		Long: `
Runs the sales ETL pipeline once, prints reports from the sales store and
generates synthetic source files.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCommand(stdout, stderr),
		newReportCommand(stdout, stderr),
		newGenerateCommand(stdout, stderr),
	)
	return root
}

// setup loads configuration from the command's flags and builds the logger.
func setup(c *cobra.Command, stderr io.Writer) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(c.Flags())
	if err != nil {
		return config.Config{}, zerolog.Logger{}, err
	}
	log, err := logger.NewFromConfig(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, zerolog.Logger{}, err
	}
	return cfg, log, nil
}

// withRepository opens the configured store for the duration of fn.
func withRepository(ctx context.Context, cfg config.Config, log zerolog.Logger, fn func(repo store.Repository) error) error {
	repo, err := app.NewRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close sales store")
		}
	}()
	return fn(repo)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRunCommand(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the ETL pipeline once",
		Long: `
Extracts every source, transforms the batch and loads new records into the
configured store. Prints the run record as JSON.
`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, log, err := setup(c, stderr)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(c.Context(), commandTimeout)
			defer cancel()
			ctx = logger.WithContext(ctx, log)

			return withRepository(ctx, cfg, log, func(repo store.Repository) error {
				run, runErr := app.NewOrchestrator(cfg, repo, nil, log).Run(ctx, runs.TriggerCLI)
				if run != nil {
					if err := printJSON(stdout, run); err != nil {
						return err
					}
				}
				if runErr != nil {
					return fmt.Errorf("pipeline run failed: %w", runErr)
				}
				return nil
			})
		},
	}
}

func newReportCommand(stdout, stderr io.Writer) *cobra.Command {
	ccmd := &cobra.Command{
		Use:   "report",
		Short: "Print aggregate reports from the sales store",
	}

	sub := func(use, short string, args cobra.PositionalArgs, build func(ctx context.Context, svc *report.Service, args []string) (interface{}, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(c *cobra.Command, posArgs []string) error {
				cfg, log, err := setup(c, stderr)
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(c.Context(), commandTimeout)
				defer cancel()

				return withRepository(ctx, cfg, log, func(repo store.Repository) error {
					out, err := build(ctx, report.NewService(repo), posArgs)
					if err != nil {
						return err
					}
					return printJSON(stdout, out)
				})
			},
		}
	}

	ccmd.AddCommand(
		sub("summary", "Total revenue, average order value and transaction count", cobra.NoArgs,
			func(ctx context.Context, svc *report.Service, _ []string) (interface{}, error) {
				return svc.Summary(ctx)
			}),
		sub("anomalies", "Records flagged as anomalies", cobra.NoArgs,
			func(ctx context.Context, svc *report.Service, _ []string) (interface{}, error) {
				return svc.Anomalies(ctx)
			}),
		sub("trends", "Revenue grouped by source", cobra.NoArgs,
			func(ctx context.Context, svc *report.Service, _ []string) (interface{}, error) {
				return svc.Trends(ctx)
			}),
		sub("transaction <id>", "Look up one record by transaction ID", cobra.ExactArgs(1),
			func(ctx context.Context, svc *report.Service, args []string) (interface{}, error) {
				return svc.Transaction(ctx, args[0])
			}),
	)
	return ccmd
}

func newGenerateCommand(stdout, stderr io.Writer) *cobra.Command {
	var opts generate.Options
	ccmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic source files",
		Long: `
Writes a delimited bulk export and a JSON web transactions file into the
output directory, optionally copying both to a gs:// prefix.
`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			log, err := logger.NewFromConfig(stderr, flagString(c, "log-level"), flagString(c, "log-format"))
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(c.Context(), commandTimeout)
			defer cancel()

			res, err := generate.Generate(ctx, opts, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "CSV:  %s (%d rows)\nJSON: %s (%d records)\n", res.CSVPath, res.CSVRows, res.JSONPath, res.JSONRows)
			for _, uri := range res.UploadURIs {
				fmt.Fprintf(stdout, "Uploaded: %s\n", uri)
			}
			return nil
		},
	}

	flags := ccmd.Flags()
	flags.StringVarP(&opts.Dir, "output", "o", "data", "output dir to write to")
	flags.IntVar(&opts.CSVRecords, "csv-records", generate.DefaultCSVRecords, "number of CSV rows")
	flags.IntVar(&opts.JSONRecords, "json-records", generate.DefaultJSONRecords, "number of JSON records")
	flags.Float64Var(&opts.AnomalyRate, "anomaly-rate", generate.DefaultAnomalyRate, "chance of an inflated CSV amount")
	flags.Int64Var(&opts.Seed, "seed", 0, "random seed, 0 for time-based")
	flags.StringVar(&opts.UploadPrefix, "upload", "", "gs://bucket/prefix to copy the files to")
	return ccmd
}

func flagString(c *cobra.Command, name string) string {
	if f := c.Flags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}
