// Package config loads service settings from defaults, an optional config
// file, SALES_ETL_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SALES_ETL"

// DefaultRunHistory is the number of pipeline runs the API keeps in memory.
const DefaultRunHistory = 500

// Supported store drivers.
const (
	DriverBolt     = "bolt"
	DriverBigQuery = "bigquery"
)

// Config is the full service configuration.
type Config struct {
	Sources  SourcesConfig  `mapstructure:"sources"`
	Store    StoreConfig    `mapstructure:"store"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Runs     RunsConfig     `mapstructure:"runs"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
}

// SourcesConfig locates the file sources. Each may be a local path or a gs:// URI.
type SourcesConfig struct {
	CSVPath  string `mapstructure:"csv_path"`
	JSONPath string `mapstructure:"json_path"`
}

type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	BoltPath string `mapstructure:"bolt_path"`
}

type BigQueryConfig struct {
	Project  string `mapstructure:"project"`
	Dataset  string `mapstructure:"dataset"`
	Table    string `mapstructure:"table"`
	Location string `mapstructure:"location"`
}

type ScheduleConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// RunsConfig sizes the in-memory run history.
type RunsConfig struct {
	History int `mapstructure:"history"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]interface{}{
	"sources.csv_path":      "data/sales_dump.csv",
	"sources.json_path":     "data/web_transactions.json",
	"store.driver":          DriverBolt,
	"store.bolt_path":       "data/sales.boltdb",
	"bigquery.project":      "",
	"bigquery.dataset":      "sales",
	"bigquery.table":        "sales_records",
	"bigquery.location":     "",
	"schedule.interval":     time.Minute,
	"schedule.run_on_start": true,
	"runs.history":          DefaultRunHistory,
	"http.addr":             "127.0.0.1:8000",
	"log.level":             "info",
	"log.format":            "console",
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"csv-path":     "sources.csv_path",
	"json-path":    "sources.json_path",
	"store-driver": "store.driver",
	"bolt-path":    "store.bolt_path",
	"bq-project":   "bigquery.project",
	"bq-dataset":   "bigquery.dataset",
	"bq-table":     "bigquery.table",
	"bq-location":  "bigquery.location",
	"interval":     "schedule.interval",
	"run-on-start": "schedule.run_on_start",
	"run-history":  "runs.history",
	"http-addr":    "http.addr",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// RegisterFlags defines the configuration flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Config file (toml, yaml or json)")
	fs.String("csv-path", "data/sales_dump.csv", "Delimited sales source (path or gs:// URI)")
	fs.String("json-path", "data/web_transactions.json", "Document sales source (path or gs:// URI)")
	fs.String("store-driver", DriverBolt, "Sales store driver: bolt or bigquery")
	fs.String("bolt-path", "data/sales.boltdb", "Bolt database file")
	fs.String("bq-project", "", "BigQuery project ID")
	fs.String("bq-dataset", "sales", "BigQuery dataset")
	fs.String("bq-table", "sales_records", "BigQuery table")
	fs.String("bq-location", "", "BigQuery location, e.g. EU")
	fs.Duration("interval", time.Minute, "Pipeline schedule interval")
	fs.Bool("run-on-start", true, "Run the pipeline once at startup")
	fs.Int("run-history", DefaultRunHistory, "Number of pipeline runs kept in memory")
	fs.String("http-addr", "127.0.0.1:8000", "HTTP listen address")
	fs.String("log-level", "info", "Log level")
	fs.String("log-format", "console", "Log format: console or json")
}

// Load resolves the configuration. fs may be nil; flags not registered on fs are ignored.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("Load: binding flag %q: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("Load: reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("Load: decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverBolt:
		if c.Store.BoltPath == "" {
			return fmt.Errorf("config: store.bolt_path is required for the bolt driver")
		}
	case DriverBigQuery:
		if c.BigQuery.Project == "" {
			return fmt.Errorf("config: bigquery.project is required for the bigquery driver")
		}
		if c.BigQuery.Dataset == "" || c.BigQuery.Table == "" {
			return fmt.Errorf("config: bigquery.dataset and bigquery.table are required")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q (want %s or %s)", c.Store.Driver, DriverBolt, DriverBigQuery)
	}
	if c.Schedule.Interval <= 0 {
		return fmt.Errorf("config: schedule.interval must be positive, got %s", c.Schedule.Interval)
	}
	if c.Runs.History <= 0 {
		return fmt.Errorf("config: runs.history must be positive, got %d", c.Runs.History)
	}
	if c.Sources.CSVPath == "" || c.Sources.JSONPath == "" {
		return fmt.Errorf("config: sources.csv_path and sources.json_path are required")
	}
	return nil
}
