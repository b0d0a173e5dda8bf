// Package generate writes synthetic sales source files for local runs and demos.
package generate

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/sales-etl/internal/blob"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	CSVFilename  = "sales_dump.csv"
	JSONFilename = "web_transactions.json"

	DefaultCSVRecords  = 1000
	DefaultJSONRecords = 200

	// DefaultAnomalyRate is the chance that a CSV amount is inflated by AnomalyMultiplier.
	DefaultAnomalyRate = 0.01
	AnomalyMultiplier  = 100
)

const (
	csvDateLayout  = "2006-01-02 15:04:05"
	jsonTimeLayout = "2006-01-02T15:04:05"
)

// Product is a catalog entry with its list price.
type Product struct {
	Name  string
	Price decimal.Decimal
}

// Catalog is the fixed product list sampled by the generator.
var Catalog = []Product{
	{"Laptop Pro", decimal.NewFromInt(1200)},
	{"Wireless Mouse", decimal.NewFromInt(25)},
	{"HD Monitor", decimal.NewFromInt(300)},
	{"Mechanical Keyboard", decimal.NewFromInt(150)},
	{"USB-C Hub", decimal.NewFromInt(45)},
	{"Ergo Chair", decimal.NewFromInt(450)},
	{"Enterprise Server", decimal.NewFromInt(15000)},
	{"SaaS License (Yearly)", decimal.NewFromInt(999)},
}

var (
	regions       = []string{"NA", "EU", "APAC", "LATAM"}
	customerTypes = []string{"Guest", "Premium", "Standard"}

	csvStart = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
)

var csvHeader = []string{"transaction_id", "date", "product", "category", "region", "amount"}

// CSVRow is one line of the bulk export file.
type CSVRow struct {
	TransactionID string
	Date          time.Time
	Product       string
	Category      string
	Region        string
	Amount        decimal.Decimal
}

// JSONRecord is one entry of the web transactions file.
type JSONRecord struct {
	ID           string      `json:"id"`
	Timestamp    string      `json:"timestamp"`
	Item         string      `json:"item"`
	CustomerType string      `json:"customer_type"`
	Price        json.Number `json:"price"`
}

// UploadFunc copies a local file to a remote URI.
type UploadFunc func(ctx context.Context, filePath, uri string) error

// Options controls a generation run.
type Options struct {
	// Dir receives both files. It is created if missing.
	Dir string

	CSVRecords  int
	JSONRecords int
	AnomalyRate float64

	// Seed makes the output reproducible. Zero picks a time-based seed.
	Seed int64

	// UploadPrefix, when set, is a gs://bucket/prefix the files are copied to.
	UploadPrefix string
}

// Generator produces synthetic rows from a seeded source.
type Generator struct {
	rng         *rand.Rand
	now         time.Time
	anomalyRate float64

	// Upload defaults to blob.UploadFile.
	Upload UploadFunc
}

// New returns a generator. Output is a pure function of seed and now.
func New(seed int64, now time.Time, anomalyRate float64) *Generator {
	return &Generator{
		rng:         rand.New(rand.NewSource(seed)),
		now:         now.UTC(),
		anomalyRate: anomalyRate,
		Upload:      blob.UploadFile,
	}
}

func (g *Generator) newID() string {
	id, err := uuid.NewRandomFromReader(g.rng)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (g *Generator) product() Product {
	return Catalog[g.rng.Intn(len(Catalog))]
}

// randomTime picks a day in [start, now) and a second within that day.
func (g *Generator) randomTime(start time.Time) time.Time {
	days := int(g.now.Sub(start).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return start.AddDate(0, 0, g.rng.Intn(days)).Add(time.Duration(g.rng.Intn(86400)) * time.Second)
}

func category(product string) string {
	if strings.Contains(product, "Server") || strings.Contains(product, "Laptop") {
		return "Hardware"
	}
	return "Accessory"
}

// CSVRows generates n bulk export rows with price variance and occasional anomalies.
func (g *Generator) CSVRows(n int) []CSVRow {
	rows := make([]CSVRow, 0, n)
	for i := 0; i < n; i++ {
		p := g.product()
		variance := decimal.NewFromFloat(0.9 + 0.2*g.rng.Float64())
		amount := p.Price.Mul(variance).Round(2)
		if g.rng.Float64() < g.anomalyRate {
			amount = amount.Mul(decimal.NewFromInt(AnomalyMultiplier))
		}

		rows = append(rows, CSVRow{
			TransactionID: g.newID(),
			Date:          g.randomTime(csvStart),
			Product:       p.Name,
			Category:      category(p.Name),
			Region:        regions[g.rng.Intn(len(regions))],
			Amount:        amount,
		})
	}
	return rows
}

// JSONRecords generates n web transactions from the last seven days at list price.
func (g *Generator) JSONRecords(n int) []JSONRecord {
	recs := make([]JSONRecord, 0, n)
	start := g.now.AddDate(0, 0, -7)
	for i := 0; i < n; i++ {
		p := g.product()
		recs = append(recs, JSONRecord{
			ID:           g.newID(),
			Timestamp:    g.randomTime(start).Format(jsonTimeLayout),
			Item:         p.Name,
			CustomerType: customerTypes[g.rng.Intn(len(customerTypes))],
			Price:        json.Number(p.Price.StringFixed(2)),
		})
	}
	return recs
}

// WriteCSV writes the header and rows.
func WriteCSV(w io.Writer, rows []CSVRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("WriteCSV: header: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.TransactionID, r.Date.Format(csvDateLayout), r.Product, r.Category, r.Region, r.Amount.StringFixed(2)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("WriteCSV: row %s: %w", r.TransactionID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return nil
}

// WriteJSON writes recs as an indented JSON array.
func WriteJSON(w io.Writer, recs []JSONRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("WriteJSON: %w", err)
	}
	return nil
}

// Result lists where the generated files ended up.
type Result struct {
	CSVPath    string
	JSONPath   string
	CSVRows    int
	JSONRows   int
	UploadURIs []string
}

// Run writes both source files into opts.Dir and optionally uploads them.
func (g *Generator) Run(ctx context.Context, opts Options, log zerolog.Logger) (Result, error) {
	if opts.Dir == "" {
		opts.Dir = "data"
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("Run: create dir %q: %w", opts.Dir, err)
	}

	res := Result{
		CSVPath:  filepath.Join(opts.Dir, CSVFilename),
		JSONPath: filepath.Join(opts.Dir, JSONFilename),
		CSVRows:  opts.CSVRecords,
		JSONRows: opts.JSONRecords,
	}

	log.Info().Int("records", opts.CSVRecords).Msg("Generating CSV records")
	if err := writeFile(res.CSVPath, func(w io.Writer) error { return WriteCSV(w, g.CSVRows(opts.CSVRecords)) }); err != nil {
		return Result{}, err
	}
	log.Info().Str("path", res.CSVPath).Msg("CSV saved")

	log.Info().Int("records", opts.JSONRecords).Msg("Generating JSON records")
	if err := writeFile(res.JSONPath, func(w io.Writer) error { return WriteJSON(w, g.JSONRecords(opts.JSONRecords)) }); err != nil {
		return Result{}, err
	}
	log.Info().Str("path", res.JSONPath).Msg("JSON saved")

	if opts.UploadPrefix == "" {
		return res, nil
	}
	prefix := strings.TrimSuffix(opts.UploadPrefix, "/")
	for _, p := range []string{res.CSVPath, res.JSONPath} {
		uri := prefix + "/" + filepath.Base(p)
		if err := g.Upload(ctx, p, uri); err != nil {
			return res, fmt.Errorf("Run: upload %s: %w", p, err)
		}
		log.Info().Str("path", p).Str("gcs_uri", uri).Msg("Uploaded")
		res.UploadURIs = append(res.UploadURIs, uri)
	}
	return res, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writeFile: create %q: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writeFile: close %q: %w", path, err)
	}
	return nil
}

// Generate runs a generator built from opts, filling in defaults.
func Generate(ctx context.Context, opts Options, log zerolog.Logger) (Result, error) {
	if opts.CSVRecords <= 0 {
		opts.CSVRecords = DefaultCSVRecords
	}
	if opts.JSONRecords <= 0 {
		opts.JSONRecords = DefaultJSONRecords
	}
	if opts.AnomalyRate <= 0 {
		opts.AnomalyRate = DefaultAnomalyRate
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.UploadPrefix != "" && !blob.IsGCSURI(opts.UploadPrefix) {
		return Result{}, fmt.Errorf("Generate: upload prefix must be a gs:// URI, got %q", opts.UploadPrefix)
	}
	return New(opts.Seed, time.Now(), opts.AnomalyRate).Run(ctx, opts, log)
}
