package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func storeFlags(t *testing.T, dir string) []string {
	t.Helper()
	csvPath := filepath.Join(dir, "sales_dump.csv")
	jsonPath := filepath.Join(dir, "web_transactions.json")
	require.NoError(t, os.WriteFile(csvPath, []byte("transaction_id,product,amount\nc1,Laptop Pro,1200.00\nc2,Enterprise Server,15000.00\nc3,Wireless Mouse,\n"), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id":"j1","item":"Ergo Chair","price":450.0}]`), 0o644))
	return []string{
		"--csv-path", csvPath,
		"--json-path", jsonPath,
		"--bolt-path", filepath.Join(dir, "sales.boltdb"),
		"--log-format", "json",
	}
}

func TestRunThenReport(t *testing.T) {
	flags := storeFlags(t, t.TempDir())

	out, err := execute(t, append([]string{"run"}, flags...)...)
	require.NoError(t, err)
	var run map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, "succeeded", run["status"])
	assert.Equal(t, "cli", run["trigger"])
	assert.Equal(t, float64(4), run["loaded"])
	assert.Equal(t, float64(1), run["dropped"])

	out, err = execute(t, append([]string{"report", "summary"}, flags...)...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_revenue":16749.00,"average_order_value":4187.25,"transaction_count":4}`, out)

	out, err = execute(t, append([]string{"report", "anomalies"}, flags...)...)
	require.NoError(t, err)
	var anomalies struct {
		Count   int `json:"anomalies_count"`
		Records []struct {
			TransactionID string `json:"transaction_id"`
		} `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &anomalies))
	require.Equal(t, 1, anomalies.Count)
	assert.Equal(t, "c2", anomalies.Records[0].TransactionID)

	out, err = execute(t, append([]string{"report", "trends"}, flags...)...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"columnar-file":16200.00,"document-file":450.00,"remote-call":99.00}`, out)

	out, err = execute(t, append([]string{"report", "transaction", "j1"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"product": "Ergo Chair"`)
}

func TestReportTransaction_NotFound(t *testing.T) {
	flags := storeFlags(t, t.TempDir())
	_, err := execute(t, append([]string{"report", "transaction", "nope"}, flags...)...)
	assert.ErrorContains(t, err, "transaction not found")
}

func TestRun_InvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "--store-driver", "sqlite")
	assert.ErrorContains(t, err, "unknown store.driver")
}

func TestGenerateThenRun(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "generate", "--output", dir, "--csv-records", "25", "--json-records", "5", "--seed", "11")
	require.NoError(t, err)
	assert.Contains(t, out, "25 rows")

	out, err = execute(t, "run",
		"--csv-path", filepath.Join(dir, "sales_dump.csv"),
		"--json-path", filepath.Join(dir, "web_transactions.json"),
		"--bolt-path", filepath.Join(dir, "sales.boltdb"),
	)
	require.NoError(t, err)
	var run map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, float64(31), run["loaded"])
}
