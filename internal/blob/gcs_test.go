package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"object at root", "gs://bucket/sales.csv", "bucket", "sales.csv", false},
		{"nested object", "gs://bucket/dumps/2024/sales.csv", "bucket", "dumps/2024/sales.csv", false},
		{"no object", "gs://bucket", "", "", true},
		{"empty object", "gs://bucket/", "", "", true},
		{"not gcs", "data/sales.csv", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI() = %q, %q, want %q, %q", bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	tests := map[string]string{
		"gs://bucket/folder/sales.csv": "sales.csv",
		"data/web_transactions.json":   "web_transactions.json",
	}
	for in, want := range tests {
		if got := Filename(in); got != want {
			t.Errorf("Filename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpen_LocalFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(p, []byte("transaction_id\nX\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rc, err := Open(context.Background(), p)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "transaction_id\nX\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestOpen_MissingLocalFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Open() error = %v, want ErrNotFound", err)
	}
}
