// Package blob opens extraction sources and writes generated data, from either
// the local filesystem or Google Cloud Storage.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const gcsScheme = "gs://"

// ErrNotFound is returned when the local file or GCS object does not exist.
var ErrNotFound = errors.New("blob: not found")

// IsGCSURI reports whether location points at Google Cloud Storage.
func IsGCSURI(location string) bool {
	return strings.HasPrefix(location, gcsScheme)
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object name.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Filename returns the last path element of a local path or GCS URI.
// e.g., "gs://bucket/folder/sales.csv" → "sales.csv"
func Filename(location string) string {
	if _, object, err := ParseGCSURI(location); err == nil {
		return path.Base(object)
	}
	return path.Base(location)
}

// Open returns a reader for a local path or gs:// URI. A missing file or
// object is reported as ErrNotFound. The caller must close the reader.
func Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !IsGCSURI(location) {
		f, err := os.Open(location)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("open %q: %w", location, ErrNotFound)
			}
			return nil, fmt.Errorf("open %q: %w", location, err)
		}
		return f, nil
	}

	bucket, object, err := ParseGCSURI(location)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("open %s: %w", location, ErrNotFound)
		}
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	return &gcsReader{Reader: r, client: client}, nil
}

// gcsReader closes the storage client together with the object reader.
type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (g *gcsReader) Close() error {
	rerr := g.Reader.Close()
	cerr := g.client.Close()
	if rerr != nil {
		return rerr
	}
	return cerr
}

// UploadFile uploads a local file to the given gs:// URI.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
func UploadFile(ctx context.Context, filePath, uri string) error {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy file to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}
