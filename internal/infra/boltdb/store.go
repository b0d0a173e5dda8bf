// Package boltdb contains the bbolt implementation of the sales store.
package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/sales-etl/internal/domain"
	"github.com/dvloznov/sales-etl/internal/store"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"
)

var (
	// bucketRecords maps the big-endian surrogate id to the encoded record.
	bucketRecords = []byte("sales_records")
	// bucketByTransactionID maps the natural key to the surrogate id. It is the uniqueness constraint.
	bucketByTransactionID = []byte("sales_records_by_transaction_id")
	// bucketAnomalies holds the surrogate ids of records flagged as anomalies.
	bucketAnomalies = []byte("sales_records_anomalies")
)

// bbolt rejects empty keys, so every natural key is stored with this prefix.
const naturalKeyPrefix = 't'

// Ensure type implements interface.
var _ store.Repository = &Store{}

// Store is an on-disk sales store. bbolt allows a single read-write transaction
// at a time alongside any number of read-only ones, and readers only ever see
// fully committed transactions.
type Store struct {
	db *bolt.DB

	// File path to database file.
	Path string
}

// Open opens (creating if needed) the bbolt file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open file: %s", path)
	}
	return &Store{db: db, Path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EnsureSchema creates the record bucket and both index buckets if they do not already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketByTransactionID, bucketAnomalies} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "creating bucket: %s", name)
			}
		}
		return nil
	})
}

// InsertNew writes every transaction whose natural key is absent, inside one
// read-write transaction. Any error rolls the whole batch back.
func (s *Store) InsertNew(ctx context.Context, txs []domain.Transaction) (int, error) {
	inserted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		records, byTxID, anomalies, err := buckets(tx)
		if err != nil {
			return err
		}

		for _, t := range txs {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "context")
			}

			key := naturalKey(t.TransactionID)
			if byTxID.Get(key) != nil {
				continue
			}

			seq, err := records.NextSequence()
			if err != nil {
				return errors.Wrap(err, "next sequence")
			}
			id := u64tob(seq)

			data, err := json.Marshal(newRow(seq, t))
			if err != nil {
				return errors.Wrapf(err, "encoding %q", t.TransactionID)
			}
			if err := byTxID.Put(key, id); err != nil {
				return errors.Wrapf(err, "indexing %q", t.TransactionID)
			}
			if err := records.Put(id, data); err != nil {
				return errors.Wrapf(err, "putting %q", t.TransactionID)
			}
			if t.IsAnomaly {
				if err := anomalies.Put(id, []byte{}); err != nil {
					return errors.Wrapf(err, "indexing anomaly %q", t.TransactionID)
				}
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "boltdb: insert batch")
	}
	return inserted, nil
}

// Summary scans every record and aggregates the amounts.
func (s *Store) Summary(ctx context.Context) (store.Summary, error) {
	var sum store.Summary
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketRecords)
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(_, v []byte) error {
			r, err := decodeRow(v)
			if err != nil {
				return err
			}
			sum.Total = sum.Total.Add(r.Amount)
			sum.Count++
			return nil
		})
	})
	if err != nil {
		return store.Summary{}, errors.Wrap(err, "boltdb: summary")
	}
	if sum.Count > 0 {
		sum.Average = sum.Total.Div(decimal.NewFromInt(sum.Count))
	}
	return sum, nil
}

// ListAnomalies walks the anomaly index and returns the referenced records in id order.
func (s *Store) ListAnomalies(ctx context.Context) ([]domain.SalesRecord, error) {
	var out []domain.SalesRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		idx, records := tx.Bucket(bucketAnomalies), tx.Bucket(bucketRecords)
		if idx == nil || records == nil {
			return nil
		}
		return idx.ForEach(func(id, _ []byte) error {
			v := records.Get(id)
			if v == nil {
				return errors.Errorf("anomaly index references missing record %d", btou64(id))
			}
			r, err := decodeRow(v)
			if err != nil {
				return err
			}
			rec, err := r.record()
			if err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "boltdb: list anomalies")
	}
	return out, nil
}

// TotalsBySource sums the amounts of every record per provenance tag.
func (s *Store) TotalsBySource(ctx context.Context) (map[domain.Source]decimal.Decimal, error) {
	totals := make(map[domain.Source]decimal.Decimal)
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketRecords)
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(_, v []byte) error {
			r, err := decodeRow(v)
			if err != nil {
				return err
			}
			src := domain.Source(r.Source)
			totals[src] = totals[src].Add(r.Amount)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "boltdb: totals by source")
	}
	return totals, nil
}

// FindByTransactionID looks the record up through the natural key index.
// Returns nil if no record has the given transaction_id.
func (s *Store) FindByTransactionID(ctx context.Context, transactionID string) (*domain.SalesRecord, error) {
	var out *domain.SalesRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		idx, records := tx.Bucket(bucketByTransactionID), tx.Bucket(bucketRecords)
		if idx == nil || records == nil {
			return nil
		}
		id := idx.Get(naturalKey(transactionID))
		if id == nil {
			return nil
		}
		v := records.Get(id)
		if v == nil {
			return errors.Errorf("index references missing record %d", btou64(id))
		}
		r, err := decodeRow(v)
		if err != nil {
			return err
		}
		rec, err := r.record()
		if err != nil {
			return err
		}
		out = &rec
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "boltdb: find %q", transactionID)
	}
	return out, nil
}

func buckets(tx *bolt.Tx) (records, byTxID, anomalies *bolt.Bucket, err error) {
	if records = tx.Bucket(bucketRecords); records == nil {
		return nil, nil, nil, errors.Errorf(errFmtBucketNotFound, bucketRecords)
	}
	if byTxID = tx.Bucket(bucketByTransactionID); byTxID == nil {
		return nil, nil, nil, errors.Errorf(errFmtBucketNotFound, bucketByTransactionID)
	}
	if anomalies = tx.Bucket(bucketAnomalies); anomalies == nil {
		return nil, nil, nil, errors.Errorf(errFmtBucketNotFound, bucketAnomalies)
	}
	return records, byTxID, anomalies, nil
}

const errFmtBucketNotFound = "boltdb: bucket '%s' not found"

func naturalKey(transactionID string) []byte {
	key := make([]byte, 0, len(transactionID)+1)
	key = append(key, naturalKeyPrefix)
	return append(key, transactionID...)
}

// u64tob encodes v to a big endian encoded byte slice.
func u64tob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// btou64 decodes b from a big endian encoded byte slice.
func btou64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
