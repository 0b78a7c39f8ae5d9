// Package bolt stores documents in a bbolt database file.
package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/robalyx/wordwatch/internal/storage"
	bbolt "go.etcd.io/bbolt"
)

// Backend keeps every document as a key in one bucket.
type Backend struct {
	db     *bbolt.DB
	bucket []byte
}

// New opens (or creates) the database and its bucket.
func New(path, bucket string) (*Backend, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	b := &Backend{db: db, bucket: []byte(bucket)}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(b.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return b, nil
}

// Read implements storage.Backend.
func (b *Backend) Read(_ context.Context, name string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(b.bucket).Get([]byte(name))
		if v == nil {
			return storage.ErrNotFound
		}
		// Values are only valid for the life of the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write implements storage.Backend.
func (b *Backend) Write(_ context.Context, name string, data []byte) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(name), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Close implements storage.Backend.
func (b *Backend) Close() error {
	return b.db.Close()
}
