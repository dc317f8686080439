package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
)

const pendingBucket = "pending_sessions"

// BoltRegistry keeps pending markers in a bolt file, keyed by user id.
type BoltRegistry struct {
	db *bolt.DB
}

// OpenBoltRegistry opens (and creates if missing) the registry file at path.
func OpenBoltRegistry(path string) (*BoltRegistry, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("registry dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return NewBoltRegistry(db), nil
}

// NewBoltRegistry wraps an already open bolt database.
func NewBoltRegistry(db *bolt.DB) *BoltRegistry {
	return &BoltRegistry{db: db}
}

func (b *BoltRegistry) Set(ctx context.Context, userID, sessionID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(pendingBucket))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(userID), []byte(sessionID))
	})
}

func (b *BoltRegistry) Get(ctx context.Context, userID string) (string, error) {
	var id string
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(pendingBucket))
		// no bucket yet means nothing was ever set
		if bucket == nil {
			return nil
		}
		if v := bucket.Get([]byte(userID)); v != nil {
			id = string(v)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (b *BoltRegistry) Clear(ctx context.Context, userID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(pendingBucket))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(userID))
	})
}

func (b *BoltRegistry) Close() error {
	return b.db.Close()
}

var _ Registry = (*BoltRegistry)(nil)
