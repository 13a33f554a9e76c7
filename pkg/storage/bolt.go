package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var boltBucket = []byte("objects")

// BoltStorage implements the Storage interface with a single bolt database file. Keys are stored
// in one bolt bucket in byte order, so paths are found with a prefix scan.
type BoltStorage struct {
	Config Config
	db     *bbolt.DB
}

// NewBoltStorage opens, or creates, the database file in the config's root.
func NewBoltStorage(config Config) (*BoltStorage, error) {
	root := config.Root
	if len(root) == 0 {
		root = "."
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrap(err, "create root")
	}

	db, err := bbolt.Open(filepath.Join(root, DefaultBoltFile), 0600,
		&bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open bolt")
	}

	err = db.Update(func(boltTx *bbolt.Tx) error {
		_, err := boltTx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create bucket")
	}

	return &BoltStorage{
		Config: config,
		db:     db,
	}, nil
}

// Write puts the data at key. Options don't apply to bolt.
func (s *BoltStorage) Write(ctx context.Context, key string, body []byte, options *Options) error {
	return s.db.Update(func(boltTx *bbolt.Tx) error {
		return boltTx.Bucket(boltBucket).Put([]byte(key), body)
	})
}

func (s *BoltStorage) Read(ctx context.Context, key string) ([]byte, error) {
	var result []byte
	err := s.db.View(func(boltTx *bbolt.Tx) error {
		v := boltTx.Bucket(boltBucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}

		// Values are only valid during the transaction.
		result = make([]byte, len(v))
		copy(result, v)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *BoltStorage) Remove(ctx context.Context, key string) error {
	return s.db.Update(func(boltTx *bbolt.Tx) error {
		b := boltTx.Bucket(boltBucket)
		if b.Get([]byte(key)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(key))
	})
}

func (s *BoltStorage) Search(ctx context.Context, query map[string]string) ([][]byte, error) {
	var result [][]byte
	err := s.db.View(func(boltTx *bbolt.Tx) error {
		return s.scan(boltTx, query["path"], func(k, v []byte) error {
			c := make([]byte, len(v))
			copy(c, v)
			result = append(result, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *BoltStorage) List(ctx context.Context, path string) ([]string, error) {
	var result []string
	err := s.db.View(func(boltTx *bbolt.Tx) error {
		return s.scan(boltTx, path, func(k, v []byte) error {
			result = append(result, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *BoltStorage) Clear(ctx context.Context, query map[string]string) error {
	return s.db.Update(func(boltTx *bbolt.Tx) error {
		var keys [][]byte
		err := s.scan(boltTx, query["path"], func(k, v []byte) error {
			c := make([]byte, len(k))
			copy(c, k)
			keys = append(keys, c)
			return nil
		})
		if err != nil {
			return err
		}

		b := boltTx.Bucket(boltBucket)
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database file.
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

// scan calls f for every key directly under path.
func (s *BoltStorage) scan(boltTx *bbolt.Tx, path string, f func(k, v []byte) error) error {
	prefix := []byte(path)
	if len(prefix) > 0 && prefix[len(prefix)-1] != '/' {
		prefix = append(prefix, '/')
	}

	c := boltTx.Bucket(boltBucket).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if bytes.IndexByte(k[len(prefix):], '/') != -1 {
			continue
		}
		if err := f(k, v); err != nil {
			return err
		}
	}

	return nil
}
