// Package storage provides "bucket" style key/value storage. Keys are slash separated paths and
// objects are opaque byte slices.
package storage

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const (
	// BucketStandalone selects storage on the local filesystem.
	BucketStandalone = "standalone"

	// BucketBolt selects a single bolt database file under the root.
	BucketBolt = "bolt"

	// BucketMemory selects non persistent in memory storage.
	BucketMemory = "memory"
)

var (
	// ErrNotFound is returned when there is no object at a key.
	ErrNotFound = errors.New("Not found")
)

// Storage is implemented by every storage backend.
type Storage interface {
	Write(ctx context.Context, key string, body []byte, options *Options) error
	Read(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error

	// Search returns the objects directly under the "path" value of the query, in key order.
	Search(ctx context.Context, query map[string]string) ([][]byte, error)

	// List returns the keys of the objects directly under path, in order.
	List(ctx context.Context, path string) ([]string, error)

	// Clear removes the objects directly under the "path" value of the query.
	Clear(ctx context.Context, query map[string]string) error

	Close() error
}

// Options are applied to a write.
type Options struct {
	// TTL is the number of seconds before the object expires. Zero is no expiry.
	TTL int64

	Mode    os.FileMode
	DirMode os.FileMode
}

// NewOptions returns the default write options.
func NewOptions() Options {
	return Options{
		Mode:    0644,
		DirMode: 0755,
	}
}

// CreateStorage returns the storage selected by the config's bucket. Any bucket name that isn't one
// of the local backends is treated as an S3 bucket.
func CreateStorage(config Config) (Storage, error) {
	switch config.Backend() {
	case BucketMemory:
		return NewMockStorage(), nil
	case BucketStandalone:
		return NewFilesystemStorage(config), nil
	case BucketBolt:
		return NewBoltStorage(config)
	}

	s3Storage, err := NewS3Storage(config)
	if err != nil {
		return nil, err
	}
	return s3Storage, nil
}

// childKeys returns the keys that are directly under path.
func childKeys(keys []string, path string) []string {
	prefix := strings.TrimSuffix(path, "/")
	if len(prefix) > 0 {
		prefix += "/"
	}

	var result []string
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if strings.Contains(key[len(prefix):], "/") {
			continue
		}
		result = append(result, key)
	}

	return result
}
