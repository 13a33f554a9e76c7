package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tokenized/pollr/pkg/storage"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

var (
	// ErrInvalidDBProvided is returned in the event that an uninitialized db is
	// used to perform actions against.
	ErrInvalidDBProvided = errors.New("Invalid DB provided")

	// ErrNotFound abstracts the standard not found error.
	ErrNotFound = errors.New("Entity not found")
)

// DB is the document store shared by the index and the overlay engine. Documents are addressed by
// slash separated keys and the backend is selected by the storage bucket.
type DB struct {
	lock    sync.RWMutex
	storage storage.Storage
}

// StorageConfig is geared towards "bucket" style storage, where you have a
// specific root (the Bucket).
type StorageConfig struct {
	Bucket     string
	Root       string
	MaxRetries int
	RetryDelay int // Milliseconds between retries

	Region    string
	AccessKey string
	Secret    string
}

// New returns a new DB over the storage named by the config's bucket: "memory", "standalone",
// "bolt", or otherwise an S3 bucket.
func New(sc *StorageConfig) (*DB, error) {
	if sc == nil {
		return nil, errors.Wrap(ErrInvalidDBProvided, "missing storage config")
	}

	storeConfig := storage.NewConfig(sc.Bucket, sc.Root)
	if sc.MaxRetries > 0 {
		storeConfig.MaxRetries = sc.MaxRetries
	}
	storeConfig.RetryDelay = sc.RetryDelay
	storeConfig.Region = sc.Region
	storeConfig.AccessKey = sc.AccessKey
	storeConfig.Secret = sc.Secret

	store, err := storage.CreateStorage(storeConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "create storage %s", storeConfig)
	}

	return NewWithStorage(store), nil
}

// NewWithStorage returns a DB over an existing storage.
func NewWithStorage(store storage.Storage) *DB {
	return &DB{
		storage: store,
	}
}

// StatusCheck reads a random key that can't exist, which only succeeds with a not found error
// when the storage is reachable.
func (db *DB) StatusCheck(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "platform.DB.StatusCheck")
	defer span.End()

	k := fmt.Sprintf("healthcheck/%s/%d", uuid.New(), time.Now().UnixNano())

	_, err := db.Fetch(ctx, k)
	switch errors.Cause(err) {
	case ErrNotFound:
		return nil
	case nil:
		return errors.New("Health check key exists")
	}
	return err
}

// Close closes the underlying storage. Later calls fail with ErrInvalidDBProvided.
func (db *DB) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.storage == nil {
		return nil
	}

	err := db.storage.Close()
	db.storage = nil
	return err
}

// -------------------------------------------------------------------------
// Storage

// Put writes the body at key.
func (db *DB) Put(ctx context.Context, key string, body []byte) error {
	store, unlock, err := db.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	return store.Write(ctx, key, body, nil)
}

// Fetch returns the body at key, or ErrNotFound.
func (db *DB) Fetch(ctx context.Context, key string) ([]byte, error) {
	store, unlock, err := db.acquire()
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := store.Read(ctx, key)
	if err != nil {
		return nil, translate(err)
	}

	return b, nil
}

// Remove deletes the body at key, or returns ErrNotFound.
func (db *DB) Remove(ctx context.Context, key string) error {
	store, unlock, err := db.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	return translate(store.Remove(ctx, key))
}

// Search returns the bodies directly under path in key order.
func (db *DB) Search(ctx context.Context, path string) ([][]byte, error) {
	store, unlock, err := db.acquire()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return store.Search(ctx, map[string]string{"path": path})
}

// List returns the keys directly under path.
func (db *DB) List(ctx context.Context, path string) ([]string, error) {
	store, unlock, err := db.acquire()
	if err != nil {
		return nil, err
	}
	defer unlock()

	return store.List(ctx, path)
}

// -------------------------------------------------------------------------
// JSON documents

// PutJSON writes v as a JSON document at key.
func (db *DB) PutJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal")
	}

	return db.Put(ctx, key, b)
}

// FetchJSON reads the JSON document at key into v.
func (db *DB) FetchJSON(ctx context.Context, key string, v interface{}) error {
	b, err := db.Fetch(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(b, v); err != nil {
		return errors.Wrapf(err, "unmarshal %s", key)
	}
	return nil
}

// SearchJSON decodes each JSON document directly under path, in key order, with decode.
func (db *DB) SearchJSON(ctx context.Context, path string,
	decode func(unmarshal func(v interface{}) error) error) error {

	bodies, err := db.Search(ctx, path)
	if err != nil {
		return err
	}

	for i, b := range bodies {
		body := b
		if err := decode(func(v interface{}) error {
			return json.Unmarshal(body, v)
		}); err != nil {
			return errors.Wrapf(err, "document %d under %s", i, path)
		}
	}

	return nil
}

// acquire returns the storage and holds the DB open until unlock is called.
func (db *DB) acquire() (storage.Storage, func(), error) {
	db.lock.RLock()
	if db.storage == nil {
		db.lock.RUnlock()
		return nil, nil, errors.Wrap(ErrInvalidDBProvided, "storage == nil")
	}

	return db.storage, db.lock.RUnlock, nil
}

// translate maps storage errors to DB errors.
func translate(err error) error {
	if err == storage.ErrNotFound {
		return ErrNotFound
	}
	return err
}
