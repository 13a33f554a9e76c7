package storage

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const tempSuffix = ".tmp"

// FilesystemStorage keeps each object in its own file under Root/Bucket. Key path segments
// become directories.
type FilesystemStorage struct {
	Config Config
}

func NewFilesystemStorage(config Config) *FilesystemStorage {
	return &FilesystemStorage{
		Config: config,
	}
}

// Write replaces the file atomically by writing a temp file and renaming it over the key.
func (f *FilesystemStorage) Write(ctx context.Context, key string, body []byte,
	options *Options) error {

	opts := NewOptions()
	if options != nil {
		if options.Mode != 0 {
			opts.Mode = options.Mode
		}
		if options.DirMode != 0 {
			opts.DirMode = options.DirMode
		}
	}

	filename := f.filePath(key)
	if err := os.MkdirAll(filepath.Dir(filename), opts.DirMode); err != nil {
		return errors.Wrapf(err, "create directory for %s", key)
	}

	tmp := filename + tempSuffix
	if err := ioutil.WriteFile(tmp, body, opts.Mode); err != nil {
		return errors.Wrapf(err, "write %s", key)
	}

	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "rename %s", key)
	}

	return nil
}

func (f *FilesystemStorage) Read(ctx context.Context, key string) ([]byte, error) {
	b, err := ioutil.ReadFile(f.filePath(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", key)
	}

	return b, nil
}

func (f *FilesystemStorage) Remove(ctx context.Context, key string) error {
	err := os.Remove(f.filePath(key))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "remove %s", key)
	}

	return nil
}

func (f *FilesystemStorage) Search(ctx context.Context,
	query map[string]string) ([][]byte, error) {

	keys, err := f.List(ctx, query["path"])
	if err != nil {
		return nil, err
	}

	result := make([][]byte, 0, len(keys))
	for _, key := range keys {
		b, err := f.Read(ctx, key)
		if err == ErrNotFound {
			continue // removed since listing
		}
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}

	return result, nil
}

// List returns the keys of the files directly in the directory for path, sorted by name. A
// directory that doesn't exist holds no keys.
func (f *FilesystemStorage) List(ctx context.Context, path string) ([]string, error) {
	infos, err := ioutil.ReadDir(f.filePath(path))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", path)
	}

	prefix := strings.TrimSuffix(path, "/")
	if prefix != "" {
		prefix += "/"
	}

	var keys []string
	for _, info := range infos {
		if info.IsDir() || strings.HasSuffix(info.Name(), tempSuffix) {
			continue
		}
		keys = append(keys, prefix+info.Name())
	}

	return keys, nil
}

func (f *FilesystemStorage) Clear(ctx context.Context, query map[string]string) error {
	keys, err := f.List(ctx, query["path"])
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := f.Remove(ctx, key); err != nil && err != ErrNotFound {
			return err
		}
	}

	return nil
}

func (f *FilesystemStorage) Close() error {
	return nil
}

// filePath maps a slash separated key to a path under Root/Bucket.
func (f *FilesystemStorage) filePath(key string) string {
	return filepath.Join(f.Config.Root, f.Config.Bucket, filepath.FromSlash(key))
}
