// Package jsonfile stores the catalog as a single JSON document on disk.
//
// Reads parse the whole file; writes replace it atomically through a
// temporary file and rename. Read-modify-write cycles hold an advisory
// file lock (<path>.lock), so separate processes sharing the file, such as
// the API server and the seeder, do not interleave their writes.
package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/gofrs/flock"

	"github.com/xenking/salesvoice/internal/domain/product"
)

const lockRetryDelay = 10 * time.Millisecond

var _ product.Backend = (*Backend)(nil)

// Backend is a product.Backend backed by a JSON file.
type Backend struct {
	path string
	lock *flock.Flock
}

// New returns a Backend for the catalog file at path. The file need not exist.
func New(path string) *Backend {
	return &Backend{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the catalog file location.
func (b *Backend) Path() string {
	return b.path
}

// Load reads and parses the catalog file. A missing or empty file is an
// empty catalog.
func (b *Backend) Load(_ context.Context) ([]product.Product, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []product.Product{}, nil
		}
		return nil, errors.Wrap(err, "read catalog file")
	}
	if len(data) == 0 {
		return []product.Product{}, nil
	}
	return product.UnmarshalProducts(data)
}

// Update runs fn while holding the file lock and writes the result back if
// fn reports a change.
func (b *Backend) Update(ctx context.Context, fn product.UpdateFunc) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return errors.Wrap(err, "create catalog dir")
	}

	locked, err := b.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return errors.Wrap(err, "lock catalog file")
	}
	if !locked {
		return errors.New("catalog file is locked")
	}
	defer func() { _ = b.lock.Unlock() }()

	current, err := b.Load(ctx)
	if err != nil {
		return err
	}

	next, changed, err := fn(current)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return b.write(next)
}

func (b *Backend) write(products []product.Product) error {
	dir, base := filepath.Split(b.path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(product.MarshalProducts(products)); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write catalog")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync catalog")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close catalog")
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return errors.Wrap(err, "replace catalog file")
	}
	return nil
}
