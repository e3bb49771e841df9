// Package memory provides an in-process catalog backend, used by tests and
// local demos.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/salesvoice/internal/domain/product"
)

var _ product.Backend = (*Backend)(nil)

// Backend keeps the catalog snapshot in memory.
type Backend struct {
	mu       sync.Mutex
	products []product.Product
	writes   int
}

// New returns a Backend seeded with products.
func New(products ...product.Product) *Backend {
	return &Backend{products: clone(products)}
}

// Load returns a copy of the current snapshot.
func (b *Backend) Load(_ context.Context) ([]product.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return clone(b.products), nil
}

// Update applies fn under the backend lock.
func (b *Backend) Update(_ context.Context, fn product.UpdateFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next, changed, err := fn(clone(b.products))
	if err != nil {
		return err
	}
	if changed {
		b.products = clone(next)
		b.writes++
	}
	return nil
}

// Writes reports how many snapshots have been written.
func (b *Backend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

func clone(products []product.Product) []product.Product {
	out := make([]product.Product, len(products))
	copy(out, products)
	return out
}
