package product

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

// UpdateFunc mutates a catalog snapshot. It returns the snapshot to persist
// and whether anything changed; unchanged snapshots are not written back.
// Backends may call it more than once when a concurrent writer wins a race.
type UpdateFunc func(current []Product) (next []Product, changed bool, err error)

// Backend is the durable storage behind a Catalog. It always deals in whole
// snapshots: the catalog is read in full and written in full.
type Backend interface {
	// Load returns the stored snapshot. Absent storage yields an empty
	// snapshot and no error.
	Load(ctx context.Context) ([]Product, error)
	// Update runs fn as one read-modify-write, isolated from other
	// Update calls on the same storage.
	Update(ctx context.Context, fn UpdateFunc) error
}

var _ Repository = (*Catalog)(nil)

// Catalog implements Repository over a snapshot Backend. Nothing is cached:
// every call re-reads the backend.
type Catalog struct {
	backend Backend

	// mu serializes stock decrements issued through this Catalog so two
	// orders in one process cannot both pass the stock check.
	mu sync.Mutex
}

// NewCatalog returns a Catalog reading and writing through backend.
func NewCatalog(backend Backend) *Catalog {
	return &Catalog{backend: backend}
}

// List returns every product in catalog order.
func (c *Catalog) List(ctx context.Context) ([]Product, error) {
	products, err := c.backend.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// Search returns the products matching q. No match yields an empty slice.
func (c *Catalog) Search(ctx context.Context, q Query) ([]Product, error) {
	products, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if q.Match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetByID performs a linear lookup by product id.
func (c *Catalog) GetByID(ctx context.Context, id string) (*Product, error) {
	products, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == id {
			return &products[i], nil
		}
	}
	return nil, ErrNotFound
}

// DecrementStock re-reads the catalog, and when the product holds at least
// quantity units, subtracts them and writes the whole catalog back.
// Non-positive quantities are refused without a write.
func (c *Catalog) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var ok bool
	err := c.backend.Update(ctx, func(current []Product) ([]Product, bool, error) {
		ok = false
		for i := range current {
			if current[i].ID != id {
				continue
			}
			if current[i].Stock < quantity {
				return current, false, nil
			}
			current[i].Stock -= quantity
			ok = true
			return current, true, nil
		}
		return current, false, nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "decrement stock of %s", id)
	}
	return ok, nil
}

// Replace overwrites the stored catalog with products. Invalid catalogs are
// rejected before anything is written.
func (c *Catalog) Replace(ctx context.Context, products []Product) error {
	if err := ValidateAll(products); err != nil {
		return errors.Wrap(err, "replace catalog")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Product, len(products))
	copy(next, products)
	err := c.backend.Update(ctx, func([]Product) ([]Product, bool, error) {
		return next, true, nil
	})
	if err != nil {
		return errors.Wrap(err, "replace catalog")
	}
	return nil
}
