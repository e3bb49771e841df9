package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrInvalidProduct is wrapped by Validate and ValidateAll failures.
var ErrInvalidProduct = errors.New("invalid product")

// Product represents a catalog item available for purchase.
type Product struct {
	ID       string
	Name     string
	Category string
	Price    decimal.Decimal
	Stock    int
}

// Validate checks the catalog rules for a single product: a non-empty id,
// a positive price and non-negative stock.
func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return errors.Wrap(ErrInvalidProduct, "empty id")
	case !p.Price.IsPositive():
		return errors.Wrapf(ErrInvalidProduct, "product %q: price %s is not positive", p.ID, p.Price)
	case p.Stock < 0:
		return errors.Wrapf(ErrInvalidProduct, "product %q: stock %d is negative", p.ID, p.Stock)
	}
	return nil
}

// ValidateAll validates every product and rejects duplicate ids.
func ValidateAll(products []Product) error {
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "product #%d", i)
		}
		if _, ok := seen[p.ID]; ok {
			return errors.Wrapf(ErrInvalidProduct, "product #%d: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// Query filters the catalog. Zero-value fields do not constrain the result.
type Query struct {
	// Text is matched case-insensitively as a substring of the name or category.
	Text string
	// MaxPrice, when set, excludes products priced above it.
	MaxPrice *decimal.Decimal
}

// Match reports whether p satisfies every filter set on q.
func (q Query) Match(p Product) bool {
	if q.Text != "" {
		text := strings.ToLower(q.Text)
		if !strings.Contains(strings.ToLower(p.Name), text) &&
			!strings.Contains(strings.ToLower(p.Category), text) {
			return false
		}
	}
	if q.MaxPrice != nil && p.Price.GreaterThan(*q.MaxPrice) {
		return false
	}
	return true
}

// Repository defines the catalog operations the order tools depend on.
type Repository interface {
	// List returns the full catalog. A missing catalog is empty, not an error.
	List(ctx context.Context) ([]Product, error)
	// Search returns the products matching q in catalog order.
	Search(ctx context.Context, q Query) ([]Product, error)
	// GetByID returns ErrNotFound when no product has the given id.
	GetByID(ctx context.Context, id string) (*Product, error)
	// DecrementStock subtracts quantity from the product's stock if enough is
	// available. It returns false without writing when the product is missing
	// or its stock is short.
	DecrementStock(ctx context.Context, id string, quantity int) (bool, error)
}
