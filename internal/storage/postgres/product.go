package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/salesvoice/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, category, price, stock
		FROM products ORDER BY position, id`

	// strpos keeps user text out of LIKE pattern syntax.
	searchProductsSQL = `SELECT id, name, category, price, stock
		FROM products
		WHERE ($1 = '' OR strpos(lower(name), lower($1)) > 0 OR strpos(lower(category), lower($1)) > 0)
		  AND ($2::numeric IS NULL OR price <= $2::numeric)
		ORDER BY position, id`

	getProductByIDSQL = `SELECT id, name, category, price, stock
		FROM products WHERE id = $1`

	decrementStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	deleteProductsSQL = `DELETE FROM products`

	insertProductSQL = `INSERT INTO products (id, position, name, category, price, stock)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
// Stock decrements are a single conditional UPDATE, so concurrent orders
// cannot oversell.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products in catalog order.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Search filters products by text and maximum price in SQL.
func (r *ProductRepository) Search(ctx context.Context, q product.Query) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, searchProductsSQL, q.Text, q.MaxPrice)
	if err != nil {
		return nil, errors.Wrap(err, "search products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// DecrementStock subtracts quantity when enough stock remains.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, nil
	}
	tag, err := r.pool.Exec(ctx, decrementStockSQL, id, quantity)
	if err != nil {
		return false, errors.Wrapf(err, "decrement stock of %q", id)
	}
	return tag.RowsAffected() == 1, nil
}

// Replace swaps the whole catalog for products in one transaction.
func (r *ProductRepository) Replace(ctx context.Context, products []product.Product) error {
	if err := product.ValidateAll(products); err != nil {
		return errors.Wrap(err, "replace catalog")
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteProductsSQL); err != nil {
			return errors.Wrap(err, "clear products")
		}

		batch := &pgx.Batch{}
		for i, p := range products {
			batch.Queue(insertProductSQL, p.ID, i, p.Name, p.Category, p.Price, p.Stock)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "insert products")
		}
		return nil
	})
}

// Ping checks connectivity for readiness probes.
func (r *ProductRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Stock)
	return p, err
}
