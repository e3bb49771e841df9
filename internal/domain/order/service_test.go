package order

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/salesvoice/internal/domain/product"
	"github.com/xenking/salesvoice/internal/storage/memory"
)

// --- Mock implementations ---

var _ product.Repository = (*failingRepo)(nil)

type failingRepo struct {
	err error
}

func (m *failingRepo) List(context.Context) ([]product.Product, error) { return nil, m.err }

func (m *failingRepo) Search(context.Context, product.Query) ([]product.Product, error) {
	return nil, m.err
}

func (m *failingRepo) GetByID(context.Context, string) (*product.Product, error) {
	return nil, m.err
}

func (m *failingRepo) DecrementStock(context.Context, string, int) (bool, error) {
	return false, m.err
}

// racingRepo reports enough stock on lookup but loses the decrement.
type racingRepo struct {
	product.Repository
}

func (r racingRepo) DecrementStock(context.Context, string, int) (bool, error) {
	return false, nil
}

// --- Helpers ---

func newTestProduct(id, name, category string, price int64, stock int) product.Product {
	return product.Product{
		ID:       id,
		Name:     name,
		Category: category,
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
	}
}

func drinksCatalog() []product.Product {
	return []product.Product{
		newTestProduct("1", "Coca Cola", "Drinks", 40, 50),
		newTestProduct("2", "Pepsi", "Drinks", 40, 30),
		newTestProduct("3", "Sprite", "Drinks", 35, 0),
	}
}

func newTestService(t *testing.T, products ...product.Product) (*Service, *product.Catalog) {
	t.Helper()
	catalog := product.NewCatalog(memory.New(products...))
	var seq atomic.Int64
	svc := NewService(catalog, WithIDGenerator(func() string {
		return "order-" + strings.Repeat("0", 7) + string(rune('0'+seq.Add(1)%10))
	}))
	return svc, catalog
}

func stockOf(t *testing.T, repo product.Repository, id string) int {
	t.Helper()
	p, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

// --- Tests ---

func TestCreateOrder_Success(t *testing.T) {
	svc, catalog := newTestService(t, drinksCatalog()...)

	res := svc.CreateOrder(context.Background(), "1", 5)

	require.True(t, res.IsConfirmed(), res.Error)
	assert.Equal(t, "order-00000001", res.Order.ID)
	assert.Equal(t, "1", res.Order.ProductID)
	assert.Equal(t, "Coca Cola", res.Order.Name)
	assert.Equal(t, 5, res.Order.Quantity)
	assert.True(t, decimal.NewFromInt(40).Equal(res.Order.PricePerUnit))
	assert.True(t, decimal.NewFromInt(200).Equal(res.Order.TotalPrice))
	assert.Equal(t, StatusConfirmed, res.Order.Status)
	assert.Nil(t, res.AvailableStock)

	assert.Equal(t, 45, stockOf(t, catalog, "1"))
	assert.Equal(t, 30, stockOf(t, catalog, "2"), "other products untouched")
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	svc, catalog := newTestService(t, drinksCatalog()...)
	require.True(t, svc.CreateOrder(context.Background(), "1", 5).IsConfirmed())

	res := svc.CreateOrder(context.Background(), "1", 1000)

	assert.False(t, res.IsConfirmed())
	assert.Equal(t, "Insufficient stock. Only 45 units of Coca Cola are available.", res.Error)
	require.NotNil(t, res.AvailableStock)
	assert.Equal(t, 45, *res.AvailableStock)
	assert.Equal(t, 45, stockOf(t, catalog, "1"))
}

func TestCreateOrder_ZeroStock(t *testing.T) {
	svc, _ := newTestService(t, drinksCatalog()...)

	res := svc.CreateOrder(context.Background(), "3", 1)

	assert.Equal(t, "Insufficient stock. Only 0 units of Sprite are available.", res.Error)
	require.NotNil(t, res.AvailableStock)
	assert.Zero(t, *res.AvailableStock)
}

func TestCreateOrder_ExactStock(t *testing.T) {
	svc, catalog := newTestService(t, drinksCatalog()...)

	res := svc.CreateOrder(context.Background(), "2", 30)

	require.True(t, res.IsConfirmed(), res.Error)
	assert.Zero(t, stockOf(t, catalog, "2"))
}

func TestCreateOrder_NotFound(t *testing.T) {
	backend := memory.New(drinksCatalog()...)
	svc := NewService(product.NewCatalog(backend))

	res := svc.CreateOrder(context.Background(), "999", 1)

	assert.False(t, res.IsConfirmed())
	assert.Equal(t, "Product with ID 999 not found.", res.Error)
	assert.Nil(t, res.AvailableStock)
	assert.Zero(t, backend.Writes())
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity any
		want     string
	}{
		{name: "word", quantity: "five", want: "Invalid quantity: five"},
		{name: "zero", quantity: 0, want: "Invalid quantity: 0"},
		{name: "negative", quantity: -3, want: "Invalid quantity: -3"},
		{name: "fraction", quantity: 2.5, want: "Invalid quantity: 2.5"},
		{name: "missing", quantity: nil, want: "Invalid quantity: None"},
		{name: "bool", quantity: true, want: "Invalid quantity: true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := memory.New(drinksCatalog()...)
			svc := NewService(product.NewCatalog(backend))

			res := svc.CreateOrder(context.Background(), "1", tt.quantity)

			assert.Equal(t, tt.want, res.Error)
			assert.Zero(t, backend.Writes(), "stock must not change")
		})
	}
}

func TestCreateOrder_CoercesNumericForms(t *testing.T) {
	for _, q := range []any{"3", " 3 ", 3.0, json.Number("3"), int64(3)} {
		svc, catalog := newTestService(t, drinksCatalog()...)

		res := svc.CreateOrder(context.Background(), "1", q)

		require.True(t, res.IsConfirmed(), "quantity %#v: %s", q, res.Error)
		assert.Equal(t, 3, res.Order.Quantity)
		assert.Equal(t, 47, stockOf(t, catalog, "1"))
	}
}

func TestCreateOrder_LostRace(t *testing.T) {
	catalog := product.NewCatalog(memory.New(drinksCatalog()...))
	svc := NewService(racingRepo{Repository: catalog})

	res := svc.CreateOrder(context.Background(), "1", 1)

	assert.Equal(t, StockUpdateFailed, res.Error)
	assert.Equal(t, 50, stockOf(t, catalog, "1"))
}

func TestCreateOrder_StorageFailure(t *testing.T) {
	svc := NewService(&failingRepo{err: errors.New("disk on fire")})

	res := svc.CreateOrder(context.Background(), "1", 1)

	assert.False(t, res.IsConfirmed())
	assert.Equal(t, CatalogUnavailable, res.Error)
}

func TestCreateOrder_Concurrent(t *testing.T) {
	svc, catalog := newTestService(t, newTestProduct("1", "Coca Cola", "Drinks", 40, 45))

	const workers = 2
	results := make([]Result, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = svc.CreateOrder(context.Background(), "1", 30)
		}()
	}
	wg.Wait()

	var confirmed int
	for _, r := range results {
		if r.IsConfirmed() {
			confirmed++
			continue
		}
		assert.Contains(t, []string{
			"Insufficient stock. Only 15 units of Coca Cola are available.",
			StockUpdateFailed,
		}, r.Error)
	}
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, 15, stockOf(t, catalog, "1"))
}

func TestCreateOrder_NeverOversells(t *testing.T) {
	svc, catalog := newTestService(t, newTestProduct("1", "Coca Cola", "Drinks", 40, 50))

	const workers = 40
	var (
		wg   sync.WaitGroup
		sold atomic.Int64
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r := svc.CreateOrder(context.Background(), "1", 3); r.IsConfirmed() {
				sold.Add(int64(r.Order.Quantity))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(48), sold.Load())
	assert.Equal(t, 2, stockOf(t, catalog, "1"))
}

func TestSearchProducts(t *testing.T) {
	svc, _ := newTestService(t, drinksCatalog()...)
	price := decimal.NewFromInt(38)

	tests := []struct {
		name  string
		query product.Query
		want  string
	}{
		{
			name:  "by category",
			query: product.Query{Text: "drinks", MaxPrice: &price},
			want: "Found the following products:\n" +
				"- Sprite (Category: Drinks, Price: ₹35, ID: 3)\n",
		},
		{
			name:  "by name case-insensitive",
			query: product.Query{Text: "COLA"},
			want: "Found the following products:\n" +
				"- Coca Cola (Category: Drinks, Price: ₹40, ID: 1)\n",
		},
		{
			name:  "empty query lists all in order",
			query: product.Query{},
			want: "Found the following products:\n" +
				"- Coca Cola (Category: Drinks, Price: ₹40, ID: 1)\n" +
				"- Pepsi (Category: Drinks, Price: ₹40, ID: 2)\n" +
				"- Sprite (Category: Drinks, Price: ₹35, ID: 3)\n",
		},
		{
			name:  "no match",
			query: product.Query{Text: "snacks"},
			want:  NoProductsFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.SearchProducts(context.Background(), tt.query))
		})
	}
}

func TestSearchProducts_StorageFailure(t *testing.T) {
	svc := NewService(&failingRepo{err: errors.New("redis down")})

	assert.Equal(t, CatalogUnavailable, svc.SearchProducts(context.Background(), product.Query{Text: "cola"}))
}

func TestSearchProducts_DoesNotMutate(t *testing.T) {
	backend := memory.New(drinksCatalog()...)
	svc := NewService(product.NewCatalog(backend))

	for range 3 {
		svc.SearchProducts(context.Background(), product.Query{Text: "drinks"})
	}
	assert.Zero(t, backend.Writes())
}

func TestNewOrderID(t *testing.T) {
	id := NewOrderID()
	require.Len(t, id, len("order-")+8)
	assert.True(t, strings.HasPrefix(id, "order-"))
	assert.NotEqual(t, id, NewOrderID())
}

func TestResult_MarshalJSON(t *testing.T) {
	svc, _ := newTestService(t, drinksCatalog()...)

	data, err := json.Marshal(svc.CreateOrder(context.Background(), "1", 2))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "order-00000001",
		"product_id": "1",
		"name": "Coca Cola",
		"quantity": 2,
		"price_per_unit": 40,
		"total_price": 80,
		"status": "confirmed"
	}`, string(data))

	data, err = json.Marshal(svc.CreateOrder(context.Background(), "1", 100))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"error": "Insufficient stock. Only 48 units of Coca Cola are available.",
		"available_stock": 48
	}`, string(data))

	data, err = json.Marshal(svc.CreateOrder(context.Background(), "x", 1))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error": "Product with ID x not found."}`, string(data))
}
