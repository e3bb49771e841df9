package product

import (
	"testing"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalProducts(t *testing.T) {
	data := []byte(`[
		{"id": "1", "name": "Coca Cola", "category": "Drinks", "price": 40, "stock": 50},
		{"id": 2, "name": "Pepsi", "category": "Drinks", "price": "39.50", "stock": 0, "image": {"thumb": "x.png"}}
	]`)

	products, err := UnmarshalProducts(data)
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "1", products[0].ID)
	assert.Equal(t, "Coca Cola", products[0].Name)
	assert.True(t, decimal.NewFromInt(40).Equal(products[0].Price))
	assert.Equal(t, 50, products[0].Stock)

	assert.Equal(t, "2", products[1].ID, "numeric ids are read as text")
	assert.True(t, decimal.RequireFromString("39.5").Equal(products[1].Price))
	assert.Zero(t, products[1].Stock)
}

func TestUnmarshalProducts_Empty(t *testing.T) {
	for _, in := range []string{`[]`, `null`} {
		products, err := UnmarshalProducts([]byte(in))
		require.NoError(t, err, in)
		assert.NotNil(t, products)
		assert.Empty(t, products)
	}
}

func TestUnmarshalProducts_Invalid(t *testing.T) {
	for _, in := range []string{
		`{"id": "1"}`,
		`[{"id": "1", "stock": "many"}]`,
		`[{"id": "1", "price": "cheap"}]`,
		`[{"id": true}]`,
		`[{"id": "1"`,
	} {
		_, err := UnmarshalProducts([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestMarshalProducts_RoundTrip(t *testing.T) {
	in := []Product{
		{ID: "1", Name: "Coca Cola", Category: "Drinks", Price: decimal.NewFromInt(40), Stock: 45},
		{ID: "8", Name: `Amul "Butter"`, Category: "Dairy", Price: decimal.RequireFromString("56.25"), Stock: 0},
	}

	out, err := UnmarshalProducts(MarshalProducts(in))
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i].ID, out[i].ID)
		assert.Equal(t, in[i].Name, out[i].Name)
		assert.Equal(t, in[i].Stock, out[i].Stock)
		assert.True(t, in[i].Price.Equal(out[i].Price))
	}
}

func TestProduct_Encode(t *testing.T) {
	var e jx.Encoder
	Product{ID: "3", Name: "Sprite", Category: "Drinks", Price: decimal.NewFromInt(35), Stock: 30}.Encode(&e)

	assert.JSONEq(t,
		`{"id":"3","name":"Sprite","category":"Drinks","price":35,"stock":30}`,
		string(e.Bytes()),
	)
}

func TestProduct_Validate(t *testing.T) {
	valid := Product{ID: "1", Name: "Coca Cola", Category: "Drinks", Price: decimal.NewFromInt(40), Stock: 0}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(p *Product)
		want   string
	}{
		{name: "empty id", mutate: func(p *Product) { p.ID = "" }, want: "empty id"},
		{name: "blank id", mutate: func(p *Product) { p.ID = "  " }, want: "empty id"},
		{name: "zero price", mutate: func(p *Product) { p.Price = decimal.Zero }, want: "price 0 is not positive"},
		{name: "negative price", mutate: func(p *Product) { p.Price = decimal.NewFromInt(-40) }, want: "price -40 is not positive"},
		{name: "negative stock", mutate: func(p *Product) { p.Stock = -5 }, want: "stock -5 is negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)

			err := p.Validate()
			require.ErrorIs(t, err, ErrInvalidProduct)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateAll_DuplicateID(t *testing.T) {
	p := Product{ID: "1", Name: "Coca Cola", Category: "Drinks", Price: decimal.NewFromInt(40), Stock: 1}

	err := ValidateAll([]Product{p, p})
	require.ErrorIs(t, err, ErrInvalidProduct)
	assert.Contains(t, err.Error(), `duplicate id "1"`)
}

func TestUnmarshalProducts_RejectsRuleViolations(t *testing.T) {
	for _, in := range []string{
		`[{"id": "1", "name": "Coca Cola", "category": "Drinks", "price": -40, "stock": -5}]`,
		`[{"id": "1", "name": "Coca Cola", "category": "Drinks", "price": 40, "stock": -5}]`,
		`[{"id": "", "name": "Mystery", "category": "Drinks", "price": 0, "stock": 1}]`,
		`[{"name": "No id", "category": "Drinks", "price": 10, "stock": 1}]`,
		`[{"id": "1", "name": "A", "category": "Drinks", "price": 10, "stock": 1},
		  {"id": "1", "name": "B", "category": "Drinks", "price": 10, "stock": 1}]`,
	} {
		_, err := UnmarshalProducts([]byte(in))
		assert.ErrorIs(t, err, ErrInvalidProduct, in)
	}
}
