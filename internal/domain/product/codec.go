package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Encode writes p as a JSON object with the catalog field names.
func (p Product) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("price")
	e.Num(jx.Num(p.Price.String()))
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.ObjEnd()
}

// Decode reads a catalog JSON object into p. Unknown fields are skipped.
func (p *Product) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = decodeString(d)
		case "name":
			p.Name, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "price":
			p.Price, err = DecodeDecimal(d)
		case "stock":
			p.Stock, err = d.Int()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
}

// EncodeProducts writes products as a JSON array.
func EncodeProducts(e *jx.Encoder, products []Product) {
	e.ArrStart()
	for _, p := range products {
		p.Encode(e)
	}
	e.ArrEnd()
}

// MarshalProducts returns the indented JSON document stored by snapshot
// backends.
func MarshalProducts(products []Product) []byte {
	var e jx.Encoder
	e.SetIdent(2)
	EncodeProducts(&e, products)
	return e.Bytes()
}

// UnmarshalProducts parses a JSON array of catalog objects and rejects
// catalogs that fail ValidateAll.
func UnmarshalProducts(data []byte) ([]Product, error) {
	products := []Product{}
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		return products, d.Null()
	}
	err := d.Arr(func(d *jx.Decoder) error {
		var p Product
		if err := p.Decode(d); err != nil {
			return errors.Wrapf(err, "product #%d", len(products))
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	if err := ValidateAll(products); err != nil {
		return nil, errors.Wrap(err, "validate catalog")
	}
	return products, nil
}

// DecodeDecimal reads a number or numeric string as a decimal.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	raw, err := decodeString(d)
	if err != nil {
		return decimal.Zero, err
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse decimal %q", raw)
	}
	return v, nil
}

// decodeString accepts either a JSON string or a bare number, returning its
// text. Catalog files written by hand use both forms for ids.
func decodeString(d *jx.Decoder) (string, error) {
	switch tt := d.Next(); tt {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return string(n), nil
	default:
		return "", errors.Errorf("unexpected %v", tt)
	}
}
