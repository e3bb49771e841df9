package agent

import (
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/salesvoice/internal/domain/product"
)

type searchArgs struct {
	Query    string
	MaxPrice *decimal.Decimal
}

// query converts the arguments to a catalog query. A max_price of zero or
// less means no price limit.
func (a searchArgs) query() product.Query {
	q := product.Query{Text: strings.TrimSpace(a.Query)}
	if a.MaxPrice != nil && a.MaxPrice.IsPositive() {
		q.MaxPrice = a.MaxPrice
	}
	return q
}

type createArgs struct {
	ProductID string
	// Quantity holds the raw value: json.Number, string, bool, or nil.
	Quantity any
}

type confirmArgs struct {
	Confirmed bool
}

func decodeSearchArgs(raw string) (searchArgs, error) {
	var a searchArgs
	err := decodeArgs(raw, func(d *jx.Decoder, key string) error {
		switch key {
		case "query", "category":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := scalarString(d)
			if err != nil {
				return err
			}
			if a.Query == "" {
				a.Query = v
			}
			return nil
		case "max_price":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := scalarString(d)
			if err != nil {
				return err
			}
			if strings.TrimSpace(v) == "" {
				return nil
			}
			price, err := decimal.NewFromString(strings.TrimSpace(v))
			if err != nil {
				return errors.Errorf("max_price must be a number, got %q", v)
			}
			a.MaxPrice = &price
			return nil
		default:
			return d.Skip()
		}
	})
	return a, err
}

func decodeCreateArgs(raw string) (createArgs, error) {
	var (
		a      createArgs
		haveID bool
	)
	err := decodeArgs(raw, func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := scalarString(d)
			if err != nil {
				return err
			}
			a.ProductID, haveID = v, true
			return nil
		case "quantity":
			switch d.Next() {
			case jx.Null:
				return d.Null()
			case jx.Number:
				n, err := d.Num()
				a.Quantity = json.Number(n.String())
				return err
			case jx.String:
				v, err := d.Str()
				a.Quantity = v
				return err
			case jx.Bool:
				v, err := d.Bool()
				a.Quantity = v
				return err
			default:
				raw, err := d.Raw()
				a.Quantity = raw.String()
				return err
			}
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return a, err
	}
	if !haveID {
		return a, errors.New("missing required argument: product_id")
	}
	return a, nil
}

func decodeConfirmArgs(raw string) (confirmArgs, error) {
	a := confirmArgs{Confirmed: true}
	err := decodeArgs(raw, func(d *jx.Decoder, key string) error {
		if key != "confirmed" {
			return d.Skip()
		}
		switch d.Next() {
		case jx.Null:
			return d.Null()
		case jx.String:
			v, err := d.Str()
			a.Confirmed = !strings.EqualFold(strings.TrimSpace(v), "false")
			return err
		default:
			v, err := d.Bool()
			a.Confirmed = v
			return err
		}
	})
	return a, err
}

// decodeArgs walks the arguments object. Empty arguments are an empty object.
func decodeArgs(raw string, f func(d *jx.Decoder, key string) error) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d := jx.DecodeStr(raw)
	if d.Next() == jx.Null {
		return nil
	}
	if err := d.Obj(f); err != nil {
		return errors.Wrap(err, "decode arguments")
	}
	return nil
}

// scalarString reads a string or number as text.
func scalarString(d *jx.Decoder) (string, error) {
	switch tt := d.Next(); tt {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		return n.String(), err
	default:
		return "", errors.Errorf("expected string or number, got %v", tt)
	}
}
