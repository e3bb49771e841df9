package order

import (
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// StatusConfirmed is the status of every successfully created order.
const StatusConfirmed = "confirmed"

// Order is the confirmation returned by a successful create_order call. It
// is not persisted; it lives only in the tool result and session events.
type Order struct {
	ID           string
	ProductID    string
	Name         string
	Quantity     int
	PricePerUnit decimal.Decimal
	TotalPrice   decimal.Decimal
	Status       string
}

// Encode writes o as a JSON object.
func (o Order) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("product_id")
	e.Str(o.ProductID)
	e.FieldStart("name")
	e.Str(o.Name)
	e.FieldStart("quantity")
	e.Int(o.Quantity)
	e.FieldStart("price_per_unit")
	e.Num(jx.Num(o.PricePerUnit.String()))
	e.FieldStart("total_price")
	e.Num(jx.Num(o.TotalPrice.String()))
	e.FieldStart("status")
	e.Str(o.Status)
	e.ObjEnd()
}

// Result is the outcome of create_order. Exactly one of Order or Error is set.
type Result struct {
	Order *Order
	// Error is the message shown to the model when the order was declined.
	Error string
	// AvailableStock is reported when the order exceeded the stock on hand.
	AvailableStock *int
}

// IsConfirmed reports whether the result carries an order and no error.
// Callers publish ORDER_CONFIRMED only for confirmed results.
func (r Result) IsConfirmed() bool {
	return r.Error == "" && r.Order != nil && r.Order.ID != ""
}

// Encode writes the order object, or {"error": ..., "available_stock": ...}
// for a declined order.
func (r Result) Encode(e *jx.Encoder) {
	if r.IsConfirmed() {
		r.Order.Encode(e)
		return
	}
	e.ObjStart()
	e.FieldStart("error")
	e.Str(r.Error)
	if r.AvailableStock != nil {
		e.FieldStart("available_stock")
		e.Int(*r.AvailableStock)
	}
	e.ObjEnd()
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	r.Encode(&e)
	return e.Bytes(), nil
}

func declined(msg string) Result {
	return Result{Error: msg}
}
