// Package session delivers order events to the live voice session and any
// other subscribers.
package session

import (
	"context"

	"github.com/go-faster/jx"
	"go.uber.org/multierr"

	"github.com/xenking/salesvoice/internal/domain/order"
)

// EventType is the "type" discriminator of a session event.
type EventType string

const (
	// OrderConfirmed is published after a successful create_order.
	OrderConfirmed EventType = "ORDER_CONFIRMED"
	// OrderFinalized is published when the user confirms the whole order.
	OrderFinalized EventType = "ORDER_FINALIZED"
)

// Event is a message for the session. Order is set only for OrderConfirmed.
type Event struct {
	Type  EventType
	Order *order.Order
}

// OrderConfirmedEvent wraps a confirmed order.
func OrderConfirmedEvent(o *order.Order) Event {
	return Event{Type: OrderConfirmed, Order: o}
}

// OrderFinalizedEvent marks the session order as final.
func OrderFinalizedEvent() Event {
	return Event{Type: OrderFinalized}
}

// RoutingKey is the topic used on message brokers.
func (e Event) RoutingKey() string {
	switch e.Type {
	case OrderConfirmed:
		return "session.order_confirmed"
	case OrderFinalized:
		return "session.order_finalized"
	default:
		return "session.unknown"
	}
}

// Encode writes {"type": ..., "data": ...}.
func (e Event) Encode(enc *jx.Encoder) {
	enc.ObjStart()
	enc.FieldStart("type")
	enc.Str(string(e.Type))
	if e.Order != nil {
		enc.FieldStart("data")
		e.Order.Encode(enc)
	}
	enc.ObjEnd()
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	var enc jx.Encoder
	e.Encode(&enc)
	return enc.Bytes(), nil
}

// Publisher delivers session events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }

// Fanout publishes each event to every publisher, in order. A failing
// publisher does not stop delivery to the rest.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, e Event) error {
	var err error
	for _, p := range f {
		err = multierr.Append(err, p.Publish(ctx, e))
	}
	return err
}
