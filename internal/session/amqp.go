package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultExchange is the topic exchange session events are published to.
const DefaultExchange = "salesvoice.events"

const (
	dialAttempts   = 5
	dialRetryDelay = 2 * time.Second
)

var _ Publisher = (*AMQPPublisher)(nil)

// AMQPPublisher publishes session events to a RabbitMQ topic exchange with
// the event's RoutingKey.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string

	// amqp.Channel is not safe for concurrent publishing.
	mu sync.Mutex
	ch *amqp.Channel
}

// DialAMQP connects to url, retrying while the broker starts, and declares
// a durable topic exchange.
func DialAMQP(ctx context.Context, url, exchange string) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	lg := zctx.From(ctx)

	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		lg.Warn("Connect to AMQP broker failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == dialAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialRetryDelay):
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open amqp channel")
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %q", exchange)
	}

	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// Publish implements Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, _ := e.MarshalJSON()

	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.PublishWithContext(ctx,
		p.exchange,     // exchange
		e.RoutingKey(), // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Type:         string(e.Type),
			Body:         body,
		},
	)
	if err != nil {
		return errors.Wrapf(err, "publish %s", e.Type)
	}
	return nil
}

// Healthy reports whether the broker connection is open.
func (p *AMQPPublisher) Healthy(context.Context) error {
	if p.conn.IsClosed() {
		return errors.New("amqp connection closed")
	}
	return nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ch.Close()
	return p.conn.Close()
}
