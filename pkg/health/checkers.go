package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is a dependency with a connectivity check, such as a Redis client,
// a pgx pool or the AMQP publisher.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger into a CheckFunc, wrapping failures with name.
func PingCheck(name string, p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrapf(err, "ping %s", name)
		}
		return nil
	}
}

// LoadCheck reports unhealthy when load fails. It is used for backends with
// no cheaper probe than reading the catalog, like the JSON file.
func LoadCheck[T any](load func(ctx context.Context) (T, error)) CheckFunc {
	return func(ctx context.Context) error {
		_, err := load(ctx)
		return err
	}
}

// GoroutineCountCheck fails once the process runs more than threshold
// goroutines. Leaked websocket pumps show up here first.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}
