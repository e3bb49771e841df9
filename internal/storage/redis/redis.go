// Package redis stores the catalog snapshot under a single Redis key.
//
// Updates use WATCH/MULTI: if another client rewrites the key between the
// read and the EXEC, the transaction aborts and the read-modify-write is
// retried against the fresh value.
package redis

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-redis/redis/v8"

	"github.com/xenking/salesvoice/internal/domain/product"
)

// DefaultKey is the key holding the catalog JSON document.
const DefaultKey = "salesvoice:catalog"

const maxTxAttempts = 8

// ErrContention is returned when every optimistic attempt lost its race.
var ErrContention = errors.New("catalog update contention")

var _ product.Backend = (*Backend)(nil)

// Backend is a product.Backend on top of a Redis string key.
type Backend struct {
	client *redis.Client
	key    string
}

// New returns a Backend using client and key. An empty key means DefaultKey.
func New(client *redis.Client, key string) *Backend {
	if key == "" {
		key = DefaultKey
	}
	return &Backend{client: client, key: key}
}

// Load fetches the snapshot. A missing key is an empty catalog.
func (b *Backend) Load(ctx context.Context) ([]product.Product, error) {
	return load(ctx, b.client, b.key)
}

// Update applies fn optimistically, retrying when the key changed under it.
func (b *Backend) Update(ctx context.Context, fn product.UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		current, err := load(ctx, tx, b.key)
		if err != nil {
			return err
		}
		next, changed, err := fn(current)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		data := product.MarshalProducts(next)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, b.key, data, 0)
			return nil
		})
		return err
	}

	for range maxTxAttempts {
		err := b.client.Watch(ctx, txf, b.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "update catalog")
		}
		return nil
	}
	return ErrContention
}

// Ping checks connectivity for readiness probes.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, key string) ([]product.Product, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []product.Product{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get catalog")
	}
	return product.UnmarshalProducts(data)
}
