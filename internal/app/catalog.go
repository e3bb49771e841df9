package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/xenking/salesvoice/db"
	"github.com/xenking/salesvoice/internal/domain/product"
	"github.com/xenking/salesvoice/internal/storage/jsonfile"
	"github.com/xenking/salesvoice/internal/storage/postgres"
	redisstore "github.com/xenking/salesvoice/internal/storage/redis"
	"github.com/xenking/salesvoice/pkg/health"
)

// Store is the catalog as seen by the rest of the application.
type Store interface {
	product.Repository
	Replace(ctx context.Context, products []product.Product) error
}

var (
	_ Store = (*product.Catalog)(nil)
	_ Store = (*postgres.ProductRepository)(nil)
)

// Catalog is an opened catalog backend.
type Catalog struct {
	Store Store
	// Check is the readiness probe for the backend.
	Check health.CheckFunc
	close func()
}

// Close releases backend connections.
func (c *Catalog) Close() {
	if c.close != nil {
		c.close()
	}
}

// OpenCatalog connects to the backend selected by cfg.Catalog.Backend.
func OpenCatalog(ctx context.Context, cfg *Config) (*Catalog, error) {
	switch cfg.Catalog.Backend {
	case BackendFile:
		backend := jsonfile.New(cfg.Catalog.Path)
		return &Catalog{
			Store: product.NewCatalog(backend),
			Check: health.LoadCheck(backend.Load),
		}, nil

	case BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		client := redis.NewClient(opts)
		backend := redisstore.New(client, cfg.Catalog.RedisKey)
		if err := backend.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, errors.Wrap(err, "connect to redis")
		}
		return &Catalog{
			Store: product.NewCatalog(backend),
			Check: health.PingCheck("redis", backend),
			close: func() { _ = client.Close() },
		}, nil

	case BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		repo := postgres.NewProductRepository(pool)
		return &Catalog{
			Store: repo,
			Check: health.PingCheck("postgres", repo),
			close: pool.Close,
		}, nil

	default:
		return nil, errors.Errorf("unknown catalog backend %q", cfg.Catalog.Backend)
	}
}

// SeedIfEmpty loads the bundled demo catalog into an empty store.
func SeedIfEmpty(ctx context.Context, lg *zap.Logger, store Store) error {
	current, err := store.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}
	if len(current) > 0 {
		return nil
	}

	products, err := product.UnmarshalProducts(db.SeedProducts)
	if err != nil {
		return errors.Wrap(err, "parse bundled catalog")
	}
	if err := store.Replace(ctx, products); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	lg.Info("Seeded empty catalog", zap.Int("products", len(products)))
	return nil
}
