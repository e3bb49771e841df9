// Command seed-db replaces the catalog of the configured backend with the
// products from one or more JSON files. Files ending in .gz are
// decompressed; with no files the bundled demo catalog is loaded.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/salesvoice/db"
	"github.com/xenking/salesvoice/internal/app"
	"github.com/xenking/salesvoice/internal/domain/product"
)

func main() {
	cfg := &app.Config{}
	flag.StringVar(&cfg.Catalog.Backend, "backend", app.BackendFile, "catalog backend: file, redis or postgres")
	flag.StringVar(&cfg.Catalog.Path, "path", "data/products.json", "catalog file for the file backend")
	flag.StringVar(&cfg.Catalog.RedisKey, "redis-key", "salesvoice:catalog", "catalog key for the redis backend")
	flag.StringVar(&cfg.RedisURL, "redis-url", os.Getenv("REDIS_URL"), "Redis URL (or REDIS_URL env)")
	flag.StringVar(&cfg.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg, flag.Args()); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, cfg *app.Config, files []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	products, err := readCatalogs(ctx, files)
	if err != nil {
		return err
	}
	lg.Info("Read catalog", zap.Int("files", len(files)), zap.Int("products", len(products)))

	catalog, err := app.OpenCatalog(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open catalog")
	}
	defer catalog.Close()

	if err := catalog.Store.Replace(ctx, products); err != nil {
		return errors.Wrap(err, "replace catalog")
	}
	lg.Info("Replaced catalog", zap.String("backend", cfg.Catalog.Backend), zap.Int("products", len(products)))
	return nil
}

// readCatalogs decodes every file concurrently and concatenates the results
// in argument order. Product ids must be unique across files.
func readCatalogs(ctx context.Context, files []string) ([]product.Product, error) {
	if len(files) == 0 {
		return product.UnmarshalProducts(db.SeedProducts)
	}

	parts := make([][]product.Product, len(files))
	g, gCtx := errgroup.WithContext(ctx)
	for i, name := range files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			products, err := readCatalog(name)
			if err != nil {
				return errors.Wrapf(err, "read %s", name)
			}
			parts[i] = products
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		all  []product.Product
		seen = make(map[string]string)
	)
	for i, part := range parts {
		for _, p := range part {
			if prev, ok := seen[p.ID]; ok {
				return nil, errors.Errorf("duplicate product id %q in %s (first seen in %s)", p.ID, files[i], prev)
			}
			seen[p.ID] = files[i]
			all = append(all, p)
		}
	}
	return all, nil
}

func readCatalog(name string) ([]product.Product, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(name, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return product.UnmarshalProducts(data)
}
