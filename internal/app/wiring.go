package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/okian/curvewatch/internal/adapters/repository"
	"github.com/okian/curvewatch/internal/adapters/sink"
	"github.com/okian/curvewatch/internal/adapters/source"
	"github.com/okian/curvewatch/internal/config"
)

// OpenLoader builds the configured source. The returned func releases it.
func OpenLoader(ctx context.Context, cfg *config.Config) (source.Loader, func(), error) {
	switch cfg.Source.Kind {
	case config.SourcePostgres:
		pool, err := source.Connect(ctx, cfg.Source.DSN)
		if err != nil {
			return nil, nil, err
		}
		return source.NewPostgresWithQuerier(pool, cfg.Source.FactsTable, cfg.Source.AssumptionsTable), pool.Close, nil
	default:
		return source.NewCSV(cfg.Source.FactsPath, cfg.Source.AssumptionsPath), func() {}, nil
	}
}

// OpenStore builds the configured latest-run store.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.Store.Kind {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Store.RedisAddr, err)
		}
		store := repository.NewRedisStore(client,
			repository.WithKey(cfg.Store.RedisKey),
			repository.WithTTL(cfg.Store.TTL),
		)
		return store, func() { _ = client.Close() }, nil
	default:
		return repository.NewMemoryStore(), func() {}, nil
	}
}

// OpenSink builds a writer for every configured output. It returns a nil
// writer when no output is configured.
func OpenSink(ctx context.Context, cfg *config.Config) (sink.Writer, func(), error) {
	var (
		writers sink.Multi
		closers []func()
	)
	release := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Sink.CSVPath != "" {
		writers = append(writers, sink.NewCSVFile(cfg.Sink.CSVPath))
	}
	if cfg.Sink.JSONPath != "" {
		writers = append(writers, sink.NewJSONFile(cfg.Sink.JSONPath))
	}
	if cfg.Sink.RawPath != "" {
		writers = append(writers, sink.NewRawCSVFile(cfg.Sink.RawPath))
	}
	if cfg.Sink.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Sink.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres sink: %w", err)
		}
		closers = append(closers, pool.Close)
		pg, err := sink.NewPostgres(pool, cfg.Sink.PostgresSchema, cfg.Sink.RunTag)
		if err != nil {
			release()
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			release()
			return nil, nil, fmt.Errorf("postgres sink: %w", err)
		}
		writers = append(writers, pg)
	}

	if len(writers) == 0 {
		return nil, release, nil
	}
	return writers, release, nil
}
