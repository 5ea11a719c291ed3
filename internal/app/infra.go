// Package app assembles storage, events and the domain service from Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/nannytracker/internal/config"
	"example.com/nannytracker/internal/domain"
	"example.com/nannytracker/internal/events"
	"example.com/nannytracker/internal/persistence/kv"
	"example.com/nannytracker/internal/persistence/postgres"
	"example.com/nannytracker/internal/persistence/redis"
	"example.com/nannytracker/internal/persistence/sqlite"
	"example.com/nannytracker/internal/summary"
)

// Publisher is an EventPublisher that owns a connection.
type Publisher interface {
	domain.EventPublisher
	Close() error
}

// Infra holds the long-lived resources shared by the binaries.
type Infra struct {
	Repo      domain.SessionRepository
	Publisher Publisher

	closers []func() error
}

// SetupInfra opens the configured storage backend and event publisher.
func SetupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	repo, err := infra.openRepository(ctx, cfg)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	infra.Repo = repo
	log.Printf("storage ready (backend=%s)", cfg.StorageBackend)

	if cfg.EventsEnabled() {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.ShiftEventsTopic)
		infra.Publisher = publisher
		infra.closers = append(infra.closers, publisher.Close)
		log.Printf("shift events enabled (topic=%s)", cfg.ShiftEventsTopic)
	} else {
		infra.Publisher = events.NoopPublisher{}
	}
	return infra, nil
}

func (i *Infra) openRepository(ctx context.Context, cfg config.Config) (domain.SessionRepository, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return kv.NewRepository(kv.NewMemoryStore()), nil
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		i.closers = append(i.closers, store.Close)
		return kv.NewRepository(store), nil
	case config.BackendRedis:
		store, err := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		i.closers = append(i.closers, store.Close)
		return kv.NewRepository(store), nil
	case config.BackendPostgres:
		pool, err := OpenPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		i.closers = append(i.closers, func() error { pool.Close(); return nil })
		return postgres.NewRepository(pool), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// OpenPostgres connects, pings and applies migrations.
func OpenPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return pool, nil
}

// Close releases everything opened by SetupInfra, newest first.
func (i *Infra) Close() error {
	var errs []error
	for j := len(i.closers) - 1; j >= 0; j-- {
		if err := i.closers[j](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}

// NewService builds the domain service over infra with configured defaults.
func NewService(cfg config.Config, infra *Infra) *domain.Service {
	return domain.NewService(infra.Repo,
		domain.WithPublisher(infra.Publisher),
		domain.WithLocateTimeout(cfg.LocationTimeout),
		domain.WithDefaults(domain.Defaults{
			HourlyRate:   cfg.DefaultHourlyRate,
			RadiusMeters: cfg.DefaultRadiusMeters,
		}),
	)
}

// NewSummarizer builds the summary client with the configured timeout.
func NewSummarizer(cfg config.Config, opts ...summary.Option) *summary.Client {
	return summary.NewClient(summary.Config{
		URL:        cfg.SummaryURL,
		APIKey:     cfg.SummaryAPIKey,
		Model:      cfg.SummaryModel,
		HTTPClient: &http.Client{Timeout: cfg.SummaryTimeout},
	}, opts...)
}
