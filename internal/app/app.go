// Package app wires configuration into the long-lived components shared by
// every command.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmehdipour/restaurant-crm/internal/config"
	"github.com/jmehdipour/restaurant-crm/internal/db"
	"github.com/jmehdipour/restaurant-crm/internal/kafka"
	"github.com/jmehdipour/restaurant-crm/internal/layout"
	"github.com/jmehdipour/restaurant-crm/internal/logger"
	"github.com/jmehdipour/restaurant-crm/internal/repository"
	"github.com/jmehdipour/restaurant-crm/internal/store"
	"github.com/jmehdipour/restaurant-crm/internal/tenant"
)

type App struct {
	Cfg      config.Config
	Store    store.Store
	Tenants  *tenant.Directory
	Entities *repository.EntityRepository
	Redis    *redis.Client               // nil when not configured
	Producer *kafka.Producer             // nil when Kafka is disabled
	Archive  repository.MigrationArchive // nil when ClickHouse is disabled

	closers []func() error
}

// New connects every configured backend. On error the ones already opened
// are closed again.
func New(cfg config.Config) (*App, error) {
	a := &App{Cfg: cfg}
	if err := a.open(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open() error {
	cfg := a.Cfg
	log := logger.Named("app")

	raw, err := a.openStore()
	if err != nil {
		return err
	}
	a.Store = store.NewResilient(raw, Policy(cfg.Store))

	if a.Redis, err = db.NewRedisClient(cfg.Redis); err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	if a.Redis != nil {
		a.closers = append(a.closers, a.Redis.Close)
	}

	if cfg.Kafka.Enabled() {
		a.Producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EntityTopic, cfg.Kafka.TenantTopic)
		a.closers = append(a.closers, a.Producer.Close)
	}

	if cfg.ClickHouse.Enabled {
		var ch *sqlx.DB
		if ch, err = db.NewClickHouseConnection(cfg.ClickHouse); err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		a.closers = append(a.closers, ch.Close)
		a.Archive = repository.NewCHMigrationArchive(ch)
	}

	var dirOpts []tenant.Option
	var repoOpts []repository.Option
	if a.Redis != nil {
		dirOpts = append(dirOpts, tenant.WithCache(tenant.NewRedisCache(a.Redis, cfg.Tenants.CacheTTL)))
	}
	if a.Producer != nil {
		dirOpts = append(dirOpts, tenant.WithEvents(a.Producer))
		repoOpts = append(repoOpts, repository.WithEvents(a.Producer))
	}
	a.Tenants = tenant.NewDirectory(a.Store, dirOpts...)
	a.Entities = repository.NewEntityRepository(a.Store, a.Tenants, repoOpts...)

	log.Info("components ready",
		zap.String("store", cfg.Store.Driver),
		zap.Bool("redis", a.Redis != nil),
		zap.Bool("kafka", a.Producer != nil),
		zap.Bool("clickhouse", a.Archive != nil))
	return nil
}

func (a *App) openStore() (store.Store, error) {
	switch a.Cfg.Store.Driver {
	case "memory":
		logger.Log.Warn("memory store selected: data lives only as long as this process")
		return store.NewMemory(), nil
	case "mysql", "":
		dbx, err := db.NewMySQLConnection(a.Cfg.MySQL)
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		a.closers = append(a.closers, dbx.Close)
		return store.NewMySQL(dbx), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", a.Cfg.Store.Driver)
}

// Policy translates the store section of the config.
func Policy(c config.StoreConfig) store.Policy {
	return store.Policy{
		CallTimeout:    c.CallTimeout,
		MaxAttempts:    c.MaxAttempts,
		BackoffInitial: c.BackoffInitial,
		BackoffMax:     c.BackoffMax,
		FailThreshold:  c.Breaker.FailThreshold,
		OpenFor:        time.Duration(c.Breaker.OpenForMs) * time.Millisecond,
	}
}

// Legacy returns the configured legacy layout.
func (a *App) Legacy() layout.Legacy {
	return layout.Legacy{
		FormsCollection: a.Cfg.Migration.LegacyCollection,
		NestedRoot:      a.Cfg.Migration.NestedRoot,
	}
}

// Close releases every backend, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
