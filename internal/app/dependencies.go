package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/dataservice"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/pos/internal/health"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
	"github.com/vladislavdragonenkov/pos/internal/storage/postgres"
	"github.com/vladislavdragonenkov/pos/internal/storage/redis"
)

// Демонстрационный продавец in-memory хранилища.
const (
	DemoSellerID   = "demo-seller"
	DemoSellerName = "Demo Corner Shop"
)

// Dependencies — хранилища, выбранные по настройкам.
type Dependencies struct {
	Data        dataservice.Client
	Outbox      domain.OutboxRepository
	Timeline    domain.TimelineRepository
	Idempotency domain.IdempotencyRepository
	// Checkers: проверки для /healthz, /readyz и gRPC health.
	Checkers map[string]healthcheck.Checker
	Logger   *log.Entry

	closers []func() error
}

// NewDependencies открывает хранилища по cfg.StorageDriver. Redis, если задан,
// заменяет хранилище ключей идемпотентности.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.New().WithField("component", "app")
	}
	deps := &Dependencies{
		Checkers: make(map[string]healthcheck.Checker),
		Logger:   logger,
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewDataService()
		if cfg.SeedDemoData {
			if err := seedDemoCatalog(store); err != nil {
				return nil, fmt.Errorf("seed demo catalog: %w", err)
			}
			logger.WithField("seller_id", DemoSellerID).Info("demo catalog seeded")
		}
		deps.Data = store
		deps.Outbox = memory.NewOutboxRepository()
		deps.Timeline = memory.NewTimelineRepository()
		deps.Idempotency = memory.NewIdempotencyRepository()

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires a DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, store.Close)

		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = deps.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			state, err := store.MigrationStatus(ctx)
			if err == nil {
				logger.WithFields(log.Fields{"version": state.Version, "applied": state.Applied}).Info("postgres schema is up to date")
			}
		}

		deps.Data = postgres.NewDataClient(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Timeline = postgres.NewTimelineRepository(store)
		deps.Idempotency = postgres.NewIdempotencyRepository(store)
		deps.Checkers["postgres"] = healthcheck.NewPingChecker("postgres", 0, store.Ping)

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		client, err := redis.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
		deps.closers = append(deps.closers, client.Close)
		deps.Idempotency = redis.NewIdempotencyRepository(client, "")
		deps.Checkers["redis"] = healthcheck.NewPingChecker("redis", 0, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.WithField("addr", cfg.RedisAddr).Info("redis idempotency store enabled")
	}

	return deps, nil
}

// Close закрывает открытые подключения в обратном порядке.
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func seedDemoCatalog(store *memory.DataService) error {
	if _, err := store.SeedSeller(domain.Seller{ID: DemoSellerID, DisplayName: DemoSellerName, Active: true}); err != nil {
		return err
	}
	products := []domain.Product{
		{ID: "demo-espresso", Name: "Espresso", SKU: "ESP-01", BasePrice: decimal.RequireFromString("2.50"), StockQuantity: 500},
		{ID: "demo-croissant", Name: "Croissant", SKU: "CRO-01", BasePrice: decimal.RequireFromString("3.20"), StockQuantity: 60},
		{ID: "demo-water", Name: "Still Water 0.5L", SKU: "WAT-05", BasePrice: decimal.RequireFromString("1.10"), StockQuantity: 200},
		{ID: "demo-mug", Name: "Branded Mug", SKU: "MUG-01", BasePrice: decimal.RequireFromString("12.00"), StockQuantity: 0},
	}
	for _, p := range products {
		p.SellerID = DemoSellerID
		p.Active = true
		if _, err := store.SeedProduct(p); err != nil {
			return err
		}
	}
	return nil
}
