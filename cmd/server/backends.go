package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	accessservice "custody/internal/access/service"
	accessstore "custody/internal/access/store"
	"custody/internal/ledger"
	"custody/internal/platform/config"
	"custody/internal/platform/kafka"
	"custody/internal/platform/postgres"
	"custody/internal/platform/redis"
	vestingservice "custody/internal/vesting/service"
	vestingstore "custody/internal/vesting/store"
	id "custody/pkg/domain"
	audit "custody/pkg/platform/audit"
	auditmemory "custody/pkg/platform/audit/store/memory"
	auditpostgres "custody/pkg/platform/audit/store/postgres"
	"custody/pkg/platform/audit/worker"
)

// assetLedger is what custodians move funds through plus issuance for the
// ledger routes.
type assetLedger interface {
	vestingservice.Ledger
	Mint(ctx context.Context, asset id.AssetID, account id.AccountID, amount uint64) error
}

// backends holds the storage selected by configuration.
type backends struct {
	custodians vestingservice.Store
	ledger     assetLedger
	roleStore  accessservice.Store
	auditStore audit.Store
	// tx is nil for the in-memory backend, which uses the sharded lock.
	tx    vestingservice.CustodianTx
	relay *worker.Worker

	db       *sql.DB
	redis    *redis.Client
	producer *kafka.Producer
}

func openBackends(ctx context.Context, cfg config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{}
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			b.Close()
			return nil, err
		}
		custodians := vestingstore.NewPostgres(db)
		outbox := auditpostgres.New(db)
		b.custodians = custodians
		b.tx = custodians
		b.ledger = ledger.NewPostgres(db)
		b.roleStore = accessstore.NewPostgres(db)
		b.auditStore = outbox

		if len(cfg.Kafka.Brokers) > 0 {
			producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				b.Close()
				return nil, err
			}
			b.producer = producer
			b.relay = worker.NewWorker(outbox, producer,
				worker.WithLogger(log),
				worker.WithInterval(cfg.Kafka.PollInterval),
				worker.WithBatchSize(cfg.Kafka.BatchSize),
			)
		}
	default:
		b.custodians = vestingstore.NewInMemory()
		b.ledger = ledger.NewInMemory()
		b.roleStore = accessstore.NewInMemory()
		b.auditStore = auditmemory.NewInMemoryStore()
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		b.Close()
		return nil, err
	}
	if client != nil {
		b.redis = client
		b.roleStore = accessstore.NewRedis(client.Client, cfg.Redis.KeyPrefix)
		log.Info("role registry backed by redis")
	}
	return b, nil
}

// Health pings every external dependency.
func (b *backends) Health(ctx context.Context) error {
	var errs []error
	if b.db != nil {
		if err := b.db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if b.redis != nil {
		if err := b.redis.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if b.producer != nil {
		if err := b.producer.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (b *backends) Close() {
	if b.producer != nil {
		b.producer.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}
