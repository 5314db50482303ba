package backend

import (
	"context"
	"fmt"
	"log/slog"

	"ledgerbook/internal/amqp"
	"ledgerbook/internal/cache"
	"ledgerbook/internal/metrics"
	"ledgerbook/internal/services"
	"ledgerbook/internal/storage"
	"ledgerbook/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewFactory creates a new backend factory. m may be nil.
func NewFactory(logger *slog.Logger, m *metrics.Metrics) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger:  logger,
		metrics: m,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store storage.Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = f.openSQLite(config)
	case PostgresBackend:
		store, err = f.openPostgres(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	budgetCache, err := cache.New[int64](config.BudgetCache, config.BudgetCacheSize, config.BudgetCacheTTL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create budget cache: %w", err)
	}

	// The LRU keeps expired entries until touched; sweep them on the TTL.
	cleaner := cache.NewManager()
	cleaner.Register(budgetCache)
	if config.BudgetCacheTTL > 0 {
		cleaner.StartCleanup(config.BudgetCacheTTL)
	}

	opts := services.Options{
		Metrics:     f.metrics,
		BudgetCache: budgetCache,
		MaxAttempts: config.CommitMaxAttempts,
		Location:    config.Location,
	}

	// Publishing stays off unless the broker is reachable at startup.
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.metrics)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without ledger events", "error", err)
		} else {
			opts.Publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Initialized backend",
		"type", config.Type,
		"budget_cache", config.BudgetCache,
		"events_enabled", opts.Publisher != nil)

	return &BackendResult{
		Store:   store,
		Options: opts,
		Cleanup: func() error {
			if config.BudgetCacheTTL > 0 {
				cleaner.Stop()
			}
			if amqpClient != nil {
				amqpClient.Close()
			}
			if c, ok := budgetCache.(interface{ Close() }); ok {
				c.Close()
			}
			return store.Close()
		},
	}, nil
}

func (f *DefaultFactory) openSQLite(config Config) (storage.Store, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Opened SQLite store", "db_path", config.SQLiteDBPath)
	return repo, nil
}

func (f *DefaultFactory) openPostgres(ctx context.Context, config Config) (storage.Store, error) {
	store, err := postgres.Open(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
	}
	f.logger.Info("Opened Postgres store")
	return store, nil
}
