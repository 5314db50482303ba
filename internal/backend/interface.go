package backend

import (
	"context"
	"time"

	"ledgerbook/internal/cache"
	"ledgerbook/internal/services"
	"ledgerbook/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is an open store plus the service options wired around it.
type BackendResult struct {
	Store   storage.Store
	Options services.Options
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the store described by config and wires the
	// publisher, cache and metrics the services use.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string

	// Ledger events; empty URL disables publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Engine
	Location          *time.Location
	CommitMaxAttempts int
	BudgetCache       cache.Kind
	BudgetCacheSize   int
	BudgetCacheTTL    time.Duration
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
