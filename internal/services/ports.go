// Package services provides the ledger accounting engine and the
// orchestration around it.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledgerbook/internal/amqp"
	"ledgerbook/internal/cache"
	"ledgerbook/internal/core"
	"ledgerbook/internal/metrics"
)

const defaultMaxAttempts = 5

// EventPublisher announces committed ledger changes. *amqp.Client
// implements it.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error
}

// Options configures the services. Every field is optional.
type Options struct {
	Validator *core.Validator
	// Now is the clock used for timestamps and budget resolution.
	Now         func() time.Time
	Publisher   EventPublisher
	Metrics     *metrics.Metrics
	BudgetCache cache.Cache[int64]
	// MaxAttempts bounds how often a unit of work is retried after a
	// concurrent modification.
	MaxAttempts int
	// Location decides which calendar month a reference date falls in.
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Validator == nil {
		o.Validator = core.NewValidator(o.Now)
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// publish sends a best-effort event. Failures are logged only: the change
// is already committed.
func publish(ctx context.Context, p EventPublisher, e *amqp.LedgerEvent) {
	if p == nil {
		return
	}
	if err := p.PublishLedgerEvent(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event_id", e.ID,
			"ledger_id", e.LedgerID,
			"operation", e.Operation,
			"error", err)
	}
}

// storeError passes domain errors through with op as context and turns any
// other store failure into a *core.IntegrityError.
func storeError(op string, err error) error {
	if core.IsDomainError(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &core.IntegrityError{Op: op, Err: err}
}
