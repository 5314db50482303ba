package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledgerbook/internal/core"
	"ledgerbook/internal/storage"
)

// RecurringProcessor materialises recurring templates into their owner's
// budget when they become due.
type RecurringProcessor struct {
	store        storage.Store
	validator    *core.Validator
	ledgers      *LedgerService
	transactions *TransactionService
	now          func() time.Time
}

func NewRecurringProcessor(store storage.Store, ledgers *LedgerService, transactions *TransactionService, opts Options) *RecurringProcessor {
	opts = opts.withDefaults()
	return &RecurringProcessor{
		store:        store,
		validator:    opts.Validator,
		ledgers:      ledgers,
		transactions: transactions,
		now:          opts.Now,
	}
}

// CreateTemplate validates and stores a recurring template.
func (p *RecurringProcessor) CreateTemplate(ctx context.Context, params core.RecurrentTransactionParams) (core.RecurrentTransaction, error) {
	r, err := p.validator.ValidateRecurrent(params)
	if err != nil {
		return core.RecurrentTransaction{}, err
	}
	now := p.now()
	r.CreatedAt, r.UpdatedAt = now, now

	created, err := p.store.CreateRecurrent(ctx, r)
	if err != nil {
		return core.RecurrentTransaction{}, storeError("create recurrent transaction", err)
	}
	slog.InfoContext(ctx, "Recurring template created",
		"recurrent_id", created.ID,
		"user_id", created.UserID,
		"every", created.Every)
	return created, nil
}

// ProcessDue creates a transaction for every template due at now and
// returns how many were created. A failing template is logged and skipped.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	templates, err := p.store.ListRecurrent(ctx)
	if err != nil {
		return 0, storeError("list recurrent transactions", err)
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"total", len(templates),
		"processing_date", now.Format("2006-01-02"))

	processed := 0
	for _, r := range templates {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		checker, err := GetDuenessChecker(r.Every)
		if err != nil {
			slog.ErrorContext(ctx, "Skipping recurring template", "recurrent_id", r.ID, "error", err)
			continue
		}
		if !checker.IsDue(r.LastExecutionAt, now, r.StartDate) {
			continue
		}

		if err := p.materialise(ctx, r, now); err != nil {
			slog.ErrorContext(ctx, "Failed to create transaction from recurring template",
				"recurrent_id", r.ID,
				"description", r.Description,
				"error", err)
			continue
		}
		processed++
	}

	slog.InfoContext(ctx, "Recurring transaction processing complete",
		"processed", processed,
		"total_checked", len(templates))
	return processed, nil
}

func (p *RecurringProcessor) materialise(ctx context.Context, r core.RecurrentTransaction, now time.Time) error {
	budget, err := p.ledgers.ResolveBudget(ctx, r.UserID, now)
	if err != nil {
		return fmt.Errorf("resolve budget: %w", err)
	}

	t, err := p.transactions.CreateTransaction(ctx, core.BudgetLedger, core.TransactionParams{
		LedgerID:    budget.ID,
		Description: r.Description,
		Amount:      r.Amount.String(),
		Date:        now,
		Category:    r.Category,
		Type:        r.Type,
		IsEstimated: r.IsEstimated,
	})
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	// The transaction is committed; a failed stamp means it may run again.
	if err := p.store.MarkRecurrentExecuted(ctx, r.ID, now); err != nil {
		slog.ErrorContext(ctx, "Failed to update last execution date",
			"recurrent_id", r.ID,
			"error", err)
	}

	slog.InfoContext(ctx, "Created transaction from recurring template",
		"recurrent_id", r.ID,
		"transaction_id", t.ID,
		"ledger_id", budget.ID,
		"amount", t.Amount.String(),
		"every", r.Every)
	return nil
}
