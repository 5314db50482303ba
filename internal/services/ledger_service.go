package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledgerbook/internal/amqp"
	"ledgerbook/internal/core"
	"ledgerbook/internal/storage"
)

// LedgerService creates and reads ledgers.
type LedgerService struct {
	store     storage.Store
	validator *core.Validator
	resolver  *BudgetResolver
	commit    *committer
	publisher EventPublisher
	now       func() time.Time
	loc       *time.Location
}

func NewLedgerService(store storage.Store, opts Options) *LedgerService {
	opts = opts.withDefaults()
	return &LedgerService{
		store:     store,
		validator: opts.Validator,
		resolver:  NewBudgetResolver(store, opts),
		commit:    newCommitter(store, opts),
		publisher: opts.Publisher,
		now:       opts.Now,
		loc:       opts.Location,
	}
}

// CreateBudget creates the budget of date's month. It fails with a
// *core.ConstraintViolationError if that budget already exists; use
// ResolveBudget to get or create.
func (s *LedgerService) CreateBudget(ctx context.Context, userID int64, date time.Time) (core.Ledger, error) {
	return s.createLedger(ctx, core.BudgetParams{
		UserID: userID,
		Date:   core.MonthStart(date.In(s.loc)),
	})
}

// ResolveBudget returns the budget of date's month, creating it if needed.
func (s *LedgerService) ResolveBudget(ctx context.Context, userID int64, date time.Time) (core.Ledger, error) {
	return s.resolver.Resolve(ctx, userID, date)
}

// FindOrCreateBudget resolves the budget of the current month.
func (s *LedgerService) FindOrCreateBudget(ctx context.Context, userID int64) (core.Ledger, error) {
	return s.resolver.Resolve(ctx, userID, s.now())
}

func (s *LedgerService) CreateLoan(ctx context.Context, p core.LoanParams) (core.Ledger, error) {
	return s.createLedger(ctx, p)
}

func (s *LedgerService) CreateSavings(ctx context.Context, p core.SavingsParams) (core.Ledger, error) {
	return s.createLedger(ctx, p)
}

func (s *LedgerService) CreatePayableReceivable(ctx context.Context, p core.PayableReceivableParams) (core.Ledger, error) {
	return s.createLedger(ctx, p)
}

// createLedger is the single creation path of every ledger variant.
func (s *LedgerService) createLedger(ctx context.Context, p core.NewLedger) (core.Ledger, error) {
	draft, err := s.validator.ValidateLedger(p)
	if err != nil {
		return core.Ledger{}, err
	}
	now := s.now()
	draft.CreatedAt, draft.UpdatedAt = now, now

	l, err := s.store.CreateLedger(ctx, draft)
	if err != nil {
		if core.IsDomainError(err) {
			return core.Ledger{}, err
		}
		return core.Ledger{}, &core.IntegrityError{Op: "create ledger", Err: err}
	}

	slog.InfoContext(ctx, "Ledger created",
		"ledger_id", l.ID,
		"user_id", l.UserID,
		"type", l.Type,
		"year", l.Year,
		"month", l.Month)
	publish(ctx, s.publisher, amqp.NewLedgerEvent(amqp.OpLedgerCreated, l, 0, now))
	return l, nil
}

// FindLedger returns a ledger owned by userID. An empty typ matches any type.
func (s *LedgerService) FindLedger(ctx context.Context, userID, ledgerID int64, typ core.LedgerType) (core.Ledger, error) {
	l, err := s.store.FindLedger(ctx, userID, ledgerID, typ)
	if err != nil {
		return core.Ledger{}, storeError("find ledger", err)
	}
	return l, nil
}

// FindLedgers lists a user's ledgers of one type, newest period first.
func (s *LedgerService) FindLedgers(ctx context.Context, userID int64, typ core.LedgerType) ([]core.Ledger, error) {
	ls, err := s.store.ListLedgers(ctx, userID, typ)
	if err != nil {
		return nil, storeError("list ledgers", err)
	}
	return ls, nil
}

// ReconcileReport compares a ledger's stored totals with the sums of its
// transactions.
type ReconcileReport struct {
	Ledger          core.Ledger
	ComputedCredits core.Money
	ComputedDebits  core.Money
	Drift           bool
	Repaired        bool
}

// Reconcile recomputes the totals of a ledger from its transactions while
// holding the ledger lock. With repair, drifted totals are overwritten.
func (s *LedgerService) Reconcile(ctx context.Context, ledgerID int64, repair bool) (ReconcileReport, error) {
	var report ReconcileReport
	now := s.now()

	err := s.commit.run(ctx, "reconcile", func(tx storage.Tx) error {
		report = ReconcileReport{}

		l, err := tx.LockLedger(ctx, ledgerID, "")
		if err != nil {
			return err
		}
		txs, err := tx.ListTransactions(ctx, ledgerID)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}

		credits, debits := core.Totals(txs)
		report.Ledger = l
		report.ComputedCredits = credits
		report.ComputedDebits = debits
		report.Drift = !credits.Equal(l.TotalCredits) || !debits.Equal(l.TotalDebits)
		if !report.Drift || !repair {
			return nil
		}

		l.TotalCredits, l.TotalDebits = credits, debits
		updated, err := tx.UpdateLedgerTotals(ctx, l, now)
		if err != nil {
			return fmt.Errorf("repair ledger %d: %w", ledgerID, err)
		}
		report.Ledger = updated
		report.Repaired = true
		return nil
	})
	if err != nil {
		return ReconcileReport{}, err
	}

	if report.Drift {
		slog.WarnContext(ctx, "Ledger totals drifted",
			"ledger_id", ledgerID,
			"computed_credits", report.ComputedCredits.String(),
			"computed_debits", report.ComputedDebits.String(),
			"repaired", report.Repaired)
	}
	if report.Repaired {
		publish(ctx, s.publisher, amqp.NewLedgerEvent(amqp.OpLedgerReconciled, report.Ledger, 0, now))
	}
	return report, nil
}
