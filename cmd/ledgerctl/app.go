package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"ledgerbook/internal/backend"
	"ledgerbook/internal/cli"
	"ledgerbook/internal/config"
	"ledgerbook/internal/core"
	ledgerlog "ledgerbook/internal/log"
	"ledgerbook/internal/services"

	"github.com/google/subcommands"
)

// app holds the services a command runs against.
type app struct {
	cfg          *config.Config
	backend      *backend.BackendResult
	users        *services.UserService
	ledgers      *services.LedgerService
	transactions *services.TransactionService
	recurring    *services.RecurringProcessor
}

func openApp(ctx context.Context) (*app, error) {
	logger := cli.SetupLogger(ledgerlog.ComponentCLI)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res, err := cli.OpenBackend(ctx, logger, cfg, nil)
	if err != nil {
		return nil, err
	}
	ledgers := services.NewLedgerService(res.Store, res.Options)
	transactions := services.NewTransactionService(res.Store, res.Options)
	return &app{
		cfg:          cfg,
		backend:      res,
		users:        services.NewUserService(res.Store, res.Options),
		ledgers:      ledgers,
		transactions: transactions,
		recurring:    services.NewRecurringProcessor(res.Store, ledgers, transactions, res.Options),
	}, nil
}

func (a *app) Close() {
	if err := a.backend.Cleanup(); err != nil {
		fmt.Fprintln(os.Stderr, "close backend:", err)
	}
}

// user resolves a username or email to its id.
func (a *app) user(ctx context.Context, login string) (core.User, error) {
	if login == "" {
		return core.User{}, errors.New("-user is required")
	}
	u, err := a.backend.Store.GetUserByLogin(ctx, login)
	if err != nil {
		return core.User{}, fmt.Errorf("find user %q: %w", login, err)
	}
	return u, nil
}

func (a *app) money(m core.Money) string {
	return m.Format(a.cfg.Currency)
}

func (a *app) printLedger(l core.Ledger) {
	period := ""
	if l.Year > 0 {
		period = fmt.Sprintf(" %04d-%02d", l.Year, l.Month)
	}
	fmt.Printf("#%d %s%s %q  credits %s  debits %s  balance %s  (v%d)\n",
		l.ID, l.Type, period, l.Title,
		a.money(l.TotalCredits), a.money(l.TotalDebits), a.money(l.Balance()), l.Version)
}

func (a *app) printTransaction(t core.Transaction) {
	sign := "+"
	if t.Type == core.Debit {
		sign = "-"
	}
	fmt.Printf("#%d %s %s%s %-14s %s\n",
		t.ID, t.Date.Format("2006-01-02"), sign, a.money(t.Amount), t.Category, t.Description)
}

// parseDay parses YYYY-MM-DD, defaulting to now.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

// fail prints err, expanding validation errors field by field.
func fail(err error) subcommands.ExitStatus {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintln(os.Stderr, "Validation failed:")
		for _, fe := range verr.Errors {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", fe.Field, fe.Message)
		}
		return subcommands.ExitUsageError
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return subcommands.ExitFailure
}

func usageError(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

func parseLedgerType(s string) (core.LedgerType, error) {
	t := core.LedgerType(strings.ToLower(s))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown ledger type %q", s)
	}
	return t, nil
}
