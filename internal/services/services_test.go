package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ledgerbook/internal/amqp"
	"ledgerbook/internal/core"
	"ledgerbook/internal/storage"

	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, e *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Operations() []amqp.Operation {
	p.mu.Lock()
	defer p.mu.Unlock()
	ops := make([]amqp.Operation, len(p.events))
	for i, e := range p.events {
		ops[i] = e.Operation
	}
	return ops
}

type testEnv struct {
	repo         *storage.SQLiteRepository
	clock        *testClock
	events       *recordingPublisher
	opts         Options
	ledgers      *LedgerService
	transactions *TransactionService
}

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRepo(t, newTestRepo(t))
}

func newTestEnvWithRepo(t *testing.T, repo *storage.SQLiteRepository) *testEnv {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)}
	events := &recordingPublisher{}
	opts := Options{
		Validator: core.NewValidator(clock.Now),
		Now:       clock.Now,
		Publisher: events,
	}
	return &testEnv{
		repo:         repo,
		clock:        clock,
		events:       events,
		opts:         opts,
		ledgers:      NewLedgerService(repo, opts),
		transactions: NewTransactionService(repo, opts),
	}
}

func (e *testEnv) seedUser(t *testing.T, name string) core.User {
	t.Helper()
	u, err := e.repo.CreateUser(context.Background(), core.User{
		Email:        name + "@example.com",
		Username:     name,
		PasswordHash: "x",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) ledger(t *testing.T, id int64) core.Ledger {
	t.Helper()
	l, err := e.repo.GetLedger(context.Background(), id)
	require.NoError(t, err)
	return l
}

func (e *testEnv) credit(ledgerID int64, amount string) core.TransactionParams {
	return core.TransactionParams{
		LedgerID:    ledgerID,
		Description: "Salary",
		Amount:      amount,
		Date:        e.clock.Now().Add(-time.Hour),
		Category:    core.Income,
		Type:        core.Credit,
	}
}

func (e *testEnv) debit(ledgerID int64, amount string) core.TransactionParams {
	return core.TransactionParams{
		LedgerID:    ledgerID,
		Description: "Groceries",
		Amount:      amount,
		Date:        e.clock.Now().Add(-time.Hour),
		Category:    core.Groceries,
		Type:        core.Debit,
	}
}

func requireTotals(t *testing.T, l core.Ledger, credits, debits string) {
	t.Helper()
	require.Equal(t, credits, l.TotalCredits.String(), "total credits")
	require.Equal(t, debits, l.TotalDebits.String(), "total debits")
}
