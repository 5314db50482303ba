package main

import (
	"context"
	"flag"

	"ledgerbook/internal/core"

	"github.com/google/subcommands"
)

type txCmd struct {
	user        string
	ledgerID    int64
	ledgerType  string
	id          int64
	amount      string
	description string
	category    string
	kind        string
	date        string
	estimated   bool
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "add, update, delete or list ledger transactions" }
func (*txCmd) Usage() string {
	return `ledgerctl tx <add|update|delete|list> -user <login> -ledger <id> [-type <ledger type>] [flags]

  add     -amount <n> -desc <text> -category <c> -kind credit|debit [-date YYYY-MM-DD]
  update  -id <n> with the same flags as add; the kind cannot change
  delete  -id <n>
  list

  Every write keeps the ledger's totals in step with its transactions.
`
}

func (c *txCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Username or email of the ledger owner.")
	f.Int64Var(&c.ledgerID, "ledger", 0, "Ledger id.")
	f.StringVar(&c.ledgerType, "type", "budget", "Ledger type.")
	f.Int64Var(&c.id, "id", 0, "Transaction id (update, delete).")
	f.StringVar(&c.amount, "amount", "", "Positive amount, e.g. 12.50.")
	f.StringVar(&c.description, "desc", "", "Description.")
	f.StringVar(&c.category, "category", "", "Category.")
	f.StringVar(&c.kind, "kind", "debit", "credit or debit.")
	f.StringVar(&c.date, "date", "", "Date as YYYY-MM-DD (default today).")
	f.BoolVar(&c.estimated, "estimated", false, "Mark the amount as an estimate.")
}

func (c *txCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	action := f.Arg(0)
	switch action {
	case "add", "update", "delete", "list":
	default:
		return usageError("unknown tx action %q", action)
	}
	if c.ledgerID <= 0 {
		return usageError("-ledger is required")
	}
	if (action == "update" || action == "delete") && c.id <= 0 {
		return usageError("-id is required for %s", action)
	}
	typ, err := parseLedgerType(c.ledgerType)
	if err != nil {
		return usageError("%v", err)
	}
	date, err := parseDay(c.date)
	if err != nil {
		return usageError("invalid -date %q", c.date)
	}

	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	u, err := a.user(ctx, c.user)
	if err != nil {
		return fail(err)
	}
	// Ownership check; the engine itself works on ledger ids.
	l, err := a.ledgers.FindLedger(ctx, u.ID, c.ledgerID, typ)
	if err != nil {
		return fail(err)
	}

	switch action {
	case "add":
		t, err := a.transactions.CreateTransaction(ctx, typ, core.TransactionParams{
			LedgerID:    l.ID,
			Description: c.description,
			Amount:      c.amount,
			Date:        date,
			Category:    core.Category(c.category),
			Type:        core.TransactionType(c.kind),
			IsEstimated: c.estimated,
		})
		if err != nil {
			return fail(err)
		}
		a.printTransaction(t)
	case "update":
		t, err := a.transactions.UpdateTransaction(ctx, l.ID, typ, c.id, core.TransactionUpdate{
			Description: c.description,
			Amount:      c.amount,
			Date:        date,
			Category:    core.Category(c.category),
			Type:        core.TransactionType(c.kind),
			IsEstimated: c.estimated,
		})
		if err != nil {
			return fail(err)
		}
		a.printTransaction(t)
	case "delete":
		t, err := a.transactions.DeleteTransaction(ctx, l.ID, typ, c.id)
		if err != nil {
			return fail(err)
		}
		a.printTransaction(t)
	case "list":
		txs, err := a.transactions.ListTransactions(ctx, l.ID, typ)
		if err != nil {
			return fail(err)
		}
		for _, t := range txs {
			a.printTransaction(t)
		}
	}

	if l, err = a.ledgers.FindLedger(ctx, u.ID, l.ID, typ); err == nil {
		a.printLedger(l)
	}
	return subcommands.ExitSuccess
}
