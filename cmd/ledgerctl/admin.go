package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"ledgerbook/internal/core"

	"github.com/google/subcommands"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply database migrations" }
func (*migrateCmd) Usage() string {
	return `ledgerctl migrate

  Brings the configured database schema up to date.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()
	fmt.Printf("%s schema is up to date\n", a.cfg.DataBackend)
	return subcommands.ExitSuccess
}

type addUserCmd struct {
	email    string
	username string
}

func (*addUserCmd) Name() string     { return "adduser" }
func (*addUserCmd) Synopsis() string { return "register a user" }
func (*addUserCmd) Usage() string {
	return `ledgerctl adduser -email <email> -username <name>

  Registers a user. The password is read from LEDGER_PASSWORD.
`
}

func (c *addUserCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Email address.")
	f.StringVar(&c.username, "username", "", "Username (3-20 characters).")
}

func (c *addUserCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	password := os.Getenv("LEDGER_PASSWORD")
	if password == "" {
		return usageError("LEDGER_PASSWORD must be set")
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	u, err := a.users.Register(ctx, core.RegisterParams{
		Email:    c.email,
		Username: c.username,
		Password: password,
	})
	if err != nil {
		return fail(err)
	}
	fmt.Printf("user #%d %s <%s>\n", u.ID, u.Username, u.Email)
	return subcommands.ExitSuccess
}

type reconcileCmd struct {
	ledgerID int64
	repair   bool
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "check a ledger's totals against its transactions" }
func (*reconcileCmd) Usage() string {
	return `ledgerctl reconcile -ledger <id> [-repair]

  Recomputes a ledger's totals from its transactions and reports drift.
  With -repair the stored totals are rewritten.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.ledgerID, "ledger", 0, "Ledger id.")
	f.BoolVar(&c.repair, "repair", false, "Rewrite drifted totals.")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.ledgerID <= 0 {
		return usageError("-ledger is required")
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	report, err := a.ledgers.Reconcile(ctx, c.ledgerID, c.repair)
	if err != nil {
		return fail(err)
	}
	a.printLedger(report.Ledger)
	if !report.Drift {
		fmt.Println("totals match transactions")
		return subcommands.ExitSuccess
	}
	fmt.Printf("drift: transactions sum to credits %s, debits %s\n",
		a.money(report.ComputedCredits), a.money(report.ComputedDebits))
	if report.Repaired {
		fmt.Println("totals repaired")
		return subcommands.ExitSuccess
	}
	return subcommands.ExitFailure
}
