package main

import (
	"context"
	"flag"

	"ledgerbook/internal/core"

	"github.com/google/subcommands"
)

type budgetCmd struct {
	user  string
	month string
}

func (*budgetCmd) Name() string     { return "budget" }
func (*budgetCmd) Synopsis() string { return "show the budget of a month, creating it if needed" }
func (*budgetCmd) Usage() string {
	return `ledgerctl budget -user <login> [-month YYYY-MM]

  Resolves the user's budget for the month (default: current month).
`
}

func (c *budgetCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Username or email.")
	f.StringVar(&c.month, "month", "", "Month as YYYY-MM.")
}

func (c *budgetCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	day := ""
	if c.month != "" {
		day = c.month + "-01"
	}
	date, err := parseDay(day)
	if err != nil {
		return usageError("invalid -month %q", c.month)
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
	l, err := a.ledgers.ResolveBudget(ctx, u.ID, date)
	if err != nil {
		return fail(err)
	}
	a.printLedger(l)
	return subcommands.ExitSuccess
}

type loanCmd struct {
	user        string
	kind        string
	title       string
	description string
}

func (*loanCmd) Name() string     { return "loan" }
func (*loanCmd) Synopsis() string { return "create a loan, savings, payable or receivable ledger" }
func (*loanCmd) Usage() string {
	return `ledgerctl loan -user <login> -title <title> [-type loan|savings|payable|receivable] [-desc <text>]

  Creates a ledger that is not tied to a month.
`
}

func (c *loanCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Username or email.")
	f.StringVar(&c.kind, "type", "loan", "Ledger type.")
	f.StringVar(&c.title, "title", "", "Ledger title.")
	f.StringVar(&c.description, "desc", "", "Ledger description.")
}

func (c *loanCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	typ, err := parseLedgerType(c.kind)
	if err != nil || typ == core.BudgetLedger {
		return usageError("invalid -type %q", c.kind)
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
	now, _ := parseDay("")

	var l core.Ledger
	switch typ {
	case core.LoanLedger:
		l, err = a.ledgers.CreateLoan(ctx, core.LoanParams{UserID: u.ID, Title: c.title, Description: c.description, Date: now})
	case core.SavingsLedger:
		l, err = a.ledgers.CreateSavings(ctx, core.SavingsParams{UserID: u.ID, Title: c.title, Description: c.description, Date: now})
	default:
		l, err = a.ledgers.CreatePayableReceivable(ctx, core.PayableReceivableParams{UserID: u.ID, Type: typ, Title: c.title, Description: c.description, Date: now})
	}
	if err != nil {
		return fail(err)
	}
	a.printLedger(l)
	return subcommands.ExitSuccess
}

type ledgersCmd struct {
	user string
	kind string
}

func (*ledgersCmd) Name() string     { return "ledgers" }
func (*ledgersCmd) Synopsis() string { return "list a user's ledgers of one type" }
func (*ledgersCmd) Usage() string {
	return `ledgerctl ledgers -user <login> [-type budget|loan|savings|payable|receivable]
`
}

func (c *ledgersCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Username or email.")
	f.StringVar(&c.kind, "type", "budget", "Ledger type.")
}

func (c *ledgersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	typ, err := parseLedgerType(c.kind)
	if err != nil {
		return usageError("%v", err)
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
	ls, err := a.ledgers.FindLedgers(ctx, u.ID, typ)
	if err != nil {
		return fail(err)
	}
	for _, l := range ls {
		a.printLedger(l)
	}
	return subcommands.ExitSuccess
}
