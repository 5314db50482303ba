package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"ledgerbook/internal/core"

	"github.com/google/subcommands"
)

type recurringCmd struct {
	user        string
	amount      string
	description string
	category    string
	kind        string
	every       string
	start       string
}

func (*recurringCmd) Name() string     { return "recurring" }
func (*recurringCmd) Synopsis() string { return "define recurring transactions or run the due ones" }
func (*recurringCmd) Usage() string {
	return `ledgerctl recurring <add|run> [flags]

  add  -user <login> -amount <n> -desc <text> -category <c> -kind credit|debit
       -every daily|weekly|monthly|yearly [-start YYYY-MM-DD]
  run  creates a transaction in the current budget for every due template
`
}

func (c *recurringCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Username or email.")
	f.StringVar(&c.amount, "amount", "", "Positive amount.")
	f.StringVar(&c.description, "desc", "", "Description.")
	f.StringVar(&c.category, "category", "", "Budget category.")
	f.StringVar(&c.kind, "kind", "debit", "credit or debit.")
	f.StringVar(&c.every, "every", "monthly", "Repetition.")
	f.StringVar(&c.start, "start", "", "First day the template applies (default today).")
}

func (c *recurringCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	action := f.Arg(0)
	if action != "add" && action != "run" {
		return usageError("unknown recurring action %q", action)
	}
	start, err := parseDay(c.start)
	if err != nil {
		return usageError("invalid -start %q", c.start)
	}

	a, err := openApp(ctx)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	if action == "run" {
		n, err := a.recurring.ProcessDue(ctx, time.Now())
		if err != nil {
			return fail(err)
		}
		fmt.Printf("%d recurring transactions created\n", n)
		return subcommands.ExitSuccess
	}

	u, err := a.user(ctx, c.user)
	if err != nil {
		return fail(err)
	}
	r, err := a.recurring.CreateTemplate(ctx, core.RecurrentTransactionParams{
		UserID:      u.ID,
		Description: c.description,
		Amount:      c.amount,
		StartDate:   start,
		Every:       core.RepetitionTypes(c.every),
		Category:    core.Category(c.category),
		Type:        core.TransactionType(c.kind),
	})
	if err != nil {
		return fail(err)
	}
	fmt.Printf("recurring #%d %s %s every %s from %s\n",
		r.ID, r.Description, a.money(r.Amount), r.Every, r.StartDate.Format("2006-01-02"))
	return subcommands.ExitSuccess
}
