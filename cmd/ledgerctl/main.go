// Command ledgerctl administers a ledgerbook store from the shell.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"ledgerbook/internal/cli"

	"github.com/google/subcommands"
)

func main() {
	cli.LoadEnvFile()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

var commands = []subcommands.Command{
	&migrateCmd{},
	&addUserCmd{},
	&budgetCmd{},
	&loanCmd{},
	&ledgersCmd{},
	&txCmd{},
	&reconcileCmd{},
	&recurringCmd{},
}
