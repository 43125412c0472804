package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/alejandrodnm/portfolio-analysis/internal/adapters/notify"
	"github.com/alejandrodnm/portfolio-analysis/internal/adapters/storage"
)

type historyCmd struct {
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list previous analysis runs" }
func (*historyCmd) Usage() string {
	return `history [-n <runs>]

  Lists the most recent runs stored in the run history database.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 10, "number of runs to show (0 = all)")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer closeLog()

	if cfg.Storage.DSN == "" {
		fmt.Fprintln(os.Stderr, "run history is disabled (storage.dsn is empty)")
		return subcommands.ExitUsageError
	}

	db, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open history: %v\n", err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, c.limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list runs: %v\n", err)
		return subcommands.ExitFailure
	}
	notify.NewConsole().PrintHistory(runs)
	return subcommands.ExitSuccess
}
