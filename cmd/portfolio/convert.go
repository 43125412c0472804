package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"

	"github.com/alejandrodnm/portfolio-analysis/internal/adapters/ibflex"
	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

type convertCmd struct {
	out string
}

func (*convertCmd) Name() string     { return "convert" }
func (*convertCmd) Synopsis() string { return "convert an IB Flex XML statement to a JSON snapshot" }
func (*convertCmd) Usage() string {
	return `convert [-out <file.json>] <statement.xml>

  Parses the open positions and cash of a Flex statement and writes them
  as a JSON snapshot that analyze accepts as -source.
`
}

func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "out", "", "output JSON file (default: input with .json extension)")
}

func (c *convertCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "exactly one statement file is required")
		return subcommands.ExitUsageError
	}
	_, closeLog, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer closeLog()

	in := f.Arg(0)
	out := c.out
	if out == "" {
		out = strings.TrimSuffix(in, filepath.Ext(in)) + ".json"
	}

	file, err := os.Open(in)
	if err != nil {
		slog.Error("open statement", "err", err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	snap, err := ibflex.Parse(file)
	if err != nil {
		slog.Error("parse statement", "err", err, "path", in)
		return subcommands.ExitFailure
	}
	if err := writeSnapshotJSON(out, snap); err != nil {
		slog.Error("write snapshot", "err", err, "path", out)
		return subcommands.ExitFailure
	}

	slog.Info("snapshot converted",
		"path", out,
		"positions", len(snap.Positions),
		"equities", len(snap.Equities()),
		"cash", domain.FormatMoney(snap.Cash, snap.Currency),
	)
	return subcommands.ExitSuccess
}

func writeSnapshotJSON(path string, snap domain.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ibflex.EncodeJSON(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
