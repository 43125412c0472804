package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/portfolio-analysis/internal/adapters/ibflex"
	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

type anonymizeCmd struct {
	out string
	nav float64
}

func (*anonymizeCmd) Name() string     { return "anonymize" }
func (*anonymizeCmd) Synopsis() string { return "rewrite a Flex statement for a synthetic NAV" }
func (*anonymizeCmd) Usage() string {
	return `anonymize -out <file.xml> [-nav <amount>] <statement.xml>

  Keeps the symbols of the statement but resizes every position so the
  account is worth -nav: 85% spread over the equities, 15% over the
  options, and the rest in cash.
`
}

func (c *anonymizeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "out", "", "output XML file")
	f.Float64Var(&c.nav, "nav", ibflex.DefaultNAV.InexactFloat64(), "synthetic net asset value")
}

func (c *anonymizeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || c.out == "" {
		fmt.Fprintln(os.Stderr, "usage: anonymize -out <file.xml> <statement.xml>")
		return subcommands.ExitUsageError
	}
	if c.nav <= 0 {
		fmt.Fprintln(os.Stderr, "-nav must be positive")
		return subcommands.ExitUsageError
	}
	_, closeLog, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer closeLog()

	in, err := os.Open(f.Arg(0))
	if err != nil {
		slog.Error("open statement", "err", err)
		return subcommands.ExitFailure
	}
	defer in.Close()

	out, err := os.Create(c.out)
	if err != nil {
		slog.Error("create output", "err", err)
		return subcommands.ExitFailure
	}

	res, err := ibflex.Anonymize(in, out, decimal.NewFromFloat(c.nav))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		slog.Error("anonymize failed", "err", err)
		os.Remove(c.out)
		return subcommands.ExitFailure
	}

	slog.Info("statement anonymized",
		"path", c.out,
		"nav", domain.FormatMoney(res.NAV, ""),
		"positions_value", domain.FormatMoney(res.TotalPositions, ""),
		"equities", res.Equities,
		"options", res.Options,
		"cash", domain.FormatMoney(res.Cash, ""),
	)
	return subcommands.ExitSuccess
}
