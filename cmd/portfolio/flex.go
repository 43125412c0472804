package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"

	"github.com/alejandrodnm/portfolio-analysis/internal/adapters/ibflex"
)

const defaultFlexOutput = "data/interactivebrokers/source/flex_report.xml"

type flexDownloadCmd struct {
	token   string
	queryID string
	out     string
	json    bool
}

func (*flexDownloadCmd) Name() string     { return "flex-download" }
func (*flexDownloadCmd) Synopsis() string { return "download a Flex Query statement from Interactive Brokers" }
func (*flexDownloadCmd) Usage() string {
	return `flex-download [-token <token>] [-query <id>] [-out <file.xml>] [-json]

  Requests the statement from the Flex Web Service, waits until it is
  generated and writes the XML. Token and query id default to the config
  (IB_FLEX_TOKEN, IB_FLEX_QUERY_ID).
`
}

func (c *flexDownloadCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.token, "token", "", "Flex Web Service token (overrides config)")
	f.StringVar(&c.queryID, "query", "", "Flex Query id (overrides config)")
	f.StringVar(&c.out, "out", defaultFlexOutput, "output XML file")
	f.BoolVar(&c.json, "json", false, "also write the JSON snapshot next to the XML")
}

func (c *flexDownloadCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer closeLog()

	token, queryID := cfg.Flex.Token, cfg.Flex.QueryID
	if c.token != "" {
		token = c.token
	}
	if c.queryID != "" {
		queryID = c.queryID
	}
	if token == "" || queryID == "" {
		fmt.Fprintln(os.Stderr, "flex token and query id are required (-token/-query or IB_FLEX_TOKEN/IB_FLEX_QUERY_ID)")
		return subcommands.ExitUsageError
	}

	data, err := ibflex.NewFlexClient(cfg.Flex.BaseURL).Download(ctx, token, queryID)
	if err != nil {
		slog.Error("flex download failed", "err", err)
		return subcommands.ExitFailure
	}
	if err := os.MkdirAll(filepath.Dir(c.out), 0o755); err != nil {
		slog.Error("create output dir", "err", err)
		return subcommands.ExitFailure
	}
	if err := os.WriteFile(c.out, data, 0o644); err != nil {
		slog.Error("write statement", "err", err, "path", c.out)
		return subcommands.ExitFailure
	}
	slog.Info("flex statement saved", "path", c.out, "bytes", len(data))

	if c.json {
		snap, err := ibflex.Parse(bytes.NewReader(data))
		if err != nil {
			slog.Error("parse statement", "err", err)
			return subcommands.ExitFailure
		}
		jsonPath := strings.TrimSuffix(c.out, filepath.Ext(c.out)) + ".json"
		if err := writeSnapshotJSON(jsonPath, snap); err != nil {
			slog.Error("write snapshot", "err", err, "path", jsonPath)
			return subcommands.ExitFailure
		}
		slog.Info("snapshot saved", "path", jsonPath, "positions", len(snap.Positions))
	}
	return subcommands.ExitSuccess
}
