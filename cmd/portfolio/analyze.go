package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/subcommands"

	"github.com/alejandrodnm/portfolio-analysis/config"
	"github.com/alejandrodnm/portfolio-analysis/internal/adapters/analyst"
	"github.com/alejandrodnm/portfolio-analysis/internal/adapters/ibflex"
	"github.com/alejandrodnm/portfolio-analysis/internal/adapters/notify"
	"github.com/alejandrodnm/portfolio-analysis/internal/adapters/report"
	"github.com/alejandrodnm/portfolio-analysis/internal/adapters/storage"
	"github.com/alejandrodnm/portfolio-analysis/internal/adapters/yahoo"
	"github.com/alejandrodnm/portfolio-analysis/internal/application/analysis"
	"github.com/alejandrodnm/portfolio-analysis/internal/optimizer"
	"github.com/alejandrodnm/portfolio-analysis/internal/ports"
)

const defaultSource = "data/interactivebrokers/source/sample.anonymized.xml"

type analyzeCmd struct {
	source       string
	output       string
	skipAnalysis bool
	interactive  bool
	promptFile   string
	model        string
	trials       int
	seed         uint64
	retainTrials bool
}

func (*analyzeCmd) Name() string     { return "analyze" }
func (*analyzeCmd) Synopsis() string { return "analyze a position snapshot and recommend a max-Sharpe allocation" }
func (*analyzeCmd) Usage() string {
	return `analyze [-source <file.xml|file.json>] [-output <dir>] [-skip-analysis] [-interactive]

  Loads the IB Flex snapshot, prints its composition, runs the Monte Carlo
  optimization over the equity holdings, writes the base reports and asks
  the configured analyst for a summary report.
`
}

func (c *analyzeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.source, "source", defaultSource, "IB Flex XML (or JSON snapshot) to analyze")
	f.StringVar(&c.output, "output", "", "output directory (overrides config)")
	f.BoolVar(&c.skipAnalysis, "skip-analysis", false, "skip the external analyst")
	f.BoolVar(&c.interactive, "interactive", false, "chat with the analyst instead of writing a summary")
	f.StringVar(&c.promptFile, "prompt-file", "", "prompt file for the analyst (overrides config)")
	f.StringVar(&c.model, "model", "", "analyst model (overrides config)")
	f.IntVar(&c.trials, "trials", 0, "Monte Carlo trial budget (overrides config)")
	f.Uint64Var(&c.seed, "seed", 0, "random seed, 0 keeps the config value")
	f.BoolVar(&c.retainTrials, "retain-trials", false, "write every trial to monte_carlo_trials.csv")
}

func (c *analyzeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer closeLog()
	c.applyOverrides(cfg)

	slog.Info("portfolio analysis starting",
		"source", c.source,
		"output", cfg.Output.Dir,
		"trials", cfg.Optimizer.Trials,
		"seed", cfg.Optimizer.Seed,
		"analysis", !c.skipAnalysis,
	)

	prices := yahoo.NewClient(marketDataConfig(cfg))
	driver := optimizer.NewDriver(optimizer.Config{
		Trials:              cfg.Optimizer.Trials,
		AnnualizationFactor: cfg.Optimizer.AnnualizationFactor,
		Seed:                cfg.Optimizer.Seed,
		RetainTrials:        cfg.Optimizer.RetainTrials,
	}, prices)

	var store ports.RunStore
	if cfg.Storage.DSN != "" {
		db, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Warn("run history disabled", "err", err, "dsn", cfg.Storage.DSN)
		} else {
			defer db.Close()
			store = db
		}
	}

	var adv ports.Analyst
	if !c.skipAnalysis {
		a, err := analyst.New(ctx, analyst.Options{
			Provider: cfg.Analysis.Provider,
			APIKey:   cfg.APIKey(),
			Model:    cfg.Analysis.Model,
			BaseURL:  cfg.Analysis.BaseURL,
		})
		if err != nil {
			slog.Error("analyst unavailable", "err", err, "provider", cfg.Analysis.Provider)
		} else {
			adv = a
		}
	}

	svc := analysis.New(
		analysis.Config{
			MaxFileBytes:    cfg.Analysis.MaxFileBytes,
			AnalysisTimeout: cfg.AnalysisTimeout(),
		},
		ibflex.NewLoader(),
		driver,
		report.NewWriter(true),
		notify.NewConsole(),
		store,
		adv,
	)

	run, err := svc.Run(ctx, analysis.Request{
		Source:       c.source,
		OutputDir:    cfg.Output.Dir,
		SkipAnalysis: c.skipAnalysis,
		Interactive:  c.interactive,
		PromptFile:   cfg.Analysis.PromptFile,
		Model:        cfg.Analysis.Model,
	})
	switch {
	case errors.Is(err, analysis.ErrSourceNotFound):
		slog.Error("source file not found", "source", c.source)
		return subcommands.ExitFailure
	case errors.Is(err, analysis.ErrAnalysisFailed):
		slog.Error("external analysis failed", "err", err, "output", cfg.Output.Dir)
		return subcommands.ExitFailure
	case err != nil:
		slog.Error("analysis failed", "err", err)
		return subcommands.ExitFailure
	}

	slog.Info("portfolio analysis finished", "id", run.ID, "result", run.Optimization.String())
	return subcommands.ExitSuccess
}

func (c *analyzeCmd) applyOverrides(cfg *config.Config) {
	if c.output != "" {
		cfg.Output.Dir = c.output
	}
	if c.promptFile != "" {
		cfg.Analysis.PromptFile = c.promptFile
	}
	if c.model != "" {
		cfg.Analysis.Model = c.model
	}
	if c.trials > 0 {
		cfg.Optimizer.Trials = c.trials
	}
	if c.seed != 0 {
		cfg.Optimizer.Seed = c.seed
	}
	if c.retainTrials {
		cfg.Optimizer.RetainTrials = true
	}
}

func marketDataConfig(cfg *config.Config) yahoo.Config {
	yc := yahoo.DefaultConfig()
	if cfg.MarketData.BaseURL != "" {
		yc.BaseURLs = []string{cfg.MarketData.BaseURL}
	}
	yc.Range = cfg.MarketData.Range
	yc.Interval = cfg.MarketData.Interval
	yc.RequestsPerSecond = cfg.MarketData.RequestsPerSecond
	yc.Concurrency = cfg.MarketData.Concurrency
	yc.Timeout = cfg.MarketDataTimeout()
	return yc
}
