package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"

	"github.com/alejandrodnm/portfolio-analysis/config"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to config file")
	verbose    = flag.Bool("verbose", false, "set log level to debug")
	logFormat  = flag.String("format", "", "log format: text|json (overrides config)")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, "portfolio")
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&analyzeCmd{}, "analysis")
	commander.Register(&historyCmd{}, "analysis")
	commander.Register(&flexDownloadCmd{}, "interactive brokers")
	commander.Register(&convertCmd{}, "interactive brokers")
	commander.Register(&anonymizeCmd{}, "interactive brokers")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := commander.Execute(ctx)
	cancel()
	os.Exit(int(code))
}

// loadConfig carga y valida la configuración y deja el logger listo.
// El cierre devuelto libera el archivo de log, si lo hay.
func loadConfig() (*config.Config, func(), error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, nil, err
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		closeLog()
		return nil, nil, err
	}
	return cfg, closeLog, nil
}

func setupLogger(cfg config.LogConfig) (func(), error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %q: %w", cfg.File, err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
	return closeFn, nil
}
