package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"github.com/alejandrodnm/portfolio-analysis/internal/ports"
)

var (
	// ErrSourceNotFound indica que el archivo de posiciones no existe.
	ErrSourceNotFound = errors.New("source file not found")
	// ErrAnalysisFailed indica que el analista externo falló después de
	// generar los informes.
	ErrAnalysisFailed = errors.New("external analysis failed")
)

const (
	BaseReportDir     = "base_report"
	SummaryReportFile = "summary_report.md"
)

// Optimizer es el subconjunto del Search Driver que usa el servicio.
type Optimizer interface {
	Optimize(ctx context.Context, assets []domain.AssetID) domain.Optimization
}

// Config contiene la configuración del servicio.
type Config struct {
	MaxFileBytes    int
	AnalysisTimeout time.Duration // 0 = sin límite
}

// Request describe una ejecución.
type Request struct {
	Source       string
	OutputDir    string
	SkipAnalysis bool
	Interactive  bool
	PromptFile   string
	Model        string
}

// Service orquesta una ejecución completa: snapshot, composición,
// optimización, informes, historial y análisis externo.
type Service struct {
	cfg       Config
	snapshots ports.SnapshotSource
	optimizer Optimizer
	reports   ports.ReportWriter
	notifier  ports.Notifier
	store     ports.RunStore // opcional
	analyst   ports.Analyst  // opcional si SkipAnalysis
	in        io.Reader
	out       io.Writer
}

// New crea un Service con todas las dependencias inyectadas.
// store y analyst pueden ser nil.
func New(
	cfg Config,
	snapshots ports.SnapshotSource,
	optimizer Optimizer,
	reports ports.ReportWriter,
	notifier ports.Notifier,
	store ports.RunStore,
	analyst ports.Analyst,
) *Service {
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = DefaultMaxFileBytes
	}
	return &Service{
		cfg:       cfg,
		snapshots: snapshots,
		optimizer: optimizer,
		reports:   reports,
		notifier:  notifier,
		store:     store,
		analyst:   analyst,
		in:        os.Stdin,
		out:       os.Stdout,
	}
}

// WithIO reemplaza stdin/stdout de la sesión interactiva.
func (s *Service) WithIO(in io.Reader, out io.Writer) *Service {
	s.in = in
	s.out = out
	return s
}

// Run ejecuta el flujo completo. Solo la ausencia del archivo, un snapshot
// ilegible o un fallo al escribir informes abortan la ejecución; la
// optimización nunca lo hace. Un fallo del analista devuelve el Run junto
// con un error que envuelve ErrAnalysisFailed.
func (s *Service) Run(ctx context.Context, req Request) (*domain.Run, error) {
	start := time.Now()

	if _, err := os.Stat(req.Source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("analysis.Run: %q: %w", req.Source, ErrSourceNotFound)
		}
		return nil, fmt.Errorf("analysis.Run: stat source: %w", err)
	}

	snap, err := s.snapshots.Load(ctx, req.Source)
	if err != nil {
		return nil, fmt.Errorf("analysis.Run: load snapshot: %w", err)
	}

	run := &domain.Run{
		ID:        uuid.NewString(),
		StartedAt: start,
		Source:    req.Source,
		Snapshot:  snap,
	}
	run.Composition = domain.AnalyzeComposition(snap)
	logComposition(run.Composition)

	run.Optimization = s.optimizer.Optimize(ctx, snap.AssetIDs())

	baseDir := filepath.Join(req.OutputDir, BaseReportDir)
	files, err := s.reports.WriteReports(ctx, baseDir, run)
	if err != nil {
		return run, fmt.Errorf("analysis.Run: write reports: %w", err)
	}

	if err := s.notifier.Notify(ctx, run); err != nil {
		slog.Warn("notifier error", "err", err)
	}

	if s.store != nil {
		if err := s.store.SaveRun(ctx, run); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}

	slog.Info("run complete",
		"id", run.ID,
		"status", run.Optimization.Status,
		"reports", len(files),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if req.SkipAnalysis {
		slog.Info("external analysis skipped")
		return run, nil
	}
	if err := s.analyze(ctx, req, baseDir); err != nil {
		return run, fmt.Errorf("analysis.Run: %w: %w", ErrAnalysisFailed, err)
	}
	return run, nil
}

// analyze envía los informes al analista externo.
func (s *Service) analyze(ctx context.Context, req Request, baseDir string) error {
	if s.analyst == nil {
		return errors.New("no analyst configured")
	}

	dirs := []string{filepath.Dir(req.Source), baseDir}
	prompt, err := LoadPrompt(req.PromptFile, dirs)
	if err != nil {
		return err
	}
	docs, err := CollectDocuments(dirs, s.cfg.MaxFileBytes)
	if err != nil {
		return err
	}
	areq := domain.AnalysisRequest{Model: req.Model, Prompt: prompt, Documents: docs}

	if req.Interactive {
		slog.Info("starting interactive analysis", "provider", s.analyst.Name(), "documents", len(docs))
		return s.analyst.Converse(ctx, areq, s.in, s.out)
	}

	if s.cfg.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
		defer cancel()
	}

	markdown, err := s.analyst.Analyze(ctx, areq)
	if err != nil {
		return err
	}

	path := filepath.Join(req.OutputDir, SummaryReportFile)
	title := s.analyst.Name() + " Portfolio Analysis Report"
	if err := s.reports.WriteSummary(ctx, path, title, markdown); err != nil {
		return err
	}
	slog.Info("summary report generated", "path", path)

	if err := s.notifier.ShowSummary(ctx, markdown); err != nil {
		slog.Warn("summary render error", "err", err)
	}
	return nil
}

func logComposition(c domain.Composition) {
	slog.Info("portfolio composition",
		"total", domain.FormatMoney(c.TotalValue, c.Currency),
		"cash", domain.FormatMoney(c.Cash, c.Currency),
		"cash_pct", fmt.Sprintf("%.2f%%", c.CashPercent),
		"equity_pct", fmt.Sprintf("%.2f%%", c.EquityPct),
		"top3_weight", c.Top3Weight.StringFixed(2),
		"categories", len(c.Categories),
	)
}
