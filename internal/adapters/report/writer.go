package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

const (
	PortfolioReportFile = "portfolio_analysis_report.csv"
	WeightsFile         = "optimal_portfolio_weights.csv"
	TrialsFile          = "monte_carlo_trials.csv"
	AllocationChartFile = "optimal_allocation.png"
)

// Writer implementa ports.ReportWriter sobre el sistema de archivos.
type Writer struct {
	charts bool
}

// NewWriter crea un Writer. charts activa el gráfico PNG de la asignación.
func NewWriter(charts bool) *Writer {
	return &Writer{charts: charts}
}

// WriteReports escribe en dir el informe de cartera y, si hay asignación,
// los pesos óptimos, los trials retenidos y el gráfico.
func (w *Writer) WriteReports(_ context.Context, dir string, run *domain.Run) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report.WriteReports: create %q: %w", dir, err)
	}

	var written []string

	path := filepath.Join(dir, PortfolioReportFile)
	if err := writeFile(path, func(f *os.File) error { return WritePortfolioCSV(f, run.Snapshot) }); err != nil {
		return written, err
	}
	written = append(written, path)

	opt := run.Optimization
	if !opt.HasAllocation() {
		slog.Info("reports generated", "files", written, "allocation", false)
		return written, nil
	}

	path = filepath.Join(dir, WeightsFile)
	if err := writeFile(path, func(f *os.File) error { return WriteWeightsCSV(f, opt.Allocation) }); err != nil {
		return written, err
	}
	written = append(written, path)

	if len(opt.Trials) > 0 {
		path = filepath.Join(dir, TrialsFile)
		if err := writeFile(path, func(f *os.File) error { return WriteTrialsCSV(f, opt.Assets, opt.Trials) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if w.charts {
		path = filepath.Join(dir, AllocationChartFile)
		png, err := AllocationChart(opt.Allocation)
		if err != nil {
			slog.Warn("allocation chart skipped", "err", err)
		} else if err := os.WriteFile(path, png, 0o644); err != nil {
			return written, fmt.Errorf("report.WriteReports: write %q: %w", path, err)
		} else {
			written = append(written, path)
		}
	}

	slog.Info("reports generated", "files", written, "allocation", true)
	return written, nil
}

// WriteSummary guarda el informe del analista con su título.
func (w *Writer) WriteSummary(_ context.Context, path, title, markdown string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report.WriteSummary: create dir: %w", err)
	}
	content := fmt.Sprintf("# %s\n\n%s", title, markdown)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("report.WriteSummary: write %q: %w", path, err)
	}
	return nil
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %q: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("report: write %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: close %q: %w", path, err)
	}
	return nil
}
