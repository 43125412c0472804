package report

import (
	"fmt"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	charts "github.com/vicanso/go-charts/v2"
)

// AllocationChart dibuja la asignación recomendada como tarta PNG.
func AllocationChart(allocation []domain.AllocationEntry) ([]byte, error) {
	if len(allocation) == 0 {
		return nil, fmt.Errorf("report.AllocationChart: empty allocation")
	}

	values := make([]float64, len(allocation))
	labels := make([]string, len(allocation))
	for i, e := range allocation {
		values[i] = e.Weight * 100
		labels[i] = fmt.Sprintf("%s (%.1f%%)", e.Asset, e.Weight*100)
	}

	p, err := charts.PieRender(
		values,
		charts.TitleTextOptionFunc("Optimal Allocation (max Sharpe)"),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: labels,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("report.AllocationChart: render: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("report.AllocationChart: encode: %w", err)
	}
	return buf, nil
}
