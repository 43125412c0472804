package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"github.com/charmbracelet/glamour"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

const summaryWrap = 100

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	style glamour.TermRendererOption
}

// NewConsole crea un notificador que escribe a stdout con estilo según el terminal.
func NewConsole() *Console {
	return &Console{out: os.Stdout, style: glamour.WithAutoStyle()}
}

// NewConsoleWriter crea un notificador sin colores para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, style: glamour.WithStandardStyle("notty")}
}

// Notify imprime la composición de la cuenta y la asignación recomendada.
func (c *Console) Notify(_ context.Context, run *domain.Run) error {
	c.printComposition(run.Composition)
	c.printOptimization(run.Optimization)
	return nil
}

// ShowSummary renderiza el informe markdown del analista.
func (c *Console) ShowSummary(_ context.Context, markdown string) error {
	r, err := glamour.NewTermRenderer(c.style, glamour.WithWordWrap(summaryWrap))
	if err != nil {
		return fmt.Errorf("notify.ShowSummary: renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return fmt.Errorf("notify.ShowSummary: render: %w", err)
	}
	fmt.Fprint(c.out, out)
	return nil
}

// PrintHistory imprime las ejecuciones guardadas.
func (c *Console) PrintHistory(runs []domain.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "No runs recorded yet.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Started", "Source", "Total", "Status", "Trials", "Sharpe", "Return", "Vol", "Top weight")
	for _, r := range runs {
		top := "-"
		if len(r.Allocation) > 0 {
			top = fmt.Sprintf("%s %.1f%%", r.Allocation[0].Asset, r.Allocation[0].Weight*100)
		}
		table.Append(
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			shortPath(r.Source, 30),
			fmt.Sprintf("%.2f", r.TotalValue),
			string(r.Status),
			fmt.Sprintf("%d", r.Trials),
			fmt.Sprintf("%.3f", r.Sharpe),
			fmt.Sprintf("%.2f%%", r.Return*100),
			fmt.Sprintf("%.2f%%", r.Volatility*100),
			top,
		)
	}
	table.Render()
}

// printComposition imprime el resumen de la cuenta, top holdings y categorías.
func (c *Console) printComposition(comp domain.Composition) {
	money := func(v decimal.Decimal) string { return domain.FormatMoney(v, comp.Currency) }

	fmt.Fprintf(c.out, "\n=== Portfolio Composition ===\n")
	fmt.Fprintf(c.out, "  Total market value: %s\n", money(comp.TotalValue))
	fmt.Fprintf(c.out, "  Cash:               %s (%.2f%%)\n", money(comp.Cash), comp.CashPercent)
	fmt.Fprintf(c.out, "  Stock investment:   %s (%.2f%%)\n", money(comp.EquityValue), comp.EquityPct)
	fmt.Fprintf(c.out, "  Top 3 weight:       %s%%\n\n", comp.Top3Weight.StringFixed(2))

	if len(comp.TopHoldings) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("#", "Symbol", "Description", "Market value", "% NAV")
		for i, p := range comp.TopHoldings {
			table.Append(
				fmt.Sprintf("%d", i+1),
				p.Symbol,
				truncate(p.Description, 32),
				money(p.MarketValue),
				p.PercentOfNAV.StringFixed(2)+"%",
			)
		}
		table.Render()
	}

	if len(comp.Categories) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Category", "Market value", "Share")
		for _, cat := range comp.Categories {
			table.Append(string(cat.Category), money(cat.Value), fmt.Sprintf("%.2f%%", cat.Percent))
		}
		table.Render()
	}
}

// printOptimization imprime la asignación de máximo Sharpe o el motivo de su ausencia.
func (c *Console) printOptimization(opt domain.Optimization) {
	fmt.Fprintf(c.out, "\n=== Optimal Allocation (max Sharpe) ===\n")
	if !opt.HasAllocation() {
		fmt.Fprintf(c.out, "  No allocation recommendation (%s): %s\n", opt.Status, opt.Reason)
		return
	}

	m := opt.Best.Metrics
	fmt.Fprintf(c.out, "  Expected annual return: %.2f%%\n", m.AnnualReturn*100)
	fmt.Fprintf(c.out, "  Annual volatility:      %.2f%%\n", m.AnnualVolatility*100)
	fmt.Fprintf(c.out, "  Sharpe ratio:           %.3f\n", m.Sharpe)
	fmt.Fprintf(c.out, "  Trials: %d | aligned periods: %d | seed: %d\n\n", opt.TrialsRun, opt.Periods, opt.Seed)

	table := tablewriter.NewWriter(c.out)
	table.Header("Ticker", "Weight")
	for _, e := range opt.Allocation {
		table.Append(string(e.Asset), fmt.Sprintf("%.2f%%", e.Weight*100))
	}
	table.Render()
}

// truncate recorta s por la derecha.
func truncate(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max-1]) + "…"
}

// shortPath recorta s por la izquierda, conservando el final de la ruta.
func shortPath(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return "…" + string(r[len(r)-max+1:])
}
