package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

// utf8BOM hace que Excel abra el CSV como UTF-8.
const utf8BOM = "\uFEFF"

var portfolioHeader = []string{
	"Symbol", "Description", "Asset_Category", "Position", "Market_Price",
	"Market_Value", "Cost_Basis", "Unrealized_PnL", "Weight_Percent",
}

// WritePortfolioCSV escribe una fila por posición equity y una fila final CASH.
func WritePortfolioCSV(w io.Writer, snap domain.Snapshot) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(portfolioHeader); err != nil {
		return err
	}

	for _, p := range snap.Equities() {
		if err := cw.Write([]string{
			p.Symbol,
			p.Description,
			string(p.Category),
			p.Quantity.Truncate(0).String(),
			p.MarkPrice.String(),
			p.MarketValue.String(),
			p.CostBasisMoney.String(),
			p.UnrealizedPnL.String(),
			p.PercentOfNAV.String(),
		}); err != nil {
			return err
		}
	}

	cash := snap.Cash.String()
	if err := cw.Write([]string{
		"CASH",
		"Cash Position",
		string(domain.CategoryCash),
		"1",
		cash,
		cash,
		cash,
		"0",
		formatFloat(domain.PercentOf(snap.Cash, snap.TotalValue())),
	}); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// WriteWeightsCSV escribe la asignación recomendada (Ticker, Weight).
func WriteWeightsCSV(w io.Writer, allocation []domain.AllocationEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Ticker", "Weight"}); err != nil {
		return err
	}
	for _, e := range allocation {
		if err := cw.Write([]string{string(e.Asset), formatFloat(e.Weight)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTrialsCSV escribe todos los trials: métricas y un peso por activo.
func WriteTrialsCSV(w io.Writer, assets []domain.AssetID, trials []domain.Trial) error {
	cw := csv.NewWriter(w)
	header := []string{"Trial", "Return", "Volatility", "Sharpe"}
	for _, id := range assets {
		header = append(header, string(id))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for _, t := range trials {
		row = row[:0]
		row = append(row,
			strconv.Itoa(t.Index),
			formatFloat(t.Metrics.AnnualReturn),
			formatFloat(t.Metrics.AnnualVolatility),
			formatFloat(t.Metrics.Sharpe),
		)
		for _, v := range t.Weights {
			row = append(row, formatFloat(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
