package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	topHoldingsCount   = 5
	concentrationCount = 3
)

var hundred = decimal.NewFromInt(100)

// CategoryShare es el valor de mercado agregado de una categoría de activo.
type CategoryShare struct {
	Category AssetCategory
	Value    decimal.Decimal
	Percent  float64 // sobre el valor total de la cuenta
}

// Composition resume la composición actual de la cuenta.
type Composition struct {
	Currency    string
	TotalValue  decimal.Decimal
	Cash        decimal.Decimal
	CashPercent float64
	EquityValue decimal.Decimal
	EquityPct   float64

	// TopHoldings son las 5 posiciones equity de mayor valor de mercado.
	TopHoldings []Position
	// Top3Weight es la suma de percentOfNAV de las 3 posiciones equity más grandes.
	Top3Weight decimal.Decimal

	Categories []CategoryShare // ordenadas por nombre de categoría
}

// AnalyzeComposition calcula la composición del snapshot.
func AnalyzeComposition(s Snapshot) Composition {
	total := s.TotalValue()
	equities := s.Equities()

	equityValue := decimal.Zero
	for _, p := range equities {
		equityValue = equityValue.Add(p.MarketValue)
	}

	ranked := make([]Position, len(equities))
	copy(ranked, equities)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MarketValue.GreaterThan(ranked[j].MarketValue)
	})

	top3 := decimal.Zero
	for _, p := range ranked[:min(concentrationCount, len(ranked))] {
		top3 = top3.Add(p.PercentOfNAV)
	}

	currency := s.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	return Composition{
		Currency:    currency,
		TotalValue:  total,
		Cash:        s.Cash,
		CashPercent: PercentOf(s.Cash, total),
		EquityValue: equityValue,
		EquityPct:   PercentOf(equityValue, total),
		TopHoldings: ranked[:min(topHoldingsCount, len(ranked))],
		Top3Weight:  top3,
		Categories:  categoryShares(s.Positions, total),
	}
}

func categoryShares(positions []Position, total decimal.Decimal) []CategoryShare {
	byCat := make(map[AssetCategory]decimal.Decimal)
	for _, p := range positions {
		byCat[p.Category] = byCat[p.Category].Add(p.MarketValue)
	}

	shares := make([]CategoryShare, 0, len(byCat))
	for cat, value := range byCat {
		shares = append(shares, CategoryShare{
			Category: cat,
			Value:    value,
			Percent:  PercentOf(value, total),
		})
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].Category < shares[j].Category })
	return shares
}

// PercentOf devuelve part/total×100, o 0 si total es cero.
func PercentOf(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return part.Div(total).Mul(hundred).InexactFloat64()
}
