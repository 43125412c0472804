package domain

import "github.com/shopspring/decimal"

// AssetID identifica un instrumento por su ticker.
type AssetID string

// AssetCategory es la categoría que el broker asigna a cada posición.
type AssetCategory string

const (
	CategoryStock  AssetCategory = "STK"
	CategoryADR    AssetCategory = "ADR"
	CategoryREIT   AssetCategory = "REIT"
	CategoryOption AssetCategory = "OPT"
	CategoryCash   AssetCategory = "CASH"
)

// IsEquity devuelve true para las categorías que entran en la optimización.
func (c AssetCategory) IsEquity() bool {
	switch c {
	case CategoryStock, CategoryADR, CategoryREIT:
		return true
	}
	return false
}

// Position es una posición abierta del snapshot del broker.
// Los campos numéricos ausentes en el origen quedan en cero.
type Position struct {
	Symbol         string          `json:"symbol"`
	Description    string          `json:"description"`
	Category       AssetCategory   `json:"assetCategory"`
	Currency       string          `json:"currency,omitempty"`
	Quantity       decimal.Decimal `json:"position"`
	MarkPrice      decimal.Decimal `json:"markPrice"`
	CostBasisPrice decimal.Decimal `json:"costBasisPrice"`
	CostBasisMoney decimal.Decimal `json:"costBasisMoney"`
	MarketValue    decimal.Decimal `json:"marketValue"`
	PercentOfNAV   decimal.Decimal `json:"percentOfNAV"`
	UnrealizedPnL  decimal.Decimal `json:"fifoPnlUnrealized"`
}

// Snapshot es el estado de la cuenta en un instante: posiciones abiertas más caja.
type Snapshot struct {
	Positions []Position
	Cash      decimal.Decimal
	Currency  string // moneda base de la cuenta, "USD" si el origen no la indica
}

// Equities devuelve las posiciones STK/ADR/REIT en el orden del snapshot.
func (s Snapshot) Equities() []Position {
	out := make([]Position, 0, len(s.Positions))
	for _, p := range s.Positions {
		if p.Category.IsEquity() {
			out = append(out, p)
		}
	}
	return out
}

// AssetIDs devuelve los tickers únicos de las posiciones equity,
// en orden de primera aparición.
func (s Snapshot) AssetIDs() []AssetID {
	seen := make(map[AssetID]bool)
	ids := make([]AssetID, 0, len(s.Positions))
	for _, p := range s.Equities() {
		id := AssetID(p.Symbol)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// InvestedValue es la suma del valor de mercado de todas las posiciones.
func (s Snapshot) InvestedValue() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Positions {
		total = total.Add(p.MarketValue)
	}
	return total
}

// TotalValue es el valor de mercado de todas las posiciones más la caja.
func (s Snapshot) TotalValue() decimal.Decimal {
	return s.InvestedValue().Add(s.Cash)
}
