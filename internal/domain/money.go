package domain

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency se usa cuando el snapshot no declara moneda base.
const DefaultCurrency = money.USD

// FormatMoney formatea un importe con el símbolo y los separadores de su moneda.
// Monedas desconocidas se muestran como USD.
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		cur = money.GetCurrency(DefaultCurrency)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}
