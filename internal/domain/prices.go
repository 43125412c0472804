package domain

import (
	"fmt"
	"math"
	"time"
)

// PricePoint es un cierre ajustado en una fecha. Un precio no positivo o NaN
// marca una observación ausente.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// Valid indica si el punto tiene un precio utilizable.
func (p PricePoint) Valid() bool {
	return p.Close > 0 && !math.IsInf(p.Close, 0)
}

// Day devuelve la fecha de calendario del punto como clave de alineación.
func (p PricePoint) Day() string {
	return p.Date.Format(time.DateOnly)
}

// PriceHistory es la serie de cierres de un activo, ordenada por fecha.
type PriceHistory struct {
	Asset  AssetID
	Points []PricePoint
}

// Validate comprueba que las fechas sean estrictamente crecientes.
func (h PriceHistory) Validate() error {
	for i := 1; i < len(h.Points); i++ {
		if h.Points[i].Day() <= h.Points[i-1].Day() {
			return fmt.Errorf("price history %s: date %s not after %s",
				h.Asset, h.Points[i].Day(), h.Points[i-1].Day())
		}
	}
	return nil
}
