package ports

import (
	"context"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

// PriceProvider obtiene históricos de cierres ajustados.
type PriceProvider interface {
	// FetchHistories devuelve un histórico por activo para la ventana configurada.
	// Los activos cuyo fetch falla no aparecen en el resultado; un mapa vacío
	// significa que no hay datos.
	FetchHistories(ctx context.Context, assets []domain.AssetID) (map[domain.AssetID]domain.PriceHistory, error)
}
