package ports

import (
	"context"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

// Notifier presenta al usuario el resultado de una ejecución.
type Notifier interface {
	// Notify muestra la composición y la asignación recomendada.
	// En la implementación de consola, imprime tablas formateadas.
	Notify(ctx context.Context, run *domain.Run) error

	// ShowSummary muestra el informe markdown del analista.
	ShowSummary(ctx context.Context, markdown string) error
}
