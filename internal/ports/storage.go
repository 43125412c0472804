package ports

import (
	"context"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

// RunStore persiste el histórico de ejecuciones.
type RunStore interface {
	// SaveRun persiste el resumen de la ejecución y su asignación recomendada.
	SaveRun(ctx context.Context, run *domain.Run) error

	// ListRuns devuelve las últimas ejecuciones, de la más reciente a la más antigua.
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
