package ports

import (
	"context"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

// ReportWriter persiste los informes de una ejecución en disco.
type ReportWriter interface {
	// WriteReports escribe los informes base en dir y devuelve las rutas creadas.
	WriteReports(ctx context.Context, dir string, run *domain.Run) ([]string, error)

	// WriteSummary guarda el informe del analista en path con el título dado.
	WriteSummary(ctx context.Context, path, title, markdown string) error
}
