package ports

import (
	"context"
	"io"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

// Analyst es un modelo de lenguaje que revisa los informes generados.
type Analyst interface {
	// Name es el nombre del proveedor para títulos y logs ("Gemini", "OpenAI").
	Name() string

	// Analyze genera un informe markdown en una sola llamada.
	Analyze(ctx context.Context, req domain.AnalysisRequest) (string, error)

	// Converse abre una sesión interactiva sembrada con req, leyendo preguntas
	// de in y escribiendo respuestas en out hasta "bye" o EOF.
	Converse(ctx context.Context, req domain.AnalysisRequest, in io.Reader, out io.Writer) error
}
