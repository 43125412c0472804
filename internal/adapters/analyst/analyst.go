package analyst

import (
	"context"
	"fmt"
	"strings"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"github.com/alejandrodnm/portfolio-analysis/internal/ports"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Options selecciona y configura el proveedor.
type Options struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// New construye el analista del proveedor configurado.
func New(ctx context.Context, opts Options) (ports.Analyst, error) {
	switch opts.Provider {
	case "", ProviderGemini:
		return NewGemini(ctx, opts.APIKey, opts.Model, opts.BaseURL)
	case ProviderOpenAI:
		return NewOpenAI(opts.APIKey, opts.Model, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("analyst.New: unknown provider %q", opts.Provider)
	}
}

// composeContext une el prompt con los documentos en un solo mensaje.
func composeContext(req domain.AnalysisRequest) string {
	var b strings.Builder
	b.WriteString(req.Prompt)
	for _, d := range req.Documents {
		fmt.Fprintf(&b, "\n\n--- FILE: %s ---\n%s", d.Path, d.Content)
	}
	return b.String()
}
