package ports

import (
	"context"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

// SnapshotSource carga el snapshot de posiciones exportado por el broker.
type SnapshotSource interface {
	// Load lee el archivo en path y devuelve sus posiciones y caja.
	Load(ctx context.Context, path string) (domain.Snapshot, error)
}
