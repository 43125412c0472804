package ibflex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

// Loader implementa ports.SnapshotSource para extractos XML y snapshots JSON.
type Loader struct{}

// NewLoader crea un Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load elige el formato por extensión: .json usa DecodeJSON, cualquier otra Parse.
func (l *Loader) Load(_ context.Context, path string) (domain.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("ibflex.Load: open %q: %w", path, err)
	}
	defer f.Close()

	var snap domain.Snapshot
	if strings.EqualFold(filepath.Ext(path), ".json") {
		snap, err = DecodeJSON(f)
	} else {
		snap, err = Parse(f)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("ibflex.Load %q: %w", path, err)
	}

	slog.Info("snapshot loaded",
		"path", path,
		"positions", len(snap.Positions),
		"equities", len(snap.Equities()),
		"cash", snap.Cash.StringFixed(2),
	)
	return snap, nil
}
