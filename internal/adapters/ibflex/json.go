package ibflex

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"github.com/shopspring/decimal"
)

// snapshotJSON es el formato intermedio que produce el comando convert.
// equities es redundante y se incluye para consumo externo.
type snapshotJSON struct {
	Positions []domain.Position `json:"positions"`
	Equities  []domain.Position `json:"equities"`
	Cash      decimal.Decimal   `json:"cash"`
	Currency  string            `json:"currency,omitempty"`
}

// EncodeJSON escribe el snapshot como JSON indentado.
func EncodeJSON(w io.Writer, s domain.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snapshotJSON{
		Positions: s.Positions,
		Equities:  s.Equities(),
		Cash:      s.Cash,
		Currency:  s.Currency,
	}); err != nil {
		return fmt.Errorf("ibflex.EncodeJSON: %w", err)
	}
	return nil
}

// DecodeJSON lee un snapshot escrito por EncodeJSON.
func DecodeJSON(r io.Reader) (domain.Snapshot, error) {
	var raw snapshotJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return domain.Snapshot{}, fmt.Errorf("ibflex.DecodeJSON: %w", err)
	}
	if len(raw.Positions) == 0 {
		return domain.Snapshot{}, ErrNoPositions
	}
	return domain.Snapshot{
		Positions: raw.Positions,
		Cash:      raw.Cash,
		Currency:  raw.Currency,
	}, nil
}
