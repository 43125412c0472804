package storage

// sqlite.go: historial de ejecuciones.
//
//   - `runs`: una fila por ejecución con el resumen de cartera y de la optimización.
//   - `allocations`: la asignación recomendada, una fila por activo y orden de peso.
//   - Prune al arrancar: ejecuciones de más de un año.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    started_at  TEXT    NOT NULL,
    source      TEXT    NOT NULL,
    currency    TEXT    NOT NULL DEFAULT '',
    total_value REAL    NOT NULL DEFAULT 0,
    cash        REAL    NOT NULL DEFAULT 0,
    status      TEXT    NOT NULL,
    reason      TEXT    NOT NULL DEFAULT '',
    trials      INTEGER NOT NULL DEFAULT 0,
    seed        TEXT    NOT NULL DEFAULT '',
    periods     INTEGER NOT NULL DEFAULT 0,
    sharpe      REAL    NOT NULL DEFAULT 0,
    ann_return  REAL    NOT NULL DEFAULT 0,
    volatility  REAL    NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS allocations (
    run_id TEXT    NOT NULL,
    rank   INTEGER NOT NULL,
    asset  TEXT    NOT NULL,
    weight REAL    NOT NULL,
    PRIMARY KEY (run_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

const retentionRuns = 365 * 24 * time.Hour

// SQLiteStorage implementa ports.RunStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada,
// aplica el schema y elimina ejecuciones antiguas.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveRun persiste la ejecución y su asignación en una transacción.
// Si run.ID está vacío se le asigna un uuid.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	opt := run.Optimization
	var sharpe, ret, vol float64
	if opt.HasAllocation() {
		sharpe = opt.Best.Metrics.Sharpe
		ret = opt.Best.Metrics.AnnualReturn
		vol = opt.Best.Metrics.AnnualVolatility
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs
			(id, started_at, source, currency, total_value, cash, status, reason,
			 trials, seed, periods, sharpe, ann_return, volatility)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		formatTime(run.StartedAt),
		run.Source,
		run.Snapshot.Currency,
		run.Snapshot.TotalValue().InexactFloat64(),
		run.Snapshot.Cash.InexactFloat64(),
		string(opt.Status),
		opt.Reason,
		opt.TrialsRun,
		fmt.Sprint(opt.Seed), // uint64 no cabe en INTEGER
		opt.Periods,
		sharpe,
		ret,
		vol,
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}

	if len(opt.Allocation) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO allocations (run_id, rank, asset, weight) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("storage.SaveRun: prepare: %w", err)
		}
		defer stmt.Close()

		for i, e := range opt.Allocation {
			if _, err := stmt.ExecContext(ctx, run.ID, i, string(e.Asset), e.Weight); err != nil {
				return fmt.Errorf("storage.SaveRun: insert allocation %s: %w", e.Asset, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// ListRuns devuelve las últimas limit ejecuciones, la más reciente primero.
// limit <= 0 devuelve todas.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, source, total_value, cash, status, reason,
		       trials, sharpe, ann_return, volatility
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query: %w", err)
	}

	var runs []domain.RunSummary
	for rows.Next() {
		var r domain.RunSummary
		var startedAt, status string
		if err := rows.Scan(
			&r.ID,
			&startedAt,
			&r.Source,
			&r.TotalValue,
			&r.Cash,
			&status,
			&r.Reason,
			&r.Trials,
			&r.Sharpe,
			&r.Return,
			&r.Volatility,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("storage.ListRuns: scan row: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		r.Status = domain.OptimizationStatus(status)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("storage.ListRuns: %w", err)
	}
	rows.Close()

	// Con una sola conexión, las asignaciones se leen después de cerrar rows.
	for i := range runs {
		alloc, err := s.allocations(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Allocation = alloc
	}
	return runs, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func (s *SQLiteStorage) allocations(ctx context.Context, runID string) ([]domain.AllocationEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset, weight FROM allocations WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query allocations: %w", err)
	}
	defer rows.Close()

	var out []domain.AllocationEntry
	for rows.Next() {
		var asset string
		var e domain.AllocationEntry
		if err := rows.Scan(&asset, &e.Weight); err != nil {
			return nil, fmt.Errorf("storage.ListRuns: scan allocation: %w", err)
		}
		e.Asset = domain.AssetID(asset)
		out = append(out, e)
	}
	return out, rows.Err()
}

// pruneOld elimina ejecuciones antiguas para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := formatTime(time.Now().Add(-retentionRuns))
	s.db.ExecContext(ctx, `DELETE FROM allocations WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
}

// formatTime usa UTC con ancho fijo para que el orden textual sea cronológico.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
