package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"github.com/alejandrodnm/portfolio-analysis/internal/ports"
)

// MinAssets es el mínimo de activos para que la optimización tenga sentido.
const MinAssets = 2

// Config controla la búsqueda Monte Carlo.
type Config struct {
	Trials              int     // presupuesto de trials, siempre se agota
	AnnualizationFactor float64 // periodos por año
	Seed                uint64  // 0 = semilla a partir del reloj
	RetainTrials        bool    // conservar todos los trials en el resultado
}

// DefaultConfig devuelve la configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Trials:              1000,
		AnnualizationFactor: 252,
	}
}

// Driver obtiene precios, calcula estadísticas y ejecuta la búsqueda.
// Ningún fallo sale del Driver como error: todo termina en un domain.Optimization.
type Driver struct {
	cfg    Config
	prices ports.PriceProvider
}

// NewDriver crea un Driver con el proveedor de precios inyectado.
func NewDriver(cfg Config, prices ports.PriceProvider) *Driver {
	def := DefaultConfig()
	if cfg.Trials <= 0 {
		cfg.Trials = def.Trials
	}
	if cfg.AnnualizationFactor <= 0 {
		cfg.AnnualizationFactor = def.AnnualizationFactor
	}
	return &Driver{cfg: cfg, prices: prices}
}

// Optimize busca la asignación de máximo Sharpe para los activos dados.
func (d *Driver) Optimize(ctx context.Context, assets []domain.AssetID) (result domain.Optimization) {
	assets = distinct(assets)
	if len(assets) < MinAssets {
		slog.Warn("optimization not applicable", "assets", len(assets), "min", MinAssets)
		return skipped(assets, ErrInsufficientAssets)
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: panic: %v", ErrComputation, r)
			slog.Error("optimization failed", "err", err)
			result = skipped(assets, err)
		}
	}()

	slog.Info("starting monte carlo optimization", "assets", len(assets), "trials", d.cfg.Trials)

	histories, err := d.prices.FetchHistories(ctx, assets)
	if err != nil {
		err = fmt.Errorf("%w: fetch: %v", ErrDataUnavailable, err)
		slog.Warn("optimization skipped", "err", err)
		return skipped(assets, err)
	}

	stats, err := BuildStatistics(assets, histories)
	if err != nil {
		logSkip(err)
		return skipped(assets, err)
	}
	if dropped := len(assets) - stats.Len(); dropped > 0 {
		slog.Warn("assets without price history dropped", "dropped", dropped, "kept", stats.Len())
	}
	if stats.Len() < MinAssets {
		err := fmt.Errorf("%w: only %d assets with price history", ErrInsufficientAssets, stats.Len())
		logSkip(err)
		return skipped(assets, err)
	}

	seed := d.cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	result, err = Search(stats, d.cfg, NewSampler(seed))
	if err != nil {
		logSkip(err)
		return skipped(assets, err)
	}
	result.Seed = seed

	slog.Info("optimization complete",
		"trials", result.TrialsRun,
		"periods", result.Periods,
		"annual_return", result.Best.Metrics.AnnualReturn,
		"annual_volatility", result.Best.Metrics.AnnualVolatility,
		"sharpe", result.Best.Metrics.Sharpe,
		"seed", seed,
	)
	for _, e := range result.Allocation {
		slog.Debug("recommended weight", "asset", e.Asset, "weight", e.Weight)
	}
	return result
}

// Search ejecuta cfg.Trials iteraciones de muestreo + evaluación sobre stats
// y conserva el trial de mayor Sharpe. Ante empate gana el primero.
func Search(stats *Statistics, cfg Config, sampler *Sampler) (domain.Optimization, error) {
	n := stats.Len()
	if n < MinAssets {
		return domain.Optimization{}, fmt.Errorf("%w: got %d", ErrInsufficientAssets, n)
	}
	if cfg.Trials <= 0 {
		return domain.Optimization{}, fmt.Errorf("%w: trial budget must be positive, got %d", ErrComputation, cfg.Trials)
	}

	eval := NewEvaluator(stats, cfg.AnnualizationFactor)

	var best domain.Trial
	var trials []domain.Trial
	if cfg.RetainTrials {
		trials = make([]domain.Trial, 0, cfg.Trials)
	}

	for i := 0; i < cfg.Trials; i++ {
		w := sampler.Draw(n)
		m, err := eval.Evaluate(w)
		if err != nil {
			return domain.Optimization{}, err
		}
		t := domain.Trial{Index: i, Weights: w, Metrics: m}
		if i == 0 || t.Metrics.Sharpe > best.Metrics.Sharpe {
			best = t
		}
		if cfg.RetainTrials {
			trials = append(trials, t)
		}
	}

	return domain.Optimization{
		Status:     domain.StatusOptimized,
		Assets:     stats.Assets,
		Periods:    stats.Periods,
		TrialsRun:  cfg.Trials,
		Best:       &best,
		Allocation: RankAllocation(stats.Assets, best.Weights),
		Trials:     trials,
	}, nil
}

// RankAllocation empareja activos y pesos, ordenados por peso descendente.
// Pesos iguales conservan el orden de los activos.
func RankAllocation(assets []domain.AssetID, w domain.WeightVector) []domain.AllocationEntry {
	entries := make([]domain.AllocationEntry, len(assets))
	for i, id := range assets {
		entries[i] = domain.AllocationEntry{Asset: id, Weight: w[i]}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Weight > entries[j].Weight
	})
	return entries
}

// distinct elimina IDs repetidos conservando la primera aparición.
func distinct(assets []domain.AssetID) []domain.AssetID {
	seen := make(map[domain.AssetID]bool, len(assets))
	out := make([]domain.AssetID, 0, len(assets))
	for _, id := range assets {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// skipped traduce un error a un resultado sin asignación.
func skipped(assets []domain.AssetID, err error) domain.Optimization {
	return domain.Optimization{
		Status: statusFor(err),
		Reason: err.Error(),
		Assets: assets,
	}
}

func statusFor(err error) domain.OptimizationStatus {
	switch {
	case errors.Is(err, ErrInsufficientAssets):
		return domain.StatusNotApplicable
	case errors.Is(err, ErrDataUnavailable):
		return domain.StatusDataUnavailable
	default:
		return domain.StatusFailed
	}
}

func logSkip(err error) {
	if statusFor(err) == domain.StatusFailed {
		slog.Error("optimization failed", "err", err)
		return
	}
	slog.Warn("optimization skipped", "err", err)
}
