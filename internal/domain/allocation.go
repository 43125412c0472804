package domain

import "fmt"

// WeightVector es una asignación long-only: w_i ≥ 0 y Σw_i = 1.
// No se modifica después de crearse.
type WeightVector []float64

// Sum devuelve la suma de los pesos.
func (w WeightVector) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// PortfolioMetrics son las métricas anualizadas de una asignación.
type PortfolioMetrics struct {
	AnnualReturn     float64
	AnnualVolatility float64
	Sharpe           float64 // 0 cuando la volatilidad es 0
}

// Trial es una asignación muestreada junto con sus métricas.
type Trial struct {
	Index   int
	Weights WeightVector
	Metrics PortfolioMetrics
}

// AllocationEntry es una fila de la asignación recomendada.
type AllocationEntry struct {
	Asset  AssetID
	Weight float64
}

// OptimizationStatus describe cómo terminó una optimización.
type OptimizationStatus string

const (
	StatusOptimized       OptimizationStatus = "optimized"
	StatusNotApplicable   OptimizationStatus = "not_applicable"
	StatusDataUnavailable OptimizationStatus = "data_unavailable"
	StatusFailed          OptimizationStatus = "failed"
)

// Optimization es el resultado de una búsqueda Monte Carlo.
// Cuando Status != StatusOptimized, Best es nil y Allocation está vacío.
type Optimization struct {
	Status     OptimizationStatus
	Reason     string
	Assets     []AssetID
	Periods    int    // periodos alineados usados para las estadísticas
	Seed       uint64 // semilla efectiva del generador
	TrialsRun  int
	Best       *Trial
	Allocation []AllocationEntry // ordenada por peso descendente
	Trials     []Trial           // solo si se pidió conservarlas
}

// HasAllocation indica si hay una asignación recomendada.
func (o Optimization) HasAllocation() bool {
	return o.Status == StatusOptimized && o.Best != nil
}

// String resume el resultado en una línea.
func (o Optimization) String() string {
	if !o.HasAllocation() {
		return fmt.Sprintf("%s: %s", o.Status, o.Reason)
	}
	return fmt.Sprintf("%s: return=%.2f%% vol=%.2f%% sharpe=%.3f over %d trials",
		o.Status,
		o.Best.Metrics.AnnualReturn*100,
		o.Best.Metrics.AnnualVolatility*100,
		o.Best.Metrics.Sharpe,
		o.TrialsRun,
	)
}
