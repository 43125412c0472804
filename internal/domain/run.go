package domain

import "time"

// Run agrupa todo lo producido por una ejecución de análisis.
type Run struct {
	ID           string
	StartedAt    time.Time
	Source       string
	Snapshot     Snapshot
	Composition  Composition
	Optimization Optimization
}

// RunSummary es la vista persistida de una ejecución anterior.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	Source     string
	TotalValue float64
	Cash       float64
	Status     OptimizationStatus
	Reason     string
	Trials     int
	Sharpe     float64
	Return     float64
	Volatility float64
	Allocation []AllocationEntry
}

// Document es un archivo de texto adjunto al análisis externo.
type Document struct {
	Path    string
	Content string
}

// AnalysisRequest es la entrada del analista externo.
type AnalysisRequest struct {
	Model     string
	Prompt    string
	Documents []Document
}
