package optimizer

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// Evaluator calcula métricas anualizadas para un vector de pesos.
// Es puro: mismas entradas, mismas métricas.
type Evaluator struct {
	stats  *Statistics
	factor float64
}

// NewEvaluator crea un Evaluator. factor es el número de periodos por año (252 para diario).
func NewEvaluator(stats *Statistics, factor float64) *Evaluator {
	return &Evaluator{stats: stats, factor: factor}
}

// Evaluate devuelve retorno, volatilidad y Sharpe anualizados.
//
//	annualReturn     = (w·μ) × P
//	annualVolatility = sqrt(max(0, wᵀΣw) × P)
//	sharpe           = annualReturn / annualVolatility, 0 si la volatilidad no es > 0
func (e *Evaluator) Evaluate(w domain.WeightVector) (domain.PortfolioMetrics, error) {
	n := e.stats.Len()
	if len(w) != n {
		return domain.PortfolioMetrics{}, fmt.Errorf("%w: %d weights for %d assets", ErrComputation, len(w), n)
	}

	wv := mat.NewVecDense(n, w)
	ret := mat.Dot(wv, e.stats.Mean) * e.factor

	variance := mat.Inner(wv, e.stats.Cov, wv)
	if variance < 0 {
		variance = 0 // underflow numérico
	}
	vol := math.Sqrt(variance * e.factor)

	var sharpe float64
	if vol > 0 {
		sharpe = ret / vol
	}

	return domain.PortfolioMetrics{
		AnnualReturn:     ret,
		AnnualVolatility: vol,
		Sharpe:           sharpe,
	}, nil
}
