package optimizer

// returns.go: de históricos de precios a (μ, Σ).
//
// Todas las series se llevan al mismo índice de fechas (unión de todas las fechas
// observadas). Un retorno r_t = p_t/p_{t-1} - 1 existe solo si ambos precios son
// válidos; un periodo entra en el conjunto alineado solo si todos los activos tienen
// retorno en él. No se rellenan huecos.

import (
	"fmt"
	"math"
	"sort"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minAlignedPeriods: la covarianza muestral necesita al menos 2 observaciones.
const minAlignedPeriods = 2

// Statistics son el vector de retornos medios y la matriz de covarianza
// por periodo. Se calculan una vez por ejecución y son de solo lectura.
type Statistics struct {
	Assets  []domain.AssetID
	Mean    *mat.VecDense
	Cov     *mat.SymDense
	Periods int
}

// Len devuelve el número de activos.
func (s *Statistics) Len() int {
	return len(s.Assets)
}

// NewStatistics construye estadísticas a partir de valores ya calculados.
// cov se da por filas (n×n) y debe ser simétrica.
func NewStatistics(assets []domain.AssetID, mean, cov []float64) (*Statistics, error) {
	n := len(assets)
	if n == 0 || len(mean) != n || len(cov) != n*n {
		return nil, fmt.Errorf("%w: %d assets, %d means, %d covariance entries",
			ErrComputation, n, len(mean), len(cov))
	}
	for i, v := range mean {
		if !finite(v) {
			return nil, fmt.Errorf("%w: non-finite mean for %s", ErrComputation, assets[i])
		}
	}
	for i := 0; i < n; i++ {
		if !finite(cov[i*n+i]) {
			return nil, fmt.Errorf("%w: non-finite variance for %s", ErrComputation, assets[i])
		}
		if cov[i*n+i] < 0 {
			return nil, fmt.Errorf("%w: negative variance for %s", ErrComputation, assets[i])
		}
		for j := i + 1; j < n; j++ {
			if !finite(cov[i*n+j]) {
				return nil, fmt.Errorf("%w: non-finite covariance at (%d,%d)", ErrComputation, i, j)
			}
			if cov[i*n+j] != cov[j*n+i] {
				return nil, fmt.Errorf("%w: covariance not symmetric at (%d,%d)", ErrComputation, i, j)
			}
		}
	}
	return &Statistics{
		Assets: assets,
		Mean:   mat.NewVecDense(n, append([]float64(nil), mean...)),
		Cov:    mat.NewSymDense(n, append([]float64(nil), cov...)),
	}, nil
}

// BuildStatistics alinea los históricos y calcula μ y Σ.
// Los activos sin entrada en histories se descartan; el resultado conserva
// el orden de assets.
func BuildStatistics(assets []domain.AssetID, histories map[domain.AssetID]domain.PriceHistory) (*Statistics, error) {
	kept := make([]domain.AssetID, 0, len(assets))
	for _, id := range assets {
		h, ok := histories[id]
		if !ok {
			continue
		}
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrComputation, err)
		}
		kept = append(kept, id)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: no price history returned", ErrDataUnavailable)
	}

	rows := alignedReturns(kept, histories)
	if len(rows) < minAlignedPeriods {
		return nil, fmt.Errorf("%w: %d aligned return periods, need %d",
			ErrDataUnavailable, len(rows), minAlignedPeriods)
	}

	n := len(kept)
	data := mat.NewDense(len(rows), n, nil)
	for t, row := range rows {
		data.SetRow(t, row)
	}

	mean := mat.NewVecDense(n, nil)
	col := make([]float64, len(rows))
	for i := 0; i < n; i++ {
		mat.Col(col, i, data)
		mean.SetVec(i, stat.Mean(col, nil))
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)

	for i := 0; i < n; i++ {
		if !finite(mean.AtVec(i)) {
			return nil, fmt.Errorf("%w: non-finite mean return for %s", ErrComputation, kept[i])
		}
		for j := i; j < n; j++ {
			if !finite(cov.At(i, j)) {
				return nil, fmt.Errorf("%w: non-finite covariance for %s/%s", ErrComputation, kept[i], kept[j])
			}
		}
	}

	return &Statistics{Assets: kept, Mean: mean, Cov: cov, Periods: len(rows)}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// alignedReturns devuelve una fila de retornos por periodo alineado,
// con una columna por activo en el orden de assets.
func alignedReturns(assets []domain.AssetID, histories map[domain.AssetID]domain.PriceHistory) [][]float64 {
	// Índice común: unión de fechas de todos los activos.
	daySet := make(map[string]bool)
	for _, id := range assets {
		for _, p := range histories[id].Points {
			daySet[p.Day()] = true
		}
	}
	days := make([]string, 0, len(daySet))
	for d := range daySet {
		days = append(days, d)
	}
	sort.Strings(days)

	// Precio por activo en cada fecha del índice; 0 = ausente.
	prices := make([][]float64, len(assets))
	for i, id := range assets {
		byDay := make(map[string]float64, len(histories[id].Points))
		for _, p := range histories[id].Points {
			if p.Valid() {
				byDay[p.Day()] = p.Close
			}
		}
		prices[i] = make([]float64, len(days))
		for k, d := range days {
			prices[i][k] = byDay[d]
		}
	}

	var rows [][]float64
	for k := 1; k < len(days); k++ {
		row := make([]float64, len(assets))
		complete := true
		for i := range assets {
			prev, cur := prices[i][k-1], prices[i][k]
			if prev <= 0 || cur <= 0 {
				complete = false
				break
			}
			row[i] = cur/prev - 1
		}
		if complete {
			rows = append(rows, row)
		}
	}
	return rows
}
