package optimizer

import (
	"fmt"
	"math/rand/v2"

	"github.com/alejandrodnm/portfolio-analysis/internal/domain"
	"gonum.org/v1/gonum/stat/distuv"
)

// pcgStream fija el segundo word del PCG para que la semilla sea un solo uint64.
const pcgStream = 0x9e3779b97f4a7c15

// Sampler genera vectores de pesos sobre el simplex.
//
// Cada componente es U(0,1) y luego se normaliza por la suma. No es una
// Dirichlet(1,…,1): las muestras se concentran hacia el centroide.
// Un Sampler no es seguro para uso concurrente: todas las muestras salen de una
// única fuente pseudoaleatoria consumida en orden.
type Sampler struct {
	dist distuv.Uniform
}

// NewSampler crea un Sampler determinista para la semilla dada.
func NewSampler(seed uint64) *Sampler {
	return &Sampler{dist: distuv.Uniform{
		Min: 0,
		Max: 1,
		Src: rand.NewPCG(seed, seed^pcgStream),
	}}
}

// Draw devuelve un nuevo WeightVector de n componentes. Panics si n < 1.
func (s *Sampler) Draw(n int) domain.WeightVector {
	if n < 1 {
		panic(fmt.Sprintf("optimizer: sampler needs at least one asset, got %d", n))
	}
	w := make(domain.WeightVector, n)
	var sum float64
	for i := range w {
		v := s.dist.Rand()
		for v == 0 { // el intervalo es abierto: (0,1)
			v = s.dist.Rand()
		}
		w[i] = v
		sum += v
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}
