package optimizer

import "errors"

var (
	// ErrInsufficientAssets: menos de MinAssets activos equity.
	ErrInsufficientAssets = errors.New("optimizer: at least 2 assets are required")
	// ErrDataUnavailable: sin precios utilizables o sin periodos alineados suficientes.
	ErrDataUnavailable = errors.New("optimizer: price data unavailable")
	// ErrComputation: error numérico o de forma de los datos.
	ErrComputation = errors.New("optimizer: computation failed")
)
