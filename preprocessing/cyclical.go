package preprocessing

import (
	"fmt"
	"math"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// Cyclical encodes a periodic value x as the pair sin(2πx/Period), cos(2πx/Period), so
// that the end of a cycle sits next to its start.
type Cyclical struct {
	Period float64
}

// NewCyclical creates a cyclical encoder. period must be positive.
func NewCyclical(period float64) (*Cyclical, error) {
	if !(period > 0) || math.IsInf(period, 0) {
		return nil, sfErrors.NewValueError("NewCyclical", fmt.Sprintf("period must be positive, got %v", period))
	}
	return &Cyclical{Period: period}, nil
}

// Encode returns the sin/cos pair of x.
func (c Cyclical) Encode(x float64) (sin, cos float64) {
	// x * (2π/period), the same rounding as the exported training features
	angle := x * (2 * math.Pi / c.Period)
	return math.Sin(angle), math.Cos(angle)
}

// Transform encodes every value.
func (c Cyclical) Transform(values []float64) (sin, cos []float64) {
	sin = make([]float64, len(values))
	cos = make([]float64, len(values))
	for i, v := range values {
		sin[i], cos[i] = c.Encode(v)
	}
	return sin, cos
}
