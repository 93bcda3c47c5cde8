package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/salesforecast/core/model"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// RobustScaler scales features with statistics that are robust to outliers:
// X_scaled = (X - center) / scale, where center is the median and scale the
// inter-quantile range (default 25th to 75th percentile).
type RobustScaler struct {
	model.BaseEstimator

	// Center is the per-feature median.
	Center []float64

	// Scale is the per-feature inter-quantile range. Zero ranges are stored as 1.
	Scale []float64

	NFeatures int

	WithCentering bool
	WithScaling   bool

	// QuantileRange is the percentile pair, in [0, 100], used for Scale.
	QuantileRange [2]float64
}

// NewRobustScaler creates a RobustScaler with scikit-learn defaults: centering and
// scaling enabled, quantile range (25, 75).
func NewRobustScaler() *RobustScaler {
	s := &RobustScaler{
		WithCentering: true,
		WithScaling:   true,
		QuantileRange: [2]float64{25, 75},
	}
	s.ModelType = "RobustScaler"
	return s
}

// Fit computes the median and inter-quantile range of each feature. NaN values are
// ignored, percentiles use linear interpolation between closest ranks.
func (s *RobustScaler) Fit(X mat.Matrix) (err error) {
	defer sfErrors.Recover(&err, "RobustScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return sfErrors.NewModelError("RobustScaler.Fit", "empty data", sfErrors.ErrEmptyData)
	}
	q := s.QuantileRange
	if q[0] < 0 || q[1] > 100 || q[0] > q[1] {
		return sfErrors.NewValueError("RobustScaler.Fit", fmt.Sprintf("invalid quantile range: %v", q))
	}

	s.NFeatures = c
	s.Center = make([]float64, c)
	s.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		col := finiteColumn(X, j)
		if len(col) == 0 {
			return sfErrors.NewModelError("RobustScaler.Fit",
				fmt.Sprintf("column %d has no finite values", j), sfErrors.ErrEmptyData)
		}
		sort.Float64s(col)

		if s.WithCentering {
			s.Center[j] = percentile(col, 50)
		}
		s.Scale[j] = 1.0
		if s.WithScaling {
			s.Scale[j] = rangeOrOne(percentile(col, q[1]) - percentile(col, q[0]))
		}
	}

	s.SetFitted()
	s.LogDebug("robust scaler fitted", "n_features", c, "n_samples", r)
	return nil
}

// Transform applies (X - center) / scale. NaN stays NaN.
func (s *RobustScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "RobustScaler.Transform")
	if !s.IsFitted() {
		return nil, sfErrors.NewNotFittedError("RobustScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, sfErrors.NewDimensionError("RobustScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Center[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform fits the scaler and transforms the same data.
func (s *RobustScaler) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "RobustScaler.FitTransform")
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps scaled values back: X = X_scaled * scale + center.
func (s *RobustScaler) InverseTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "RobustScaler.InverseTransform")
	if !s.IsFitted() {
		return nil, sfErrors.NewNotFittedError("RobustScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, sfErrors.NewDimensionError("RobustScaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale[j] + s.Center[j]
	}, X)
	return result, nil
}

// RobustScalerParams are the exported attributes of a fitted RobustScaler.
// A nil Center means centering was disabled at training time, likewise for Scale.
type RobustScalerParams struct {
	Center        []float64   `json:"center"`
	Scale         []float64   `json:"scale"`
	QuantileRange *[2]float64 `json:"quantile_range,omitempty"`
}

// ImportArtifact loads fitted parameters exported from scikit-learn.
func (s *RobustScaler) ImportArtifact(a *model.Artifact) error {
	var p RobustScalerParams
	if err := a.DecodeParams("RobustScaler", &p); err != nil {
		return err
	}

	n := len(p.Center)
	if n == 0 {
		n = len(p.Scale)
	}
	if n == 0 {
		return sfErrors.NewValueError("RobustScaler.ImportArtifact", "center or scale is required")
	}
	if (p.Center != nil && len(p.Center) != n) || (p.Scale != nil && len(p.Scale) != n) {
		return sfErrors.NewValueError("RobustScaler.ImportArtifact",
			fmt.Sprintf("center (%d) and scale (%d) lengths differ", len(p.Center), len(p.Scale)))
	}

	s.NFeatures = n
	s.WithCentering = p.Center != nil
	s.WithScaling = p.Scale != nil
	s.Center = make([]float64, n)
	s.Scale = make([]float64, n)
	for j := 0; j < n; j++ {
		s.Scale[j] = 1.0
		if s.WithCentering {
			s.Center[j] = p.Center[j]
		}
		if s.WithScaling {
			if math.IsNaN(p.Scale[j]) {
				return sfErrors.NewValueError("RobustScaler.ImportArtifact", fmt.Sprintf("scale[%d] is NaN", j))
			}
			s.Scale[j] = rangeOrOne(p.Scale[j])
		}
	}
	if p.QuantileRange != nil {
		s.QuantileRange = *p.QuantileRange
	}
	s.SetFitted()
	return nil
}

// Clone returns an unfitted scaler with the same options.
func (s *RobustScaler) Clone() *RobustScaler {
	return &RobustScaler{
		BaseEstimator: s.Unfitted(),
		WithCentering: s.WithCentering,
		WithScaling:   s.WithScaling,
		QuantileRange: s.QuantileRange,
	}
}

func (s *RobustScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("RobustScaler(quantile_range=(%.1f, %.1f))", s.QuantileRange[0], s.QuantileRange[1])
	}
	return fmt.Sprintf("RobustScaler(quantile_range=(%.1f, %.1f), n_features=%d)",
		s.QuantileRange[0], s.QuantileRange[1], s.NFeatures)
}

// percentile returns the p-th percentile of sorted data using linear interpolation
// between the two closest ranks (numpy's default method).
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
