package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/salesforecast/core/model"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// PowerTransformer applies the Yeo-Johnson power transform feature-wise to make data
// more Gaussian-like, then optionally standardizes the result to zero mean and unit
// variance.
//
// For a feature value x and fitted lambda λ:
//
//	x >= 0, λ != 0:  ((x + 1)^λ - 1) / λ
//	x >= 0, λ == 0:  log(1 + x)
//	x <  0, λ != 2:  -((1 - x)^(2 - λ) - 1) / (2 - λ)
//	x <  0, λ == 2:  -log(1 - x)
type PowerTransformer struct {
	model.BaseEstimator

	// Lambdas holds the fitted λ of each feature.
	Lambdas []float64

	// Standardize applies a StandardScaler after the power transform.
	Standardize bool

	// Scaler is the fitted standardization step, nil when Standardize is false.
	Scaler *StandardScaler

	NFeatures int
}

// NewPowerTransformer creates a Yeo-Johnson PowerTransformer.
func NewPowerTransformer(standardize bool) *PowerTransformer {
	p := &PowerTransformer{Standardize: standardize}
	p.ModelType = "PowerTransformer"
	return p
}

// Fit estimates λ for every feature by maximum likelihood, ignoring NaN, and fits the
// standardization step on the transformed data when enabled.
func (p *PowerTransformer) Fit(X mat.Matrix) (err error) {
	defer sfErrors.Recover(&err, "PowerTransformer.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return sfErrors.NewModelError("PowerTransformer.Fit", "empty data", sfErrors.ErrEmptyData)
	}

	lambdas := make([]float64, c)
	for j := 0; j < c; j++ {
		col := finiteColumn(X, j)
		if len(col) == 0 {
			return sfErrors.NewModelError("PowerTransformer.Fit",
				fmt.Sprintf("column %d has no finite values", j), sfErrors.ErrEmptyData)
		}
		lmbda, err := yeoJohnsonOptimize(col)
		if err != nil {
			return sfErrors.NewModelError("PowerTransformer.Fit",
				fmt.Sprintf("lambda search failed for column %d", j), err)
		}
		lambdas[j] = lmbda
	}

	p.Lambdas = lambdas
	p.NFeatures = c
	p.Scaler = nil

	if p.Standardize {
		transformed := p.powerTransform(X)
		scaler := NewStandardScalerDefault()
		if err := scaler.Fit(transformed); err != nil {
			return err
		}
		p.Scaler = scaler
	}

	p.SetFitted()
	p.LogDebug("power transformer fitted", "lambdas", p.Lambdas)
	return nil
}

// Transform applies the fitted power transform and the standardization step.
func (p *PowerTransformer) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "PowerTransformer.Transform")
	if !p.IsFitted() {
		return nil, sfErrors.NewNotFittedError("PowerTransformer", "Transform")
	}

	_, c := X.Dims()
	if c != p.NFeatures {
		return nil, sfErrors.NewDimensionError("PowerTransformer.Transform", p.NFeatures, c, 1)
	}

	out := p.powerTransform(X)
	if p.Standardize {
		return p.Scaler.Transform(out)
	}
	return out, nil
}

// FitTransform fits the transformer and transforms the same data.
func (p *PowerTransformer) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "PowerTransformer.FitTransform")
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

func (p *PowerTransformer) powerTransform(X mat.Matrix) *mat.Dense {
	r, c := X.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return YeoJohnson(v, p.Lambdas[j])
	}, X)
	return out
}

// YeoJohnson transforms a single value with the given λ. NaN stays NaN.
func YeoJohnson(x, lmbda float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	if x >= 0 {
		if math.Abs(lmbda) < epsilonFloat64 {
			return math.Log1p(x)
		}
		return (math.Pow(x+1, lmbda) - 1) / lmbda
	}
	if math.Abs(lmbda-2) < epsilonFloat64 {
		return -math.Log1p(-x)
	}
	return -(math.Pow(1-x, 2-lmbda) - 1) / (2 - lmbda)
}

// yeoJohnsonLogLikelihood is the profile log-likelihood of λ for data x.
func yeoJohnsonLogLikelihood(x []float64, lmbda float64) float64 {
	n := float64(len(x))
	transformed := make([]float64, len(x))
	signedLog := 0.0
	for i, v := range x {
		transformed[i] = YeoJohnson(v, lmbda)
		signedLog += math.Copysign(math.Log1p(math.Abs(v)), v)
	}
	_, variance := stat.PopMeanVariance(transformed, nil)
	if variance < math.SmallestNonzeroFloat64*1e10 || math.IsNaN(variance) || math.IsInf(variance, 0) {
		return math.Inf(-1)
	}
	return -n/2*math.Log(variance) + (lmbda-1)*signedLog
}

// yeoJohnsonOptimize finds the λ maximizing the log-likelihood, starting from the
// identity transform (λ = 1).
func yeoJohnsonOptimize(x []float64) (float64, error) {
	problem := optimize.Problem{
		Func: func(v []float64) float64 {
			ll := yeoJohnsonLogLikelihood(x, v[0])
			if math.IsInf(ll, -1) {
				return 1e300
			}
			return -ll
		},
	}
	result, err := optimize.Minimize(problem, []float64{1.0}, nil, &optimize.NelderMead{})
	if result == nil || len(result.X) == 0 {
		if err == nil {
			err = sfErrors.New("no result")
		}
		return 0, err
	}
	// an early stop (iteration limit) still carries the best λ found
	if math.IsNaN(result.X[0]) {
		return 0, sfErrors.New("lambda search diverged")
	}
	return result.X[0], nil
}

// PowerTransformerParams are the exported attributes of a fitted PowerTransformer.
// Mean and Scale are the attributes of its internal StandardScaler.
type PowerTransformerParams struct {
	Method      string    `json:"method"`
	Standardize bool      `json:"standardize"`
	Lambdas     []float64 `json:"lambdas"`
	Mean        []float64 `json:"mean,omitempty"`
	Scale       []float64 `json:"scale,omitempty"`
}

// ImportArtifact loads fitted parameters exported from scikit-learn. Only the
// yeo-johnson method is supported.
func (p *PowerTransformer) ImportArtifact(a *model.Artifact) error {
	var params PowerTransformerParams
	if err := a.DecodeParams("PowerTransformer", &params); err != nil {
		return err
	}
	if params.Method != "" && params.Method != "yeo-johnson" {
		return sfErrors.NewModelError("PowerTransformer.ImportArtifact",
			fmt.Sprintf("method %q", params.Method), sfErrors.ErrNotImplemented)
	}
	if len(params.Lambdas) == 0 {
		return sfErrors.NewValueError("PowerTransformer.ImportArtifact", "lambdas are required")
	}
	for j, l := range params.Lambdas {
		if math.IsNaN(l) || math.IsInf(l, 0) {
			return sfErrors.NewValueError("PowerTransformer.ImportArtifact",
				fmt.Sprintf("lambdas[%d] is not finite", j))
		}
	}

	p.Standardize = params.Standardize
	p.Scaler = nil
	if params.Standardize {
		scaler := NewStandardScalerDefault()
		err := scaler.setParams(StandardScalerParams{Mean: params.Mean, Scale: params.Scale})
		if err != nil {
			return sfErrors.Wrap(err, "PowerTransformer standardization")
		}
		if scaler.NFeatures != len(params.Lambdas) {
			return sfErrors.NewDimensionError("PowerTransformer.ImportArtifact", len(params.Lambdas), scaler.NFeatures, 1)
		}
		p.Scaler = scaler
	}
	p.Lambdas = append([]float64(nil), params.Lambdas...)
	p.NFeatures = len(params.Lambdas)
	p.SetFitted()
	return nil
}

// Clone returns an unfitted transformer with the same options.
func (p *PowerTransformer) Clone() *PowerTransformer {
	return &PowerTransformer{
		BaseEstimator: p.Unfitted(),
		Standardize:   p.Standardize,
	}
}

func (p *PowerTransformer) String() string {
	if !p.IsFitted() {
		return fmt.Sprintf("PowerTransformer(method='yeo-johnson', standardize=%t)", p.Standardize)
	}
	return fmt.Sprintf("PowerTransformer(method='yeo-johnson', standardize=%t, lambdas=%v)", p.Standardize, p.Lambdas)
}
