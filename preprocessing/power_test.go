package preprocessing_test

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
	"github.com/ezoic/salesforecast/preprocessing"
)

func TestYeoJohnson(t *testing.T) {
	tests := []struct {
		x, lambda, want float64
	}{
		{3, 0, math.Log1p(3)},
		{3, 0.5, 2},
		{3, 1, 3},
		{0, 0.7, 0},
		{-3, 2, -math.Log1p(3)},
		{-3, 1, -3},
		{-1, 0.5, -(math.Pow(2, 1.5) - 1) / 1.5},
	}
	for _, tt := range tests {
		if got := preprocessing.YeoJohnson(tt.x, tt.lambda); math.Abs(got-tt.want) > epsilon {
			t.Errorf("YeoJohnson(%v, %v) = %v, want %v", tt.x, tt.lambda, got, tt.want)
		}
	}
	if !math.IsNaN(preprocessing.YeoJohnson(math.NaN(), 0.3)) {
		t.Error("NaN should stay NaN")
	}
}

func TestPowerTransformer_ImportArtifact(t *testing.T) {
	a := mustArtifact(t, `{"model_spec":{"name":"PowerTransformer","format_version":"1.0","feature":"customers"},
		"params":{"method":"yeo-johnson","standardize":true,"lambdas":[0.5],"mean":[2],"scale":[4]}}`)

	p := preprocessing.NewPowerTransformer(true)
	if err := p.ImportArtifact(a); err != nil {
		t.Fatalf("ImportArtifact failed: %v", err)
	}
	// yj(3) = 2 -> (2-2)/4 = 0, yj(8) = 4 -> (4-2)/4 = 0.5
	out, err := p.Transform(mat.NewDense(3, 1, []float64{3, 8, math.NaN()}))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if out.At(0, 0) != 0 || math.Abs(out.At(1, 0)-0.5) > epsilon {
		t.Errorf("unexpected output %v %v", out.At(0, 0), out.At(1, 0))
	}
	if !math.IsNaN(out.At(2, 0)) {
		t.Errorf("missing customers should stay NaN, got %v", out.At(2, 0))
	}
}

func TestPowerTransformer_ImportArtifactWithoutStandardize(t *testing.T) {
	a := mustArtifact(t, `{"model_spec":{"name":"PowerTransformer","format_version":"1.0"},
		"params":{"method":"yeo-johnson","standardize":false,"lambdas":[0]}}`)
	p := preprocessing.NewPowerTransformer(true)
	if err := p.ImportArtifact(a); err != nil {
		t.Fatalf("ImportArtifact failed: %v", err)
	}
	out, _ := p.Transform(mat.NewDense(1, 1, []float64{math.E - 1}))
	if math.Abs(out.At(0, 0)-1) > epsilon {
		t.Errorf("expected log1p, got %v", out.At(0, 0))
	}
}

func TestPowerTransformer_ImportArtifactErrors(t *testing.T) {
	tests := []struct {
		name   string
		params string
		target error
	}{
		{"box-cox", `{"method":"box-cox","standardize":false,"lambdas":[1]}`, sfErrors.ErrNotImplemented},
		{"no lambdas", `{"method":"yeo-johnson","standardize":false,"lambdas":[]}`, nil},
		{"missing scale", `{"method":"yeo-johnson","standardize":true,"lambdas":[1],"mean":[0]}`, nil},
		{"width mismatch", `{"method":"yeo-johnson","standardize":true,"lambdas":[1,1],"mean":[0],"scale":[1]}`, sfErrors.ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustArtifact(t, `{"model_spec":{"name":"PowerTransformer","format_version":"1.0"},"params":`+tt.params+`}`)
			err := preprocessing.NewPowerTransformer(true).ImportArtifact(a)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !sfErrors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestPowerTransformer_FitRightSkewed(t *testing.T) {
	data := []float64{0, 0, 1, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144}
	X := mat.NewDense(len(data), 1, data)

	p := preprocessing.NewPowerTransformer(true)
	out, err := p.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if p.Lambdas[0] >= 1 {
		t.Errorf("right-skewed data should get lambda < 1, got %v", p.Lambdas[0])
	}

	col := mat.Col(nil, 0, out)
	mean, variance := stat.PopMeanVariance(col, nil)
	if math.Abs(mean) > 1e-9 || math.Abs(variance-1) > 1e-9 {
		t.Errorf("standardized output mean=%v var=%v", mean, variance)
	}
	if stat.Skew(col, nil) >= stat.Skew(data, nil) {
		t.Errorf("transform should reduce skew")
	}
}

func TestPowerTransformer_CloneDoesNotShareState(t *testing.T) {
	p := preprocessing.NewPowerTransformer(true)
	a := mustArtifact(t, `{"model_spec":{"name":"PowerTransformer","format_version":"1.0"},
		"params":{"method":"yeo-johnson","standardize":true,"lambdas":[0.5],"mean":[2],"scale":[4]}}`)
	_ = p.ImportArtifact(a)

	clone := p.Clone()
	if clone.IsFitted() || !clone.Standardize {
		t.Fatalf("clone should be unfitted with the same options")
	}
	if err := clone.Fit(mat.NewDense(4, 1, []float64{1, 2, 3, 10})); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if p.Lambdas[0] != 0.5 || p.Scaler.Mean[0] != 2 {
		t.Error("fitting the clone changed the original")
	}
}
