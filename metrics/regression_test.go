package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

func TestRegressionMetrics(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{3, -0.5, 2, 7})
	yPred := mat.NewVecDense(4, []float64{2.5, 0.0, 2, 8})

	tests := []struct {
		name string
		fn   func(a, b *mat.VecDense) (float64, error)
		want float64
	}{
		{"MSE", MSE, 0.375},
		{"RMSE", RMSE, math.Sqrt(0.375)},
		{"MAE", MAE, 0.5},
		{"R2Score", R2Score, 0.9486081370449679},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(yTrue, yPred)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestMSEMatrix(t *testing.T) {
	yTrue := mat.NewDense(3, 1, []float64{1, 2, 3})
	yPred := mat.NewDense(3, 1, []float64{1, 2, 5})

	got, err := MSEMatrix(yTrue, yPred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-4.0/3) > 1e-12 {
		t.Errorf("MSEMatrix = %v, want %v", got, 4.0/3)
	}

	if _, err := MSEMatrix(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected error for a non-column matrix")
	}
}

func TestMetricErrors(t *testing.T) {
	short := mat.NewVecDense(2, []float64{1, 2})
	long := mat.NewVecDense(3, []float64{1, 2, 3})

	if _, err := MAE(short, long); !sfErrors.Is(err, sfErrors.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
	if _, err := MSE(&mat.VecDense{}, &mat.VecDense{}); err == nil {
		t.Error("expected error for empty vectors")
	}

	zeros := mat.NewVecDense(2, []float64{0, 0})
	if _, err := MAPE(zeros, short); err == nil {
		t.Error("expected error when every true value is zero")
	}
}

func TestSummarize_ConstantTarget(t *testing.T) {
	yTrue := mat.NewVecDense(3, []float64{5, 5, 5})
	yPred := mat.NewVecDense(3, []float64{4, 5, 6})

	r, err := Summarize(yTrue, yPred)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(r.R2) {
		t.Errorf("R2 should be NaN for a constant target, got %v", r.R2)
	}
	if math.Abs(r.MAE-2.0/3) > 1e-12 {
		t.Errorf("MAE = %v", r.MAE)
	}
}
