package preprocessing_test

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/salesforecast/core/model"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
	"github.com/ezoic/salesforecast/preprocessing"
)

const epsilon = 1e-10 // Tolerance for floating-point comparisons

func mustArtifact(t *testing.T, src string) *model.Artifact {
	t.Helper()
	a, err := model.LoadArtifactFromReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	return a
}

func assertMatrix(t *testing.T, got mat.Matrix, want []float64) {
	t.Helper()
	r, c := got.Dims()
	if r*c != len(want) {
		t.Fatalf("expected %d values, got %dx%d", len(want), r, c)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.Abs(got.At(i, j)-want[i*c+j]) > 1e-9 {
				t.Errorf("[%d][%d]: expected %.12f, got %.12f", i, j, want[i*c+j], got.At(i, j))
			}
		}
	}
}

func TestStandardScaler_BasicFunctionality(t *testing.T) {
	// Feature 1: [1, 2, 3] -> mean=2, std=0.816
	// Feature 2: [4, 5, 6] -> mean=5, std=0.816
	X := mat.NewDense(3, 2, []float64{
		1.0, 4.0,
		2.0, 5.0,
		3.0, 6.0,
	})

	scaler := preprocessing.NewStandardScalerDefault()
	if err := scaler.Fit(X); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	for i, expected := range []float64{2.0, 5.0} {
		if math.Abs(scaler.Mean[i]-expected) > epsilon {
			t.Errorf("Mean[%d]: expected %f, got %f", i, expected, scaler.Mean[i])
		}
		if math.Abs(scaler.Scale[i]-0.816496580927726) > epsilon {
			t.Errorf("Scale[%d]: expected 0.8165, got %f", i, scaler.Scale[i])
		}
	}

	XScaled, err := scaler.Transform(X)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	assertMatrix(t, XScaled, []float64{
		-1.224744871391589, -1.224744871391589,
		0.0, 0.0,
		1.224744871391589, 1.224744871391589,
	})

	recovered, err := scaler.InverseTransform(XScaled)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	assertMatrix(t, recovered, []float64{1, 4, 2, 5, 3, 6})
}

func TestStandardScaler_IgnoresNaNInFit(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, math.NaN(), 3, 5})

	scaler := preprocessing.NewStandardScalerDefault()
	out, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if math.Abs(scaler.Mean[0]-3) > epsilon {
		t.Errorf("Mean should skip NaN, got %f", scaler.Mean[0])
	}
	if !math.IsNaN(out.At(1, 0)) {
		t.Errorf("NaN input should stay NaN, got %f", out.At(1, 0))
	}
}

func TestStandardScaler_ConstantFeature(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		5.0, 1.0,
		5.0, 2.0,
		5.0, 3.0,
	})

	scaler := preprocessing.NewStandardScalerDefault()
	if err := scaler.Fit(X); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	// 分散が0の特徴量のスケールは1.0
	if math.Abs(scaler.Scale[0]-1.0) > epsilon {
		t.Errorf("Scale[0] should be 1.0 for constant feature, got %f", scaler.Scale[0])
	}
}

func TestStandardScaler_ErrorCases(t *testing.T) {
	scaler := preprocessing.NewStandardScalerDefault()
	X := mat.NewDense(1, 2, []float64{1.0, 2.0})

	// 未学習状態でTransform
	if _, err := scaler.Transform(X); !sfErrors.Is(err, sfErrors.ErrNotFitted) {
		t.Errorf("Expected ErrNotFitted, got %v", err)
	}
	if _, err := scaler.InverseTransform(X); !sfErrors.Is(err, sfErrors.ErrNotFitted) {
		t.Errorf("Expected ErrNotFitted, got %v", err)
	}

	// 特徴量数の不一致
	_ = scaler.Fit(X)
	if _, err := scaler.Transform(mat.NewDense(1, 3, []float64{1, 2, 3})); !sfErrors.Is(err, sfErrors.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}

	empty := &mockMatrix{rows: 0, cols: 0}
	if err := preprocessing.NewStandardScalerDefault().Fit(empty); !sfErrors.Is(err, sfErrors.ErrEmptyData) {
		t.Errorf("Expected ErrEmptyData, got %v", err)
	}
}

// テスト用のモックMatrix
type mockMatrix struct {
	rows, cols int
}

func (m *mockMatrix) Dims() (int, int) { return m.rows, m.cols }

func (m *mockMatrix) At(i, j int) float64 { return 0 }

func (m *mockMatrix) T() mat.Matrix { return m }

func TestStandardScaler_ImportArtifactAndClone(t *testing.T) {
	scaler := preprocessing.NewStandardScalerDefault()
	a := mustArtifact(t, `{"model_spec":{"name":"StandardScaler","format_version":"1.0"},
		"params":{"mean":[10],"scale":[4]}}`)
	if err := scaler.ImportArtifact(a); err != nil {
		t.Fatalf("ImportArtifact failed: %v", err)
	}

	out, err := scaler.Transform(mat.NewDense(2, 1, []float64{14, 2}))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	assertMatrix(t, out, []float64{1, -2})

	clone := scaler.Clone()
	if clone.IsFitted() {
		t.Error("Clone should not be fitted")
	}
	if !scaler.IsFitted() || scaler.Mean[0] != 10 {
		t.Error("Clone must not touch the original")
	}

	bad := mustArtifact(t, `{"model_spec":{"name":"StandardScaler","format_version":"1.0"},
		"params":{"mean":[10],"scale":[0]}}`)
	if err := preprocessing.NewStandardScalerDefault().ImportArtifact(bad); err == nil {
		t.Error("Expected error for zero scale")
	}
}

func TestStandardScaler_String(t *testing.T) {
	scaler := preprocessing.NewStandardScaler(true, false)
	if got := scaler.String(); got != "StandardScaler(with_mean=true, with_std=false)" {
		t.Errorf("unexpected %q", got)
	}
	_ = scaler.Fit(mat.NewDense(2, 2, []float64{1.0, 2.0, 3.0, 4.0}))
	if got := scaler.String(); got != "StandardScaler(with_mean=true, with_std=false, n_features=2)" {
		t.Errorf("unexpected %q", got)
	}
}

// MinMaxScaler Tests

func TestMinMaxScaler_Years(t *testing.T) {
	// years 2013..2015 -> [0, 0.5, 1]
	X := mat.NewDense(3, 1, []float64{2013, 2014, 2015})

	scaler := preprocessing.NewMinMaxScalerDefault()
	XScaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if scaler.DataMin[0] != 2013 || scaler.DataMax[0] != 2015 || scaler.Scale[0] != 2 {
		t.Errorf("unexpected statistics min=%v max=%v scale=%v", scaler.DataMin, scaler.DataMax, scaler.Scale)
	}
	assertMatrix(t, XScaled, []float64{0, 0.5, 1})

	// a year outside the fitted range is extrapolated, not clipped
	out, err := scaler.Transform(mat.NewDense(1, 1, []float64{2016}))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	assertMatrix(t, out, []float64{1.5})
}

func TestMinMaxScaler_CustomRangeAndInverse(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		10.0, 100.0,
		20.0, 200.0,
		30.0, 300.0,
	})

	scaler := preprocessing.NewMinMaxScaler([2]float64{-1.0, 1.0})
	XScaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	assertMatrix(t, XScaled, []float64{-1, -1, 0, 0, 1, 1})

	XRecovered, err := scaler.InverseTransform(XScaled)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	assertMatrix(t, XRecovered, []float64{10, 100, 20, 200, 30, 300})
}

func TestMinMaxScaler_ConstantFeature(t *testing.T) {
	scaler := preprocessing.NewMinMaxScalerDefault()
	out, err := scaler.FitTransform(mat.NewDense(3, 1, []float64{5, 5, 5}))
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	// 範囲が0の特徴量のスケールは1.0、変換後は0
	if scaler.Scale[0] != 1.0 {
		t.Errorf("Scale[0] should be 1.0, got %f", scaler.Scale[0])
	}
	assertMatrix(t, out, []float64{0, 0, 0})
}

func TestMinMaxScaler_ErrorCases(t *testing.T) {
	scaler := preprocessing.NewMinMaxScalerDefault()
	X := mat.NewDense(1, 2, []float64{1.0, 2.0})

	if _, err := scaler.Transform(X); err == nil {
		t.Error("Expected error for unfitted scaler, got nil")
	}
	if _, err := scaler.InverseTransform(X); err == nil {
		t.Error("Expected error for unfitted scaler, got nil")
	}

	_ = scaler.Fit(X)
	if _, err := scaler.Transform(mat.NewDense(1, 3, []float64{1, 2, 3})); err == nil {
		t.Error("Expected error for dimension mismatch, got nil")
	}

	inverted := preprocessing.NewMinMaxScaler([2]float64{1, 0})
	if err := inverted.Fit(X); err == nil {
		t.Error("Expected error for inverted feature range")
	}
}

func TestMinMaxScaler_ImportArtifact(t *testing.T) {
	a := mustArtifact(t, `{"model_spec":{"name":"MinMaxScaler","format_version":"1.0","feature":"year"},
		"params":{"data_min":[2013],"data_max":[2015],"feature_range":[0,1]}}`)

	scaler := preprocessing.NewMinMaxScalerDefault()
	if err := scaler.ImportArtifact(a); err != nil {
		t.Fatalf("ImportArtifact failed: %v", err)
	}
	out, err := scaler.Transform(mat.NewDense(2, 1, []float64{2015, 2014}))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	assertMatrix(t, out, []float64{1, 0.5})

	wrongName := mustArtifact(t, `{"model_spec":{"name":"RobustScaler","format_version":"1.0"},"params":{}}`)
	var ve *sfErrors.ValueError
	if err := preprocessing.NewMinMaxScalerDefault().ImportArtifact(wrongName); !sfErrors.As(err, &ve) {
		t.Errorf("Expected ValueError for wrong artifact name, got %v", err)
	}
}

func TestMinMaxScaler_String(t *testing.T) {
	scaler := preprocessing.NewMinMaxScaler([2]float64{-1.0, 2.0})
	if got := scaler.String(); got != "MinMaxScaler(feature_range=[-1.0, 2.0])" {
		t.Errorf("unexpected %q", got)
	}
	_ = scaler.Fit(mat.NewDense(2, 2, []float64{1.0, 2.0, 3.0, 4.0}))
	if got := scaler.String(); got != "MinMaxScaler(feature_range=[-1.0, 2.0], n_features=2)" {
		t.Errorf("unexpected %q", got)
	}
}
