// Package preprocessing implements the column transforms applied to engineered store
// records before they reach the sales model.
//
// Every transform follows the scikit-learn pattern (Fit, Transform, FitTransform) so it
// can be refitted on a batch, but in normal serving the parameters are imported from
// the artifacts exported at training time:
//
//   - RobustScaler: (x - median) / IQR, for the promo2 tenure columns
//   - PowerTransformer: Yeo-Johnson with optional standardization, for skewed counts
//     and distances
//   - MinMaxScaler: linear rescale of the calendar year
//   - StandardScaler: z-score, also the standardization step of PowerTransformer
//   - OneHotEncoder: indicator columns over a fixed category universe
//   - LabelEncoder: sorted-class ordinal codes that reject unseen values
//   - Cyclical: sin/cos pairs for periodic calendar fields
//
// Example:
//
//	a, _ := model.LoadArtifactFromFile("artifacts/year_mms.json")
//	scaler := preprocessing.NewMinMaxScalerDefault()
//	if err := scaler.ImportArtifact(a); err != nil {
//		log.Fatal(err)
//	}
//	scaled, err := scaler.Transform(years)
//
// Fitted transforms are read-only during Transform and safe for concurrent use. Clone
// returns an unfitted copy with the same hyperparameters, which is how refit mode
// works without touching shared state.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/salesforecast/core/model"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// Transformer is a numeric column transform.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	IsFitted() bool
}

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する
type StandardScaler struct {
	model.BaseEstimator

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差
	Scale []float64

	// NFeatures は特徴量の数
	NFeatures int

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler creates a new StandardScaler.
//
// Parameters:
//   - withMean: whether to center the data by removing the mean
//   - withStd: whether to divide by the population standard deviation
//
// Example:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X)
//	Xs, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	s := &StandardScaler{
		WithMean: withMean,
		WithStd:  withStd,
	}
	s.ModelType = "StandardScaler"
	return s
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit computes the feature-wise mean and population standard deviation. NaN values
// are ignored. A feature with (near) zero variance gets scale 1.
func (s *StandardScaler) Fit(X mat.Matrix) (err error) {
	defer sfErrors.Recover(&err, "StandardScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return sfErrors.NewModelError("StandardScaler.Fit", "empty data", sfErrors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		col := finiteColumn(X, j)
		if len(col) == 0 {
			return sfErrors.NewModelError("StandardScaler.Fit",
				fmt.Sprintf("column %d has no finite values", j), sfErrors.ErrEmptyData)
		}
		mean, variance := stat.PopMeanVariance(col, nil)

		if s.WithMean {
			s.Mean[j] = mean
		}

		s.Scale[j] = 1.0
		if s.WithStd {
			std := math.Sqrt(variance)
			// 標準偏差が0に近い場合は1のまま（ゼロ除算を避ける）
			if std >= 1e-8 {
				s.Scale[j] = std
			}
		}
	}

	s.SetFitted()
	return nil
}

// Transform applies X_scaled = (X - mean) / scale.
func (s *StandardScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "StandardScaler.Transform")
	if !s.IsFitted() {
		return nil, sfErrors.NewNotFittedError("StandardScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, sfErrors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform fits the scaler and transforms the same data.
func (s *StandardScaler) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "StandardScaler.FitTransform")
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform reverses the standardization: X_orig = X_scaled * scale + mean.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "StandardScaler.InverseTransform")
	if !s.IsFitted() {
		return nil, sfErrors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, sfErrors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return result, nil
}

// StandardScalerParams are the exported attributes of a fitted StandardScaler.
type StandardScalerParams struct {
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
	WithMean *bool     `json:"with_mean,omitempty"`
	WithStd  *bool     `json:"with_std,omitempty"`
}

// ImportArtifact loads fitted parameters exported from scikit-learn.
func (s *StandardScaler) ImportArtifact(a *model.Artifact) error {
	var p StandardScalerParams
	if err := a.DecodeParams("StandardScaler", &p); err != nil {
		return err
	}
	return s.setParams(p)
}

func (s *StandardScaler) setParams(p StandardScalerParams) error {
	if len(p.Mean) == 0 || len(p.Mean) != len(p.Scale) {
		return sfErrors.NewValueError("StandardScaler.ImportArtifact",
			fmt.Sprintf("mean (%d) and scale (%d) must be non-empty and equal length", len(p.Mean), len(p.Scale)))
	}
	for j, v := range p.Scale {
		if v == 0 || math.IsNaN(v) {
			return sfErrors.NewValueError("StandardScaler.ImportArtifact",
				fmt.Sprintf("scale[%d] must be non-zero, got %v", j, v))
		}
	}
	if p.WithMean != nil {
		s.WithMean = *p.WithMean
	}
	if p.WithStd != nil {
		s.WithStd = *p.WithStd
	}
	s.Mean = append([]float64(nil), p.Mean...)
	s.Scale = append([]float64(nil), p.Scale...)
	s.NFeatures = len(p.Mean)
	s.SetFitted()
	return nil
}

// Clone returns an unfitted scaler with the same options.
func (s *StandardScaler) Clone() *StandardScaler {
	return &StandardScaler{
		BaseEstimator: s.Unfitted(),
		WithMean:      s.WithMean,
		WithStd:       s.WithStd,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// データを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	model.BaseEstimator

	// Scale は各特徴量のスケール (max - min)、定数特徴量は1
	Scale []float64

	// DataMin は学習データの最小値
	DataMin []float64

	// DataMax は学習データの最大値
	DataMax []float64

	// NFeatures は特徴量の数
	NFeatures int

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64

	// Clip restricts transformed values to FeatureRange.
	Clip bool
}

// NewMinMaxScaler creates a new MinMaxScaler.
// X_scaled = (X - data_min) / (data_max - data_min) * (max - min) + min
//
// Example:
//
//	scaler := preprocessing.NewMinMaxScaler([2]float64{0.0, 1.0})
//	err := scaler.Fit(years)
//	scaled, err := scaler.Transform(years)
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	m := &MinMaxScaler{
		FeatureRange: featureRange,
	}
	m.ModelType = "MinMaxScaler"
	return m
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit computes the feature-wise minimum and maximum, ignoring NaN.
func (m *MinMaxScaler) Fit(X mat.Matrix) (err error) {
	defer sfErrors.Recover(&err, "MinMaxScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return sfErrors.NewModelError("MinMaxScaler.Fit", "empty data", sfErrors.ErrEmptyData)
	}
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return sfErrors.NewValueError("MinMaxScaler.Fit",
			fmt.Sprintf("minimum of feature range must be smaller than maximum, got %v", m.FeatureRange))
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		col := finiteColumn(X, j)
		if len(col) == 0 {
			return sfErrors.NewModelError("MinMaxScaler.Fit",
				fmt.Sprintf("column %d has no finite values", j), sfErrors.ErrEmptyData)
		}
		lo, hi := col[0], col[0]
		for _, v := range col[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		m.DataMin[j] = lo
		m.DataMax[j] = hi
		m.Scale[j] = rangeOrOne(hi - lo)
	}

	m.SetFitted()
	return nil
}

// Transform scales X into the fitted feature range.
func (m *MinMaxScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "MinMaxScaler.Transform")
	if !m.IsFitted() {
		return nil, sfErrors.NewNotFittedError("MinMaxScaler", "Transform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, sfErrors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	featureRange := m.FeatureRange[1] - m.FeatureRange[0]
	result.Apply(func(i, j int, v float64) float64 {
		scaled := (v-m.DataMin[j])/m.Scale[j]*featureRange + m.FeatureRange[0]
		if m.Clip {
			scaled = math.Max(m.FeatureRange[0], math.Min(m.FeatureRange[1], scaled))
		}
		return scaled
	}, X)
	return result, nil
}

// FitTransform fits the scaler and transforms the same data.
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "MinMaxScaler.FitTransform")
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform maps scaled values back to the original range.
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "MinMaxScaler.InverseTransform")
	if !m.IsFitted() {
		return nil, sfErrors.NewNotFittedError("MinMaxScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, sfErrors.NewDimensionError("MinMaxScaler.InverseTransform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	featureRange := m.FeatureRange[1] - m.FeatureRange[0]
	result.Apply(func(i, j int, v float64) float64 {
		// 逆変換: X_orig = ((X_scaled - min) / (max - min)) * (data_max - data_min) + data_min
		return ((v-m.FeatureRange[0])/featureRange)*m.Scale[j] + m.DataMin[j]
	}, X)
	return result, nil
}

// MinMaxScalerParams are the exported attributes of a fitted MinMaxScaler.
type MinMaxScalerParams struct {
	DataMin      []float64   `json:"data_min"`
	DataMax      []float64   `json:"data_max"`
	FeatureRange *[2]float64 `json:"feature_range,omitempty"`
	Clip         bool        `json:"clip,omitempty"`
}

// ImportArtifact loads fitted parameters exported from scikit-learn.
func (m *MinMaxScaler) ImportArtifact(a *model.Artifact) error {
	var p MinMaxScalerParams
	if err := a.DecodeParams("MinMaxScaler", &p); err != nil {
		return err
	}
	if len(p.DataMin) == 0 || len(p.DataMin) != len(p.DataMax) {
		return sfErrors.NewValueError("MinMaxScaler.ImportArtifact",
			fmt.Sprintf("data_min (%d) and data_max (%d) must be non-empty and equal length", len(p.DataMin), len(p.DataMax)))
	}
	if p.FeatureRange != nil {
		m.FeatureRange = *p.FeatureRange
	}
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return sfErrors.NewValueError("MinMaxScaler.ImportArtifact",
			fmt.Sprintf("invalid feature range %v", m.FeatureRange))
	}
	m.Clip = p.Clip
	m.DataMin = append([]float64(nil), p.DataMin...)
	m.DataMax = append([]float64(nil), p.DataMax...)
	m.Scale = make([]float64, len(p.DataMin))
	for j := range m.Scale {
		m.Scale[j] = rangeOrOne(m.DataMax[j] - m.DataMin[j])
	}
	m.NFeatures = len(p.DataMin)
	m.SetFitted()
	return nil
}

// Clone returns an unfitted scaler with the same feature range.
func (m *MinMaxScaler) Clone() *MinMaxScaler {
	return &MinMaxScaler{
		BaseEstimator: m.Unfitted(),
		FeatureRange:  m.FeatureRange,
		Clip:          m.Clip,
	}
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])",
			m.FeatureRange[0], m.FeatureRange[1])
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], m.NFeatures)
}

// finiteColumn returns column j of X without NaN and ±Inf entries.
func finiteColumn(X mat.Matrix, j int) []float64 {
	r, _ := X.Dims()
	col := make([]float64, 0, r)
	for i := 0; i < r; i++ {
		v := X.At(i, j)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		col = append(col, v)
	}
	return col
}

// rangeOrOne mirrors scikit-learn's handling of zeros in scale.
func rangeOrOne(v float64) float64 {
	if math.Abs(v) < 10*epsilonFloat64 {
		return 1.0
	}
	return v
}

const epsilonFloat64 = 2.220446049250313e-16
