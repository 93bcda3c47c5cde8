package preprocessing

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/salesforecast/core/model"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// OneHotEncoder はscikit-learn互換のOne-Hotエンコーダー
// カテゴリカルな文字列データを0/1のバイナリベクトルに変換する
//
// When built with NewOneHotEncoderWithCategories the category universe is fixed up
// front: categories absent from a batch still produce (all-zero) columns, and values
// outside the universe produce an all-zero block. The output width never depends on
// the batch.
type OneHotEncoder struct {
	model.BaseEstimator

	// Categories は各特徴量のカテゴリ一覧
	Categories [][]string

	// CategoryToIdx は各特徴量のカテゴリ→インデックスマップ
	CategoryToIdx []map[string]int

	// NFeatures は入力特徴量数
	NFeatures int

	// NOutputs は出力特徴量数（全カテゴリの合計数）
	NOutputs int

	fixed bool
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
//
// 使用例:
//
//	encoder := preprocessing.NewOneHotEncoder()
//	err := encoder.Fit(data)
//	encoded, err := encoder.Transform(data)
func NewOneHotEncoder() *OneHotEncoder {
	e := &OneHotEncoder{}
	e.ModelType = "OneHotEncoder"
	return e
}

// NewOneHotEncoderWithCategories creates an encoder whose universe is fixed to
// categories (one list per feature, order preserved). The encoder is fitted
// immediately and Fit becomes a no-op.
func NewOneHotEncoderWithCategories(categories [][]string) (*OneHotEncoder, error) {
	e := NewOneHotEncoder()
	if err := e.setCategories(categories); err != nil {
		return nil, err
	}
	e.fixed = true
	return e, nil
}

func (e *OneHotEncoder) setCategories(categories [][]string) error {
	if len(categories) == 0 {
		return sfErrors.NewModelError("OneHotEncoder", "empty categories", sfErrors.ErrEmptyData)
	}
	e.NFeatures = len(categories)
	e.Categories = make([][]string, len(categories))
	e.CategoryToIdx = make([]map[string]int, len(categories))
	e.NOutputs = 0
	for j, cats := range categories {
		if len(cats) == 0 {
			return sfErrors.NewValueError("OneHotEncoder", fmt.Sprintf("feature %d has no categories", j))
		}
		idx := make(map[string]int, len(cats))
		for k, c := range cats {
			if _, dup := idx[c]; dup {
				return sfErrors.NewValueError("OneHotEncoder", fmt.Sprintf("feature %d: duplicate category %q", j, c))
			}
			idx[c] = k
		}
		e.Categories[j] = append([]string(nil), cats...)
		e.CategoryToIdx[j] = idx
		e.NOutputs += len(cats)
	}
	e.SetFitted()
	return nil
}

// Fit は訓練データからカテゴリ情報を学習する
//
// カテゴリはソートされる。固定カテゴリで作成された場合は何もしない。
func (e *OneHotEncoder) Fit(data [][]string) (err error) {
	defer sfErrors.Recover(&err, "OneHotEncoder.Fit")
	if e.fixed {
		return nil
	}
	if len(data) == 0 {
		return sfErrors.NewModelError("OneHotEncoder.Fit", "empty data", sfErrors.ErrEmptyData)
	}
	if len(data[0]) == 0 {
		return sfErrors.NewModelError("OneHotEncoder.Fit", "empty features", sfErrors.ErrEmptyData)
	}

	nFeatures := len(data[0])
	for i, row := range data {
		if len(row) != nFeatures {
			return sfErrors.NewDimensionError("OneHotEncoder.Fit", nFeatures, len(row), i)
		}
	}

	categories := make([][]string, nFeatures)
	for j := 0; j < nFeatures; j++ {
		set := make(map[string]struct{})
		for _, row := range data {
			set[row[j]] = struct{}{}
		}
		cats := make([]string, 0, len(set))
		for c := range set {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		categories[j] = cats
	}
	return e.setCategories(categories)
}

// Transform は学習済みのカテゴリ情報を使ってデータをone-hot encodingする
// 未知カテゴリは0のまま
func (e *OneHotEncoder) Transform(data [][]string) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "OneHotEncoder.Transform")
	if !e.IsFitted() {
		return nil, sfErrors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(data) == 0 {
		return nil, sfErrors.NewModelError("OneHotEncoder.Transform", "empty data", sfErrors.ErrEmptyData)
	}

	result := mat.NewDense(len(data), e.NOutputs, nil)
	for i, row := range data {
		if len(row) != e.NFeatures {
			return nil, sfErrors.NewDimensionError("OneHotEncoder.Transform", e.NFeatures, len(row), 1)
		}
		offset := 0
		for j, category := range row {
			if idx, ok := e.CategoryToIdx[j][category]; ok {
				result.Set(i, offset+idx, 1.0)
			}
			offset += len(e.Categories[j])
		}
	}
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (e *OneHotEncoder) FitTransform(data [][]string) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "OneHotEncoder.FitTransform")
	if err := e.Fit(data); err != nil {
		return nil, err
	}
	return e.Transform(data)
}

// GetFeatureNamesOut は変換後の特徴量の名前を返す
//
// 例: 入力特徴量名が["state_holiday"]の場合
// 出力: ["state_holiday_christmas", "state_holiday_easter", ...]
func (e *OneHotEncoder) GetFeatureNamesOut(inputFeatures []string) []string {
	if !e.IsFitted() {
		return nil
	}

	var out []string
	for i, categories := range e.Categories {
		name := fmt.Sprintf("x%d", i)
		if i < len(inputFeatures) {
			name = inputFeatures[i]
		}
		for _, category := range categories {
			out = append(out, name+"_"+category)
		}
	}
	return out
}

// OneHotEncoderParams are the exported categories of a fitted OneHotEncoder.
type OneHotEncoderParams struct {
	Categories [][]interface{} `json:"categories"`
}

// ImportArtifact fixes the category universe from an exported encoder. Numeric
// categories are stringified the way StringifyCategory does.
func (e *OneHotEncoder) ImportArtifact(a *model.Artifact) error {
	var p OneHotEncoderParams
	if err := a.DecodeParams("OneHotEncoder", &p); err != nil {
		return err
	}
	categories := make([][]string, len(p.Categories))
	for j, cats := range p.Categories {
		strs, err := stringifyAll(cats)
		if err != nil {
			return sfErrors.Wrapf(err, "OneHotEncoder feature %d", j)
		}
		categories[j] = strs
	}
	if err := e.setCategories(categories); err != nil {
		return err
	}
	e.fixed = true
	return nil
}

// LabelEncoder maps the values of one categorical feature to the index of the value
// in Classes. Values not in Classes are rejected with a TransformError; they are never
// mapped to a default code.
type LabelEncoder struct {
	model.BaseEstimator

	// Feature names the encoded column, reported in TransformError.
	Feature string

	// Classes holds the known values; the code of a value is its index.
	Classes []string

	index map[string]int
}

// NewLabelEncoder creates an unfitted LabelEncoder for the named feature.
func NewLabelEncoder(feature string) *LabelEncoder {
	e := &LabelEncoder{Feature: feature}
	e.ModelType = "LabelEncoder"
	return e
}

// Fit learns the sorted set of distinct values.
func (e *LabelEncoder) Fit(values []string) (err error) {
	defer sfErrors.Recover(&err, "LabelEncoder.Fit")
	if len(values) == 0 {
		return sfErrors.NewModelError("LabelEncoder.Fit", "empty data", sfErrors.ErrEmptyData)
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	classes := make([]string, 0, len(set))
	for v := range set {
		classes = append(classes, v)
	}
	sort.Strings(classes)
	e.setClasses(classes)
	return nil
}

func (e *LabelEncoder) setClasses(classes []string) {
	e.Classes = classes
	e.index = make(map[string]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}
	e.SetFitted()
}

// Transform returns the code of every value.
func (e *LabelEncoder) Transform(values []string) (_ []float64, err error) {
	defer sfErrors.Recover(&err, "LabelEncoder.Transform")
	if !e.IsFitted() {
		return nil, sfErrors.NewNotFittedError("LabelEncoder", "Transform")
	}
	out := make([]float64, len(values))
	for i, v := range values {
		code, ok := e.index[v]
		if !ok {
			return nil, sfErrors.NewTransformError(e.Feature, v)
		}
		out[i] = float64(code)
	}
	return out, nil
}

// FitTransform fits the encoder and encodes the same values.
func (e *LabelEncoder) FitTransform(values []string) ([]float64, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// InverseTransform returns the class of every code.
func (e *LabelEncoder) InverseTransform(codes []float64) ([]string, error) {
	if !e.IsFitted() {
		return nil, sfErrors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		k := int(c)
		if float64(k) != c || k < 0 || k >= len(e.Classes) {
			return nil, sfErrors.NewValueError("LabelEncoder.InverseTransform", fmt.Sprintf("code %v out of range", c))
		}
		out[i] = e.Classes[k]
	}
	return out, nil
}

// LabelEncoderParams are the exported classes of a fitted LabelEncoder.
type LabelEncoderParams struct {
	Classes []interface{} `json:"classes"`
}

// ImportArtifact loads the class list exported from scikit-learn. The order of the
// list is kept as is. If the artifact names a feature it replaces e.Feature.
func (e *LabelEncoder) ImportArtifact(a *model.Artifact) error {
	var p LabelEncoderParams
	if err := a.DecodeParams("LabelEncoder", &p); err != nil {
		return err
	}
	if len(p.Classes) == 0 {
		return sfErrors.NewValueError("LabelEncoder.ImportArtifact", "classes are required")
	}
	classes, err := stringifyAll(p.Classes)
	if err != nil {
		return sfErrors.Wrap(err, "LabelEncoder classes")
	}
	seen := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		if _, dup := seen[c]; dup {
			return sfErrors.NewValueError("LabelEncoder.ImportArtifact", fmt.Sprintf("duplicate class %q", c))
		}
		seen[c] = struct{}{}
	}
	if a.ModelSpec.Feature != "" {
		e.Feature = a.ModelSpec.Feature
	}
	e.setClasses(classes)
	return nil
}

// Clone returns an unfitted encoder for the same feature.
func (e *LabelEncoder) Clone() *LabelEncoder {
	return &LabelEncoder{
		BaseEstimator: e.Unfitted(),
		Feature:       e.Feature,
	}
}

// StringifyCategory renders a numeric category the way the encoders store it:
// integral values without a decimal point (2013, not 2013.0).
func StringifyCategory(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func stringifyAll(values []interface{}) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case string:
			out[i] = x
		case float64:
			out[i] = StringifyCategory(x)
		case bool:
			out[i] = strconv.FormatBool(x)
		default:
			return nil, sfErrors.NewValueError("stringifyAll", fmt.Sprintf("unsupported category %v (%T)", v, v))
		}
	}
	return out, nil
}
