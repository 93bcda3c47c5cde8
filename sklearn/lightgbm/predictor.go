package lightgbm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// Predictor evaluates a Model. It holds no mutable state and is safe for concurrent
// use.
type Predictor struct {
	model *Model
}

// NewPredictor creates a predictor for model.
func NewPredictor(model *Model) *Predictor {
	return &Predictor{model: model}
}

// PredictRaw returns the raw score of one feature row: the sum of the leaf values
// reached in every tree (averaged for random-forest models). No objective transform
// is applied; the loader only accepts objectives whose raw score is the prediction.
func (p *Predictor) PredictRaw(row []float64) float64 {
	sum := 0.0
	for i := range p.model.Trees {
		sum += p.model.Trees[i].predict(row)
	}
	if p.model.AverageOutput && len(p.model.Trees) > 0 {
		sum /= float64(len(p.model.Trees))
	}
	return sum
}

// Predict scores every row of X and returns an n x 1 matrix of raw scores.
func (p *Predictor) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if cols != p.model.NumFeatures {
		return nil, sfErrors.NewDimensionError("Predictor.Predict", p.model.NumFeatures, cols, 1)
	}
	if rows == 0 {
		return nil, sfErrors.NewModelError("Predictor.Predict", "empty data", sfErrors.ErrEmptyData)
	}

	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, p.PredictRaw(row))
	}
	return out, nil
}

// predict walks the tree for one row and returns the leaf value.
func (t *Tree) predict(row []float64) float64 {
	if t.NumLeaves <= 1 {
		return t.LeafValue[0]
	}
	node := 0
	for node >= 0 {
		node = t.decide(node, row[t.SplitFeature[node]])
	}
	return t.LeafValue[^node]
}

// decide follows LightGBM's numerical decision rule, including the routing of
// missing values.
func (t *Tree) decide(node int, fval float64) int {
	missing := t.missingType(node)
	if math.IsNaN(fval) && missing != MissingNaN {
		fval = 0
	}
	if (missing == MissingZero && math.Abs(fval) <= zeroThreshold) ||
		(missing == MissingNaN && math.IsNaN(fval)) {
		if t.defaultLeft(node) {
			return t.LeftChild[node]
		}
		return t.RightChild[node]
	}
	if fval <= t.Threshold[node] {
		return t.LeftChild[node]
	}
	return t.RightChild[node]
}
