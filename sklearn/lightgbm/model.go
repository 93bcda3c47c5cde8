// Package lightgbm loads gradient boosted tree models trained with LightGBM and
// evaluates them in pure Go.
//
// Both LightGBM serialisations are understood: the text dump written by
// Booster.save_model and the JSON dump returned by Booster.dump_model. Only numerical
// splits are supported; a model with categorical splits or linear trees is rejected at
// load time instead of predicting wrong values, and so is any objective whose output
// is not the raw score (poisson, gamma, tweedie, binary).
//
//	reg := lightgbm.NewLGBMRegressor()
//	if err := reg.LoadModel("model/rossmann.txt"); err != nil {
//		log.Fatal(err)
//	}
//	raw, err := reg.Predict(features) // n x 1, raw score
package lightgbm

// ObjectiveType is the objective the model was trained with.
type ObjectiveType string

const (
	RegressionL2       ObjectiveType = "regression"
	RegressionL1       ObjectiveType = "regression_l1"
	RegressionHuber    ObjectiveType = "huber"
	RegressionPoisson  ObjectiveType = "poisson"
	RegressionTweedie  ObjectiveType = "tweedie"
	RegressionGamma    ObjectiveType = "gamma"
	RegressionFair     ObjectiveType = "fair"
	RegressionQuantile ObjectiveType = "quantile"
	RegressionMAPE     ObjectiveType = "mape"
	BinaryLogistic     ObjectiveType = "binary"
)

// IdentityOutput reports whether the raw score of the objective is already the
// prediction. Log-link and sigmoid objectives are not.
func (o ObjectiveType) IdentityOutput() bool {
	switch o {
	case RegressionL2, RegressionL1, RegressionHuber, RegressionFair, RegressionQuantile, RegressionMAPE:
		return true
	}
	return false
}

// MissingType is how a split routes missing values. Encoded in bits 2-3 of
// decision_type.
type MissingType int8

const (
	MissingNone MissingType = iota
	MissingZero
	MissingNaN
)

const (
	categoricalMask = 1
	defaultLeftMask = 1 << 1

	// kZeroThreshold in LightGBM: values with smaller magnitude count as zero.
	zeroThreshold = 1e-35
)

// Model is a loaded LightGBM booster.
type Model struct {
	Version      string
	NumClass     int
	NumFeatures  int
	FeatureNames []string
	Objective    ObjectiveType

	// AverageOutput is set for random-forest boosting, whose trees are averaged.
	AverageOutput bool

	Trees []Tree
}

// NewModel creates an empty single-output model.
func NewModel() *Model {
	return &Model{NumClass: 1, Objective: RegressionL2}
}

// Tree is one regression tree in LightGBM's array layout. Internal node i splits on
// SplitFeature[i] at Threshold[i]; a child index c >= 0 is another internal node and
// c < 0 is the leaf ^c.
type Tree struct {
	TreeIndex    int
	NumLeaves    int
	Shrinkage    float64
	SplitFeature []int
	Threshold    []float64
	DecisionType []int8
	LeftChild    []int
	RightChild   []int
	LeafValue    []float64
}

// NumInternalNodes returns the number of split nodes.
func (t *Tree) NumInternalNodes() int {
	return len(t.SplitFeature)
}

func (t *Tree) missingType(node int) MissingType {
	return MissingType((t.DecisionType[node] >> 2) & 3)
}

func (t *Tree) defaultLeft(node int) bool {
	return t.DecisionType[node]&defaultLeftMask != 0
}
