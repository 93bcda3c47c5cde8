package lightgbm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/salesforecast/core/model"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
	"github.com/ezoic/salesforecast/pkg/log"
)

// LGBMRegressor is a pretrained LightGBM regressor with a scikit-learn style API.
// Training is out of scope: the model is always loaded from a LightGBM dump.
type LGBMRegressor struct {
	model.BaseEstimator

	Model     *Model
	Predictor *Predictor

	// Objective is the training objective recorded in the dump.
	Objective string

	nFeatures int
	logger    log.Logger
}

// NewLGBMRegressor creates an unloaded regressor.
func NewLGBMRegressor() *LGBMRegressor {
	r := &LGBMRegressor{logger: log.GetLoggerWithName("LGBMRegressor")}
	r.ModelType = "LGBMRegressor"
	return r
}

// LoadModel loads a pre-trained model from a text or JSON dump.
func (lgb *LGBMRegressor) LoadModel(filepath string) error {
	m, err := LoadFromFile(filepath)
	if err != nil {
		return sfErrors.Wrap(err, "failed to load model")
	}
	lgb.setModel(m)
	lgb.logger.Info("model loaded", "path", filepath, "trees", len(m.Trees),
		"features", m.NumFeatures, "objective", lgb.Objective)
	return nil
}

// LoadModelFromString loads a model from the text dump format.
func (lgb *LGBMRegressor) LoadModelFromString(modelStr string) error {
	m, err := LoadFromString(modelStr)
	if err != nil {
		return sfErrors.Wrap(err, "failed to load model from string")
	}
	lgb.setModel(m)
	return nil
}

// LoadModelFromJSON loads a model from the JSON dump format.
func (lgb *LGBMRegressor) LoadModelFromJSON(jsonData []byte) error {
	m, err := LoadFromJSON(jsonData)
	if err != nil {
		return sfErrors.Wrap(err, "failed to load model from JSON")
	}
	lgb.setModel(m)
	return nil
}

func (lgb *LGBMRegressor) setModel(m *Model) {
	lgb.Model = m
	lgb.Predictor = NewPredictor(m)
	lgb.nFeatures = m.NumFeatures
	lgb.Objective = string(m.Objective)
	lgb.Version = m.Version
	lgb.SetFitted()
}

// Predict returns the raw score of every row as an n x 1 matrix.
func (lgb *LGBMRegressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer sfErrors.Recover(&err, "LGBMRegressor.Predict")
	if !lgb.IsFitted() {
		return nil, sfErrors.NewNotFittedError("LGBMRegressor", "Predict")
	}

	_, cols := X.Dims()
	if cols != lgb.nFeatures {
		return nil, sfErrors.NewDimensionError("LGBMRegressor.Predict", lgb.nFeatures, cols, 1)
	}
	return lgb.Predictor.Predict(X)
}

// NumFeatures returns the number of input columns the model expects.
func (lgb *LGBMRegressor) NumFeatures() int {
	return lgb.nFeatures
}

// FeatureNames returns the feature names stored in the dump.
func (lgb *LGBMRegressor) FeatureNames() []string {
	if lgb.Model == nil {
		return nil
	}
	return lgb.Model.FeatureNames
}

func (lgb *LGBMRegressor) String() string {
	if !lgb.IsFitted() {
		return "LGBMRegressor()"
	}
	return fmt.Sprintf("LGBMRegressor(objective=%s, n_trees=%d, n_features=%d)",
		lgb.Objective, len(lgb.Model.Trees), lgb.nFeatures)
}
