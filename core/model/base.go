// Package model provides the estimator state and artifact envelope shared by the
// preprocessing transforms and the LightGBM regressor.
//
// Every transform embeds BaseEstimator so that using an unfitted transform is a
// NotFittedError instead of a silent zero:
//
//	type RobustScaler struct {
//		model.BaseEstimator
//		Center []float64
//		Scale  []float64
//	}
//
//	func (s *RobustScaler) Fit(X mat.Matrix) error {
//		// compute median / IQR
//		s.SetFitted()
//		return nil
//	}
//
// Pretrained parameters travel as JSON artifacts (see Artifact). A transform that
// imports an artifact is fitted without ever seeing data.
package model

// EstimatorState represents the learning state of a model
type EstimatorState int

const (
	// NotFitted indicates the model has no parameters yet
	NotFitted EstimatorState = iota
	// Fitted indicates the model was trained or loaded from an artifact
	Fitted
)

// BaseEstimator is the base structure for all transforms and models
type BaseEstimator struct {
	// State holds the model's learning state.
	State EstimatorState

	// ModelType identifies the type of model, matching the artifact name.
	ModelType string

	// Version is the artifact format version the parameters came from.
	Version string

	logger interface{}
}

// IsFitted returns whether the estimator has parameters and can transform or predict.
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted marks the estimator as fitted. Called by Fit and by artifact imports.
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset returns the estimator to its initial unfitted state.
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}

// SetLogger attaches a logger. Any value with Debug/Info/Error(msg, kv...) methods
// works; log.Logger is the usual choice.
//
//	scaler.SetLogger(log.GetLoggerWithName("RobustScaler"))
func (e *BaseEstimator) SetLogger(logger interface{}) {
	e.logger = logger
}

// GetLogger returns the attached logger, or nil.
func (e *BaseEstimator) GetLogger() interface{} {
	return e.logger
}

// LogInfo logs at info level if a logger is configured.
func (e *BaseEstimator) LogInfo(msg string, fields ...interface{}) {
	if logger, ok := e.logger.(interface {
		Info(string, ...interface{})
	}); ok {
		logger.Info(msg, fields...)
	}
}

// LogDebug logs at debug level if a logger is configured.
func (e *BaseEstimator) LogDebug(msg string, fields ...interface{}) {
	if logger, ok := e.logger.(interface {
		Debug(string, ...interface{})
	}); ok {
		logger.Debug(msg, fields...)
	}
}

// Unfitted returns a copy carrying the type, version and logger but no fitted state.
// Transforms use it to build refit clones.
func (e *BaseEstimator) Unfitted() BaseEstimator {
	return BaseEstimator{
		State:     NotFitted,
		ModelType: e.ModelType,
		Version:   e.Version,
		logger:    e.logger,
	}
}
