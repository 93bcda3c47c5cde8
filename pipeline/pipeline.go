// Package pipeline turns raw store/day records into sales predictions.
//
// A batch goes through four stages, each returning a new table with the same rows in
// the same order:
//
//	record.Raw -> Clean -> Derive -> Preparer.Prepare -> Predict -> []Result
//
// The fitted state (scalers, power transforms, encoders, model) lives in Artifacts,
// loaded once per process and shared read-only by every request.
package pipeline

import (
	"context"
	"time"

	"github.com/ezoic/salesforecast/core/record"
	"github.com/ezoic/salesforecast/pkg/errors"
	"github.com/ezoic/salesforecast/pkg/log"
)

// Stage names, as they appear in logs.
const (
	StageClean   = "clean"
	StageDerive  = "derive"
	StagePrepare = "prepare"
	StagePredict = "predict"
)

// Pipeline chains the stages over a shared artifact set. It is safe for concurrent use.
type Pipeline struct {
	artifacts *Artifacts
	preparer  *Preparer
	logger    log.Logger
	verbose   bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRefit makes every batch refit its scalers and label encoders before encoding.
func WithRefit(refit bool) Option {
	return func(p *Pipeline) { p.preparer = NewPreparer(p.artifacts, refit) }
}

// WithLogger replaces the default logger.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithVerbose logs the time spent in every stage.
func WithVerbose(v bool) Option {
	return func(p *Pipeline) { p.verbose = v }
}

// New creates a Pipeline over artifacts.
func New(artifacts *Artifacts, opts ...Option) *Pipeline {
	p := &Pipeline{
		artifacts: artifacts,
		preparer:  NewPreparer(artifacts, false),
		logger:    log.GetLoggerWithName("Pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PredictJSON decodes a request body and runs it through the pipeline.
func (p *Pipeline) PredictJSON(ctx context.Context, body []byte) ([]Result, error) {
	raws, err := record.Decode(body)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, raws)
}

// Run predicts every record. An empty batch yields ErrNoData. Cancellation is checked
// between stages.
func (p *Pipeline) Run(ctx context.Context, raws []record.Raw) ([]Result, error) {
	if len(raws) == 0 {
		return nil, errors.ErrNoData
	}
	logger := p.logger.With("rows", len(raws))

	var cleaned []Cleaned
	err := p.step(ctx, logger, StageClean, func() (err error) {
		cleaned, err = Clean(raws)
		return err
	})
	if err != nil {
		return nil, err
	}

	var engineered []Engineered
	err = p.step(ctx, logger, StageDerive, func() (err error) {
		engineered, err = Derive(cleaned)
		return err
	})
	if err != nil {
		return nil, err
	}

	var prepared *Prepared
	err = p.step(ctx, logger, StagePrepare, func() (err error) {
		prepared, err = p.preparer.Prepare(engineered)
		return err
	})
	if err != nil {
		return nil, err
	}

	var results []Result
	err = p.step(ctx, logger, StagePredict, func() (err error) {
		results, err = Predict(p.artifacts.Model, raws, cleaned, prepared.X)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Features runs the stages up to the feature vector, for inspection.
func (p *Pipeline) Features(raws []record.Raw) ([]Engineered, *Prepared, error) {
	if len(raws) == 0 {
		return nil, nil, errors.ErrNoData
	}
	cleaned, err := Clean(raws)
	if err != nil {
		return nil, nil, err
	}
	engineered, err := Derive(cleaned)
	if err != nil {
		return nil, nil, err
	}
	prepared, err := p.preparer.Prepare(engineered)
	if err != nil {
		return nil, nil, err
	}
	return engineered, prepared, nil
}

func (p *Pipeline) step(ctx context.Context, logger log.Logger, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "before %s", name)
	}
	start := time.Now()
	if err := fn(); err != nil {
		logger.Debug("stage failed", "stage", name, "error", err)
		return err
	}
	if p.verbose {
		logger.Info("stage done", "stage", name, "elapsed", time.Since(start))
	}
	return nil
}
