// Package evaluation scores the pipeline against labelled history (train.csv).
package evaluation

import (
	"context"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/salesforecast/core/record"
	"github.com/ezoic/salesforecast/dataset"
	"github.com/ezoic/salesforecast/metrics"
	"github.com/ezoic/salesforecast/pipeline"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
	"github.com/ezoic/salesforecast/pkg/log"
)

// Runner predicts a batch of records.
type Runner interface {
	Run(ctx context.Context, raws []record.Raw) ([]pipeline.Result, error)
}

// Options controls an evaluation.
type Options struct {
	// MaxStores limits the evaluation to the first stores by id; 0 means all.
	MaxStores int
	// Workers is the number of stores predicted concurrently.
	Workers int
}

// StoreReport is the error of one store.
type StoreReport struct {
	Store int
	metrics.Report
}

// Result is the outcome of an evaluation.
type Result struct {
	Overall metrics.Report
	Stores  []StoreReport
}

type storeRun struct {
	sales, predicted []float64
}

// Evaluate predicts the open days with sales of days, merged with stores, and
// compares the predictions with the recorded sales.
func Evaluate(ctx context.Context, r Runner, days, stores dataframe.DataFrame, opts Options) (*Result, error) {
	logger := log.GetLoggerWithName("Evaluate")

	days = dataset.WithSales(dataset.OpenDays(days))
	if days.Err != nil {
		return nil, sfErrors.Wrap(days.Err, "filter days")
	}
	ids, err := dataset.Stores(days)
	if err != nil {
		return nil, err
	}
	if opts.MaxStores > 0 && len(ids) > opts.MaxStores {
		ids = ids[:opts.MaxStores]
		days = dataset.ForStores(days, ids)
	}
	if len(ids) == 0 {
		return nil, sfErrors.ErrNoData
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	runs := make([]storeRun, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			run, err := evaluateStore(ctx, r, days, stores, id)
			if err != nil {
				return sfErrors.Wrapf(err, "store %d", id)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Stores: make([]StoreReport, len(ids))}
	var sales, predicted []float64
	for i, id := range ids {
		rep, err := summarize(runs[i].sales, runs[i].predicted)
		if err != nil {
			return nil, sfErrors.Wrapf(err, "store %d", id)
		}
		res.Stores[i] = StoreReport{Store: id, Report: rep}
		sales = append(sales, runs[i].sales...)
		predicted = append(predicted, runs[i].predicted...)
	}
	if res.Overall, err = summarize(sales, predicted); err != nil {
		return nil, err
	}
	sort.Slice(res.Stores, func(a, b int) bool { return res.Stores[a].Store < res.Stores[b].Store })

	logger.Info("evaluation done", "stores", len(ids), "rows", res.Overall.N, "mape", res.Overall.MAPE)
	return res, nil
}

func evaluateStore(ctx context.Context, r Runner, days, stores dataframe.DataFrame, id int) (storeRun, error) {
	merged, err := dataset.Merge(dataset.ForStore(days, id), dataset.ForStore(stores, id))
	if err != nil {
		return storeRun{}, err
	}
	raws, sales, err := dataset.Records(merged, dataset.ColSales)
	if err != nil {
		return storeRun{}, err
	}
	results, err := r.Run(ctx, raws)
	if err != nil {
		return storeRun{}, err
	}
	predicted := make([]float64, len(results))
	for i, res := range results {
		predicted[i] = res.Prediction
	}
	return storeRun{sales: sales, predicted: predicted}, nil
}

func summarize(sales, predicted []float64) (metrics.Report, error) {
	if len(sales) == 0 {
		return metrics.Report{}, sfErrors.ErrNoData
	}
	return metrics.Summarize(mat.NewVecDense(len(sales), sales), mat.NewVecDense(len(predicted), predicted))
}
