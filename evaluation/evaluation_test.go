package evaluation

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/salesforecast/core/record"
	"github.com/ezoic/salesforecast/dataset"
	"github.com/ezoic/salesforecast/pipeline"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// customersTimesTen predicts ten times the customer count.
type customersTimesTen struct{ calls int32 }

func (c *customersTimesTen) Run(_ context.Context, raws []record.Raw) ([]pipeline.Result, error) {
	atomic.AddInt32(&c.calls, 1)
	out := make([]pipeline.Result, len(raws))
	for i, r := range raws {
		out[i] = pipeline.Result{Record: r, Prediction: *r.Customers * 10}
	}
	return out, nil
}

type failing struct{}

func (failing) Run(context.Context, []record.Raw) ([]pipeline.Result, error) {
	return nil, sfErrors.NewTransformError("store_type", "z")
}

func frames(t *testing.T) (dataframe.DataFrame, dataframe.DataFrame) {
	t.Helper()
	days, err := dataset.ReadCSV("../dataset/testdata/train.csv")
	require.NoError(t, err)
	stores, err := dataset.ReadCSV("../dataset/testdata/store.csv")
	require.NoError(t, err)
	return days, stores
}

func TestEvaluate(t *testing.T) {
	days, stores := frames(t)
	r := &customersTimesTen{}

	res, err := Evaluate(context.Background(), r, days, stores, Options{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&r.calls))

	require.Len(t, res.Stores, 3)
	assert.Equal(t, 1, res.Stores[0].Store)
	assert.Equal(t, 2, res.Stores[0].N)
	// |5263-5550| and |5020-5460|
	assert.InDelta(t, 363.5, res.Stores[0].MAE, 1e-9)
	assert.Equal(t, 7, res.Stores[2].Store)
	assert.Equal(t, 1, res.Stores[2].N)
	assert.True(t, math.IsNaN(res.Stores[2].R2), "one row has no variance")

	assert.Equal(t, 5, res.Overall.N)
	wantMAE := (287.0 + 440 + 104 + 167 + 1204) / 5
	assert.InDelta(t, wantMAE, res.Overall.MAE, 1e-9)
}

func TestEvaluate_MaxStores(t *testing.T) {
	days, stores := frames(t)
	r := &customersTimesTen{}

	res, err := Evaluate(context.Background(), r, days, stores, Options{MaxStores: 2})
	require.NoError(t, err)
	require.Len(t, res.Stores, 2)
	assert.Equal(t, 3, res.Stores[1].Store)
	assert.Equal(t, 4, res.Overall.N)
}

func TestEvaluate_Errors(t *testing.T) {
	days, stores := frames(t)

	_, err := Evaluate(context.Background(), failing{}, days, stores, Options{})
	var te *sfErrors.TransformError
	assert.True(t, sfErrors.As(err, &te), "got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a, err := pipeline.LoadArtifacts("../pipeline/testdata/artifacts", "../pipeline/testdata/model.txt")
	require.NoError(t, err)
	_, err = Evaluate(ctx, pipeline.New(a), days, stores, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate_Pipeline(t *testing.T) {
	days, stores := frames(t)
	a, err := pipeline.LoadArtifacts("../pipeline/testdata/artifacts", "../pipeline/testdata/model.txt")
	require.NoError(t, err)

	res, err := Evaluate(context.Background(), pipeline.New(a), days, stores, Options{Workers: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Overall.N)
	assert.False(t, math.IsNaN(res.Overall.MAE))
	assert.Greater(t, res.Overall.MAPE, 0.0)
}
