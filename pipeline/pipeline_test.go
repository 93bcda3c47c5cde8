package pipeline

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// copyArtifacts copies the test artifacts into dir, leaving out the named files.
func copyArtifacts(t *testing.T, dir string, skip ...string) {
	t.Helper()
	entries, err := os.ReadDir(testArtifactDir)
	require.NoError(t, err)

	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	for _, e := range entries {
		if skipped[e.Name()] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(testArtifactDir, e.Name()))
		require.NoError(t, err)
		writeFile(t, dir, e.Name(), string(data))
	}
}

func TestPipeline_PredictJSON(t *testing.T) {
	p := New(loadTestArtifacts(t))

	// promo=1 and assortment a: 8.9 + 0.05
	// promo=0, customers missing (default left) and assortment b: 8.1 + 0.1
	body := `[` + july31 + `,
	{"Store": 3, "DayOfWeek": 6, "Date": "2015-08-01", "Open": 1, "Promo": 0,
	 "StateHoliday": "0", "SchoolHoliday": 0, "StoreType": "a", "Assortment": "b",
	 "CompetitionDistance": 14130.0, "CompetitionOpenSinceMonth": 12.0,
	 "CompetitionOpenSinceYear": 2006.0, "Promo2": 1, "Promo2SinceWeek": 14.0,
	 "Promo2SinceYear": 2011.0, "PromoInterval": "Jan,Apr,Jul,Oct"}]`

	results, err := p.PredictJSON(context.Background(), []byte(body))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].Record.Store)
	assert.InDelta(t, math.Expm1(8.95), results[0].Prediction, 1e-6)
	assert.Equal(t, 3, results[1].Record.Store)
	assert.InDelta(t, math.Expm1(8.2), results[1].Prediction, 1e-6)

	data, err := json.Marshal(results)
	require.NoError(t, err)
	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "2015-08-01T00:00:00.000Z", decoded[1]["Date"])
	assert.Contains(t, decoded[1], "prediction")
	assert.Contains(t, decoded[1], "PromoInterval")
}

func TestPipeline_EmptyInput(t *testing.T) {
	p := New(loadTestArtifacts(t))
	for _, body := range []string{"[]", "", "null", "{}"} {
		results, err := p.PredictJSON(context.Background(), []byte(body))
		assert.Empty(t, results)
		assert.True(t, sfErrors.Is(err, sfErrors.ErrNoData), "body %q: got %v", body, err)
	}

	_, err := p.Run(context.Background(), nil)
	assert.True(t, sfErrors.Is(err, sfErrors.ErrNoData))
}

func TestPipeline_PreservesOrder(t *testing.T) {
	p := New(loadTestArtifacts(t), WithVerbose(true))
	raws := syntheticBatch(300)

	results, err := p.Run(context.Background(), raws)
	require.NoError(t, err)
	require.Len(t, results, len(raws))
	for i := range raws {
		assert.Equal(t, raws[i].Store, results[i].Record.Store)
		assert.Equal(t, raws[i].Date, results[i].Date.Format("2006-01-02"))
		assert.GreaterOrEqual(t, results[i].Prediction, -1.0)
	}
}

func TestPipeline_Canceled(t *testing.T) {
	p := New(loadTestArtifacts(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, syntheticBatch(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_SchemaErrorStopsBatch(t *testing.T) {
	p := New(loadTestArtifacts(t))
	_, err := p.PredictJSON(context.Background(), []byte(`{"Store": 1, "Sales": 10}`))
	var se *sfErrors.SchemaError
	assert.True(t, sfErrors.As(err, &se), "got %v", err)
}

func TestPipeline_Features(t *testing.T) {
	p := New(loadTestArtifacts(t), WithRefit(false))
	engineered, prepared, err := p.Features(mustDecode(t, july31))
	require.NoError(t, err)
	require.Len(t, engineered, 1)
	_, c := prepared.X.Dims()
	assert.Equal(t, len(FeatureColumns), c)
}
