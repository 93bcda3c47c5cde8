package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const store1 = `[{"Store": 1, "DayOfWeek": 5, "Date": "2015-07-31", "Open": 1, "Promo": 1,
	"StateHoliday": "0", "SchoolHoliday": 1, "StoreType": "c", "Assortment": "a",
	"CompetitionDistance": 1270.0, "CompetitionOpenSinceMonth": 9.0,
	"CompetitionOpenSinceYear": 2008.0, "Promo2": 0, "Promo2SinceWeek": null,
	"Promo2SinceYear": null, "PromoInterval": null}]`

func testConfig(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	root := filepath.Join(wd, "..", "..")

	path := filepath.Join(t.TempDir(), "salesforecast.yaml")
	yml := "pipeline:\n" +
		"  artifact_dir: " + filepath.Join(root, "pipeline", "testdata", "artifacts") + "\n" +
		"  model_path: " + filepath.Join(root, "pipeline", "testdata", "model.txt") + "\n" +
		"bot:\n" +
		"  store_csv: " + filepath.Join(root, "dataset", "testdata", "store.csv") + "\n" +
		"log:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPredictCommand(t *testing.T) {
	cfgPath := testConfig(t)
	input := filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(input, []byte(store1), 0o644))

	out, err := execute(t, "predict", "--config", cfgPath, "--input", input, "--output", "-")
	require.NoError(t, err)

	var results []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Contains(t, results[0], "prediction")
	assert.Equal(t, "2015-07-31T00:00:00.000Z", results[0]["Date"])
}

func TestPredictCommand_EmptyInput(t *testing.T) {
	cfgPath := testConfig(t)
	input := filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(input, []byte("[]"), 0o644))

	out, err := execute(t, "predict", "--config", cfgPath, "--input", input, "--output", "-")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestEvaluateCommand(t *testing.T) {
	cfgPath := testConfig(t)
	out, err := execute(t, "evaluate", "--config", cfgPath,
		"--input", "../../dataset/testdata/train.csv", "--stores", "2", "--per-store")
	require.NoError(t, err)
	assert.Contains(t, out, "store 1 ")
	assert.Contains(t, out, "store 3 ")
	assert.NotContains(t, out, "store 7 ")
	assert.Contains(t, out, "overall     n=4 ")
}

func TestBotCommand_RequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	cfgPath := testConfig(t)
	_, err := execute(t, "bot", "--config", cfgPath)
	assert.ErrorContains(t, err, "bot.token")
}
