package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ezoic/salesforecast/pipeline"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

var (
	predictInput  string
	predictOutput string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the records of a JSON file",
	Long: `Reads one record or an array of records (the request body of the API) and
writes the records with their predictions as JSON. "-" reads stdin.`,
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().StringVarP(&predictInput, "input", "i", "-", "input JSON file")
	predictCmd.Flags().StringVarP(&predictOutput, "output", "o", "-", "output file")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	body, err := readInput(predictInput)
	if err != nil {
		return err
	}
	p, err := newPipeline()
	if err != nil {
		return err
	}

	results, err := p.PredictJSON(context.Background(), body)
	if sfErrors.Is(err, sfErrors.ErrNoData) || sfErrors.Is(err, sfErrors.ErrMalformedInput) {
		results, err = []pipeline.Result{}, nil
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if predictOutput != "-" {
		f, err := os.Create(predictOutput)
		if err != nil {
			return sfErrors.Wrap(err, "create output")
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sfErrors.Wrap(err, "read input")
	}
	return data, nil
}
