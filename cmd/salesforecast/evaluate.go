package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ezoic/salesforecast/dataset"
	"github.com/ezoic/salesforecast/evaluation"
)

var (
	evalInput   string
	evalStores  string
	evalLimit   int
	evalWorkers int
	evalDetail  bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score predictions against recorded sales",
	Long: `Merges a labelled day file (train.csv) with store.csv, keeps the open days
with sales, predicts them store by store and reports MAE, MAPE, RMSE and R2.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalInput, "input", "i", "data/train.csv", "labelled day file")
	evaluateCmd.Flags().StringVar(&evalStores, "store-file", "", "store attributes file (default bot.store_csv)")
	evaluateCmd.Flags().IntVar(&evalLimit, "stores", 0, "evaluate the first N stores only (0 = all)")
	evaluateCmd.Flags().IntVar(&evalWorkers, "workers", 4, "stores predicted concurrently")
	evaluateCmd.Flags().BoolVar(&evalDetail, "per-store", false, "print one line per store")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	storePath := evalStores
	if storePath == "" {
		storePath = cfg.Bot.StoreCSV
	}
	days, err := dataset.ReadCSV(evalInput)
	if err != nil {
		return err
	}
	stores, err := dataset.ReadCSV(storePath)
	if err != nil {
		return err
	}
	p, err := newPipeline()
	if err != nil {
		return err
	}

	res, err := evaluation.Evaluate(ctx, p, days, stores, evaluation.Options{
		MaxStores: evalLimit,
		Workers:   evalWorkers,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if evalDetail {
		for _, s := range res.Stores {
			fmt.Fprintf(out, "store %-5d %s\n", s.Store, s.Report)
		}
	}
	fmt.Fprintf(out, "overall     %s\n", res.Overall)
	return nil
}
