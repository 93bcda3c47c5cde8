// Command salesforecast serves Rossmann daily sales predictions.
//
//	salesforecast serve                        prediction API
//	salesforecast bot                          Telegram bot webhook
//	salesforecast predict --input rows.json    predict a file
//	salesforecast evaluate --input train.csv   score against recorded sales
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ezoic/salesforecast/config"
	"github.com/ezoic/salesforecast/pipeline"
	"github.com/ezoic/salesforecast/pkg/log"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "salesforecast",
	Short: "Rossmann store sales forecasting",
	Long: `salesforecast predicts the daily sales of Rossmann stores.

Records go through a fixed pipeline (clean, derive features, scale and encode)
and are scored by a pretrained LightGBM model. The fitted artifacts are read
from pipeline.artifact_dir and pipeline.model_path.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		log.SetupLoggerWithWriter(cfg.Log.Level, os.Stderr, cfg.Log.Pretty)
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "salesforecast.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, botCmd, predictCmd, evaluateCmd)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newPipeline loads the artifact set once and builds a pipeline over it.
func newPipeline() (*pipeline.Pipeline, error) {
	artifacts, err := pipeline.DefaultArtifacts(cfg.Pipeline.ArtifactDir, cfg.Pipeline.ModelPath)
	if err != nil {
		return nil, err
	}
	return pipeline.New(artifacts,
		pipeline.WithRefit(cfg.Pipeline.Refit),
		pipeline.WithVerbose(cfg.Pipeline.Verbose),
	), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
