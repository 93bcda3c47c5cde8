package main

import (
	"github.com/spf13/cobra"

	"github.com/ezoic/salesforecast/pkg/log"
	"github.com/ezoic/salesforecast/serving"
	"github.com/ezoic/salesforecast/storage"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the prediction API",
	Long: `Serves POST /rossmann/predict and GET /healthz.

When storage.dsn (or DATABASE_URL) is set every successful batch is also written
to the predictions table in PostgreSQL, in the background.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()
	logger := log.GetLoggerWithName("serve")

	p, err := newPipeline()
	if err != nil {
		return err
	}

	opts := []serving.Option{
		serving.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		serving.WithTimeouts(cfg.GetReadTimeout(), cfg.GetWriteTimeout(), cfg.GetShutdownTimeout()),
	}
	if cfg.Storage.DSN != "" {
		pg, err := storage.Open(ctx, cfg.Storage.DSN, storage.Options{
			MaxOpenConns: cfg.Storage.MaxOpenConns,
			MaxIdleConns: cfg.Storage.MaxIdleConns,
		})
		if err != nil {
			return err
		}
		defer func() { _ = pg.Close() }()

		recorder := storage.NewRecorder(pg, cfg.Storage.Workers, cfg.GetWriteTimeout())
		defer func() { _ = recorder.Close() }()
		opts = append(opts, serving.WithRecorder(recorder))
		logger.Info("prediction log enabled")
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	return serving.New(p, opts...).ListenAndServe(ctx, addr)
}
