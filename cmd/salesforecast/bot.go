package main

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ezoic/salesforecast/bot"
	"github.com/ezoic/salesforecast/pkg/cache"
	"github.com/ezoic/salesforecast/serving"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot webhook",
	Long: `Answers Telegram messages carrying a store number with the store's sales
forecast for the next six weeks. Needs TELEGRAM_TOKEN (or bot.token) and a
running prediction API at bot.predict_url.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return cfg.ValidateBot()
	},
	RunE: runBot,
}

func runBot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	payloads := cache.New[[]byte](cfg.GetCacheTTL(), time.Minute)
	defer payloads.Close()

	client := &http.Client{Timeout: cfg.GetWriteTimeout()}
	b := bot.New(
		bot.NewLoader(cfg.Bot.TestCSV, cfg.Bot.StoreCSV, payloads),
		bot.NewPredictClient(cfg.Bot.PredictURL, client, cfg.Bot.Retries, cfg.GetRetryDelay()),
		bot.NewTelegram(cfg.Bot.APIBase, cfg.Bot.Token, client, cfg.Bot.Retries, cfg.GetRetryDelay()),
	)

	// 予測と送信を待つためハンドラのタイムアウトは長めに取る
	return serving.ServeHandler(ctx, cfg.Bot.Addr, b.Handler(),
		serving.WithTimeouts(cfg.GetReadTimeout(), 2*time.Minute, cfg.GetShutdownTimeout()))
}
