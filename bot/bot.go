// Package bot answers Telegram chats with the six week sales forecast of a store.
//
// A chat message carrying a store number ("22" or "/22") makes the bot load the
// store's open days from the test set, ask the prediction API for them, and reply
// with an intro line, a weekly chart and the predicted total.
package bot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
	"github.com/ezoic/salesforecast/pkg/log"
)

// Update is the part of a Telegram update the bot reads.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message.
type Message struct {
	Chat Chat   `json:"chat"`
	Text string `json:"text"`
}

// Chat identifies the conversation to answer.
type Chat struct {
	ID int64 `json:"id"`
}

// ParseStore reads a store number from a message text. Telegram commands carry a
// leading slash.
func ParseStore(text string) (int, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(text, "/", ""))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// PayloadSource builds the prediction payload of a store.
type PayloadSource interface {
	Payload(store int) ([]byte, error)
}

// Bot handles webhook updates.
type Bot struct {
	source     PayloadSource
	forecaster Forecaster
	messenger  Messenger
	logger     log.Logger
}

// New creates a Bot.
func New(source PayloadSource, forecaster Forecaster, messenger Messenger) *Bot {
	return &Bot{
		source:     source,
		forecaster: forecaster,
		messenger:  messenger,
		logger:     log.GetLoggerWithName("Bot"),
	}
}

// Handler serves the webhook at "/".
func (b *Bot) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<h1> Rossmann Telegram Bot </h1>")
	})
	mux.HandleFunc("POST /{$}", b.handleUpdate)
	return mux
}

// handleUpdate always answers 200 so Telegram does not redeliver the update.
func (b *Bot) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var u Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil || u.Message == nil {
		b.logger.Debug("ignored update", "error", err)
		_, _ = io.WriteString(w, "Ok")
		return
	}
	if err := b.Handle(r.Context(), u.Message); err != nil {
		log.LogError(err, "bot reply failed")
	}
	_, _ = io.WriteString(w, "Ok")
}

// Handle answers one message.
func (b *Bot) Handle(ctx context.Context, m *Message) error {
	chatID := m.Chat.ID
	store, ok := ParseStore(m.Text)
	if !ok {
		return b.messenger.SendMessage(ctx, chatID, msgBadInput)
	}
	logger := b.logger.With("chat_id", chatID, "store", store)

	payload, err := b.source.Payload(store)
	if sfErrors.Is(err, ErrUnknownStore) {
		logger.Info("unknown store")
		return b.messenger.SendMessage(ctx, chatID, unknownStoreMessage(store))
	}
	if err != nil {
		_ = b.messenger.SendMessage(ctx, chatID, msgUnavailable)
		return sfErrors.Wrap(err, "load dataset")
	}

	forecasts, err := b.forecaster.Forecast(ctx, payload)
	if err != nil {
		_ = b.messenger.SendMessage(ctx, chatID, msgUnavailable)
		return sfErrors.Wrap(err, "forecast")
	}
	if len(forecasts) == 0 {
		return b.messenger.SendMessage(ctx, chatID, unknownStoreMessage(store))
	}

	var total float64
	for _, f := range forecasts {
		total += f.Prediction
	}

	if err := b.messenger.SendMessage(ctx, chatID, introMessage(store)); err != nil {
		return err
	}
	png, err := WeeklyChart(store, forecasts)
	if err != nil {
		return sfErrors.Wrap(err, "chart")
	}
	if err := b.messenger.SendPhoto(ctx, chatID, png); err != nil {
		return err
	}
	logger.Info("forecast sent", "days", len(forecasts), "total", total)
	return b.messenger.SendMessage(ctx, chatID, summaryMessage(store, total))
}
