package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// Messenger sends chat messages.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, png []byte) error
}

// Telegram is a Bot API client.
type Telegram struct {
	base    string
	token   string
	client  *http.Client
	retries int
	delay   time.Duration
}

// NewTelegram creates a client for the bot token against apiBase
// (https://api.telegram.org in production).
func NewTelegram(apiBase, token string, client *http.Client, retries int, delay time.Duration) *Telegram {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Telegram{base: apiBase, token: token, client: client, retries: retries, delay: delay}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// SendMessage sends a text message to chatID.
func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(map[string]interface{}{"chat_id": chatID, "text": text})
	if err != nil {
		return sfErrors.Wrap(err, "encode sendMessage")
	}
	return retry(ctx, t.retries, t.delay, func() error {
		return t.call(ctx, "sendMessage", "application/json", body)
	})
}

// SendPhoto uploads a PNG image to chatID.
func (t *Telegram) SendPhoto(ctx context.Context, chatID int64, png []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return sfErrors.Wrap(err, "write chat_id")
	}
	part, err := w.CreateFormFile("photo", "forecast.png")
	if err != nil {
		return sfErrors.Wrap(err, "create photo part")
	}
	if _, err := part.Write(png); err != nil {
		return sfErrors.Wrap(err, "write photo")
	}
	if err := w.Close(); err != nil {
		return sfErrors.Wrap(err, "close multipart")
	}
	body := buf.Bytes()

	return retry(ctx, t.retries, t.delay, func() error {
		return t.call(ctx, "sendPhoto", w.FormDataContentType(), body)
	})
}

func (t *Telegram) call(ctx context.Context, method, contentType string, body []byte) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.base, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return permanent(sfErrors.Wrap(err, "build request"))
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.client.Do(req)
	if err != nil {
		// URL にトークンが含まれるため原因だけを残す
		var ue *url.Error
		if sfErrors.As(err, &ue) {
			err = ue.Err
		}
		return sfErrors.Wrapf(err, "%s: transport", method)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return sfErrors.Wrapf(err, "%s: read response", method)
	}

	var ar apiResponse
	_ = json.Unmarshal(data, &ar)
	if resp.StatusCode == http.StatusOK && ar.OK {
		return nil
	}

	err = sfErrors.Newf("%s: status %d: %s", method, resp.StatusCode, ar.Description)
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return err
	}
	return permanent(err)
}
