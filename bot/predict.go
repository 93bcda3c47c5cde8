package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ezoic/salesforecast/pipeline"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// Forecast is one predicted day as returned by the prediction API.
type Forecast struct {
	Store      int       `json:"Store"`
	Date       time.Time `json:"-"`
	Prediction float64   `json:"prediction"`
}

// UnmarshalJSON reads the ISO 8601 date the API writes.
func (f *Forecast) UnmarshalJSON(data []byte) error {
	var aux struct {
		Store      int     `json:"Store"`
		Date       string  `json:"Date"`
		Prediction float64 `json:"prediction"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d, err := pipeline.ParseDate(aux.Date)
	if err != nil {
		return sfErrors.Wrapf(err, "forecast date %q", aux.Date)
	}
	f.Store, f.Date, f.Prediction = aux.Store, d, aux.Prediction
	return nil
}

// Forecaster predicts a batch of records.
type Forecaster interface {
	Forecast(ctx context.Context, payload []byte) ([]Forecast, error)
}

// PredictClient calls the prediction API.
type PredictClient struct {
	url     string
	client  *http.Client
	retries int
	delay   time.Duration
}

// NewPredictClient creates a client for the prediction endpoint url.
func NewPredictClient(url string, client *http.Client, retries int, delay time.Duration) *PredictClient {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &PredictClient{url: url, client: client, retries: retries, delay: delay}
}

// Forecast posts payload, a JSON array of records, and decodes the predictions.
// Server errors and transport failures are retried; client errors are not.
func (c *PredictClient) Forecast(ctx context.Context, payload []byte) ([]Forecast, error) {
	var out []Forecast
	err := retry(ctx, c.retries, c.delay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return permanent(sfErrors.Wrap(err, "build request"))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return sfErrors.Wrap(err, "predict")
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return sfErrors.Wrap(err, "read prediction response")
		}
		switch {
		case resp.StatusCode >= 500:
			return sfErrors.Newf("prediction api: status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		case resp.StatusCode != http.StatusOK:
			return permanent(sfErrors.Newf("prediction api: status %d: %s", resp.StatusCode, bytes.TrimSpace(data)))
		}

		out = nil
		if err := json.Unmarshal(data, &out); err != nil {
			return permanent(sfErrors.Wrap(err, "decode predictions"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
