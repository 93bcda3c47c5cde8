package bot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

func TestRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := retry(ctx, 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return sfErrors.New("flaky")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	boom := sfErrors.New("bad request")
	err = retry(ctx, 3, time.Millisecond, func() error {
		calls++
		return permanent(boom)
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = retry(ctx, 2, time.Millisecond, func() error {
		calls++
		return sfErrors.New("down")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err = retry(canceled, 5, time.Hour, func() error { return sfErrors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTelegram_SendMessage(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "123:abc", srv.Client(), 0, 0)
	require.NoError(t, tg.SendMessage(context.Background(), 42, "hello"))
	assert.Equal(t, float64(42), got["chat_id"])
	assert.Equal(t, "hello", got["text"])
}

func TestTelegram_SendPhoto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botT/sendPhoto", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "7", r.FormValue("chat_id"))
		f, hdr, err := r.FormFile("photo")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "forecast.png", hdr.Filename)
		assert.Equal(t, []byte("png-bytes"), data)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "T", srv.Client(), 0, 0)
	require.NoError(t, tg.SendPhoto(context.Background(), 7, []byte("png-bytes")))
}

func TestTelegram_Retries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "T", srv.Client(), 2, time.Millisecond)
	require.NoError(t, tg.SendMessage(context.Background(), 1, "x"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTelegram_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "T", srv.Client(), 3, time.Millisecond)
	err := tg.SendMessage(context.Background(), 1, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.NotContains(t, err.Error(), "botT")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

const forecastBody = `[
 {"Store":22,"Date":"2015-09-17T00:00:00.000Z","Open":1,"prediction":4000.5},
 {"Store":22,"Date":"2015-09-16T00:00:00.000Z","Open":1,"prediction":3500}
]`

func TestPredictClient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `[{"Store":22}]`, string(body))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, forecastBody)
	}))
	defer srv.Close()

	c := NewPredictClient(srv.URL, srv.Client(), 2, time.Millisecond)
	out, err := c.Forecast(context.Background(), []byte(`[{"Store":22}]`))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 22, out[0].Store)
	assert.Equal(t, time.Date(2015, 9, 17, 0, 0, 0, 0, time.UTC), out[0].Date)
	assert.Equal(t, 4000.5, out[0].Prediction)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPredictClient_BadRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"unknown field"}`)
	}))
	defer srv.Close()

	c := NewPredictClient(srv.URL, srv.Client(), 3, time.Millisecond)
	_, err := c.Forecast(context.Background(), []byte(`[]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
