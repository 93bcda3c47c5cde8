package serving

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ezoic/salesforecast/pipeline"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
	"github.com/ezoic/salesforecast/pkg/log"
	"github.com/ezoic/salesforecast/storage"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))

		s.logger.Info("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With("request_id", RequestID(r.Context()))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if sfErrors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	results, err := s.predictor.PredictJSON(r.Context(), body)
	if err != nil {
		status := statusFor(err)
		switch status {
		case http.StatusOK:
			// 入力なし: 空の配列を返す
			logger.Debug("empty prediction request", "reason", err)
			writeJSON(w, http.StatusOK, []pipeline.Result{})
		case http.StatusBadRequest:
			logger.Warn("rejected prediction request", "error", err)
			writeError(w, status, err)
		default:
			log.LogError(err, "prediction failed")
			writeError(w, status, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, results)
	logger.Debug("predicted", "rows", len(results))

	if s.recorder != nil {
		_ = s.recorder.Submit(toPredictions(RequestID(r.Context()), results))
	}
}

// statusFor maps a pipeline error onto an HTTP status.
func statusFor(err error) int {
	var (
		schemaErr    *sfErrors.SchemaError
		transformErr *sfErrors.TransformError
	)
	switch {
	case sfErrors.Is(err, sfErrors.ErrNoData), sfErrors.Is(err, sfErrors.ErrMalformedInput):
		return http.StatusOK
	case sfErrors.As(err, &schemaErr), sfErrors.As(err, &transformErr):
		return http.StatusBadRequest
	case sfErrors.Is(err, context.Canceled), sfErrors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toPredictions(requestID string, results []pipeline.Result) []storage.Prediction {
	out := make([]storage.Prediction, len(results))
	for i, r := range results {
		out[i] = storage.Prediction{
			RequestID: requestID,
			Store:     r.Record.Store,
			Date:      r.Date,
			Sales:     r.Prediction,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.LogError(err, "encode response")
		status = http.StatusInternalServerError
		data = []byte(`{"error":"encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
