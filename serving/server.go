// Package serving exposes the prediction pipeline over HTTP.
//
//	POST /rossmann/predict   one record or an array of records
//	GET  /healthz            liveness
package serving

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/ezoic/salesforecast/pipeline"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
	"github.com/ezoic/salesforecast/pkg/log"
	"github.com/ezoic/salesforecast/storage"
)

// PredictPath is the prediction endpoint.
const PredictPath = "/rossmann/predict"

// Predictor runs a request body through the pipeline.
type Predictor interface {
	PredictJSON(ctx context.Context, body []byte) ([]pipeline.Result, error)
}

// Recorder receives every successful batch. Submit must not block.
type Recorder interface {
	Submit(batch []storage.Prediction) error
}

// Server is the prediction HTTP server.
type Server struct {
	predictor Predictor
	recorder  Recorder
	logger    log.Logger

	maxBodyBytes    int64
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithRecorder logs successful predictions through r.
func WithRecorder(r Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithLogger replaces the default logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMaxBodyBytes limits the request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// WithTimeouts sets the read, write and shutdown timeouts.
func WithTimeouts(read, write, shutdown time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
		s.shutdownTimeout = shutdown
	}
}

// New creates a Server.
func New(p Predictor, opts ...Option) *Server {
	s := &Server{
		predictor:       p,
		logger:          log.GetLoggerWithName("Serving"),
		maxBodyBytes:    10 << 20,
		readTimeout:     15 * time.Second,
		writeTimeout:    30 * time.Second,
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routes wrapped in request id and access logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PredictPath, s.handlePredict)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.withRequestID(mux)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return sfErrors.Wrapf(err, "listen %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return s.serve(ctx, ln, s.Handler())
}

// ServeHandler serves any handler on addr with the timeouts and graceful shutdown
// of a Server configured by opts. The bot webhook runs through it.
func ServeHandler(ctx context.Context, addr string, h http.Handler, opts ...Option) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return sfErrors.Wrapf(err, "listen %s", addr)
	}
	return New(nil, opts...).serve(ctx, ln, h)
}

func (s *Server) serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadTimeout:       s.readTimeout,
		ReadHeaderTimeout: s.readTimeout,
		WriteTimeout:      s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return sfErrors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return sfErrors.Wrap(err, "shutdown")
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return sfErrors.Wrap(err, "serve")
	}
	return nil
}
