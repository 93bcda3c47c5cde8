package storage

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
	"github.com/ezoic/salesforecast/pkg/log"
)

// ErrRecorderFull is returned by Submit when every worker is busy.
var ErrRecorderFull = sfErrors.New("prediction log: all workers busy")

// ErrRecorderClosed is returned by Submit after Close.
var ErrRecorderClosed = sfErrors.New("prediction log: closed")

// Recorder writes prediction batches in the background with at most a fixed number of
// writes in flight. A batch that finds every worker busy is dropped, never queued.
type Recorder struct {
	w       Writer
	timeout time.Duration
	logger  log.Logger

	mu     sync.RWMutex
	closed bool
	group  errgroup.Group
}

// NewRecorder creates a Recorder with at most workers concurrent writes, each limited
// to timeout.
func NewRecorder(w Writer, workers int, timeout time.Duration) *Recorder {
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &Recorder{
		w:       w,
		timeout: timeout,
		logger:  log.GetLoggerWithName("PredictionLog"),
	}
	r.group.SetLimit(workers)
	return r
}

// Submit schedules batch for writing. It never blocks.
func (r *Recorder) Submit(batch []Prediction) error {
	if len(batch) == 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}

	started := r.group.TryGo(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.w.Write(ctx, batch); err != nil {
			// 失敗は記録のみ、リクエストには影響しない
			r.logger.Error("prediction log write failed", "rows", len(batch), "error", err)
		}
		return nil
	})
	if !started {
		r.logger.Warn("prediction log dropped batch", "rows", len(batch))
		return ErrRecorderFull
	}
	return nil
}

// Close waits for in-flight writes. Later Submits fail with ErrRecorderClosed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.group.Wait()
}
