package bot

import (
	"context"
	"time"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// permanentError stops retry; the wrapped error is returned as is.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// retry calls fn up to 1+retries times, sleeping delay between attempts.
func retry(ctx context.Context, retries int, delay time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return sfErrors.Wrap(ctx.Err(), err.Error())
			case <-time.After(delay):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		var p *permanentError
		if sfErrors.As(err, &p) {
			return p.err
		}
	}
	return sfErrors.Wrapf(err, "failed after %d attempts", retries+1)
}
