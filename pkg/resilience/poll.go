package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned when a poll exhausts its time budget.
var ErrPollTimeout = errors.New("poll timeout")

// Poll calls fn every interval until it reports done, returns an error,
// the timeout elapses or ctx is cancelled. The first call happens immediately.
func Poll(ctx context.Context, interval, timeout time.Duration, fn func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = time.Second
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrPollTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
