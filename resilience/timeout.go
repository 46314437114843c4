package resilience

import (
	"context"
	"errors"
	"time"
)

// CallWithTimeout runs op with a deadline of d. A non-positive d runs op
// directly without a deadline.
//
// On timeout the call returns ErrTimeout immediately; op keeps running in
// its goroutine until it observes the cancelled context, so any outcome it
// reports on its own is still recorded.
func CallWithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		return op(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
