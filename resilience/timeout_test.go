package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCallWithTimeout_Success(t *testing.T) {
	executed := false
	err := CallWithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		executed = true
		return nil
	})

	if err != nil {
		t.Errorf("CallWithTimeout() error = %v", err)
	}
	if !executed {
		t.Error("Operation was not executed")
	}
}

func TestCallWithTimeout_Error(t *testing.T) {
	testErr := errors.New("test error")
	err := CallWithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return testErr
	})

	if err != testErr {
		t.Errorf("CallWithTimeout() error = %v, want %v", err, testErr)
	}
}

func TestCallWithTimeout_Timeout(t *testing.T) {
	err := CallWithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})

	if err != ErrTimeout {
		t.Errorf("CallWithTimeout() error = %v, want ErrTimeout", err)
	}
}

func TestCallWithTimeout_ZeroMeansNoDeadline(t *testing.T) {
	err := CallWithTimeout(context.Background(), 0, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			return errors.New("unexpected deadline")
		}
		return nil
	})

	if err != nil {
		t.Errorf("CallWithTimeout() error = %v", err)
	}
}

func TestCallWithTimeout_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	err := CallWithTimeout(ctx, time.Second, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	if err != context.Canceled {
		t.Errorf("CallWithTimeout() error = %v, want context.Canceled", err)
	}
}

func TestCallWithTimeout_OperationSeesCancellation(t *testing.T) {
	ctxDoneCh := make(chan bool, 1)
	err := CallWithTimeout(context.Background(), 50*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			ctxDoneCh <- true
			return ctx.Err()
		case <-time.After(time.Second):
			ctxDoneCh <- false
			return nil
		}
	})

	if err != ErrTimeout {
		t.Errorf("CallWithTimeout() error = %v, want ErrTimeout", err)
	}

	select {
	case ctxDone := <-ctxDoneCh:
		if !ctxDone {
			t.Error("Context was not cancelled")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Operation goroutine did not complete")
	}
}
