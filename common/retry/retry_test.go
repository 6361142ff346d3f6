package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bdobrica/Shiori/common/retry"
)

func TestDo(t *testing.T) {
	busy := errors.New("database is locked")
	corrupt := errors.New("cannot encode state")

	tests := []struct {
		name      string
		attempts  int
		failFirst int   // calls that fail before fn starts succeeding
		failWith  error // error returned by failing calls
		wantCalls int
		wantErr   error
	}{
		{name: "first call succeeds", attempts: 3, wantCalls: 1},
		{name: "succeeds on last attempt", attempts: 3, failFirst: 2, failWith: busy, wantCalls: 3},
		{name: "gives up after max attempts", attempts: 3, failFirst: 10, failWith: busy, wantCalls: 3, wantErr: busy},
		{name: "zero attempts means one call", attempts: 0, failFirst: 10, failWith: busy, wantCalls: 1, wantErr: busy},
		{name: "permanent error stops at once", attempts: 5, failFirst: 10, failWith: retry.Permanent(corrupt), wantCalls: 1, wantErr: corrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retry.Do(context.Background(), retry.Config{MaxAttempts: tt.attempts, InitialDelay: time.Millisecond}, func() error {
				calls++
				if calls <= tt.failFirst {
					return tt.failWith
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls: got %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error: got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDo_PermanentIsUnwrapped(t *testing.T) {
	corrupt := errors.New("cannot encode state")
	err := retry.Do(context.Background(), retry.DefaultConfig, func() error {
		return retry.Permanent(corrupt)
	})
	if err != corrupt {
		t.Errorf("got %#v, want the original error", err)
	}
	if retry.Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry.Do(ctx, retry.Config{MaxAttempts: 5, InitialDelay: 10 * time.Millisecond}, func() error {
		calls++
		return errors.New("fail")
	})
	if calls != 0 {
		t.Errorf("expected no calls with a cancelled context, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDo_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	busy := errors.New("database is locked")

	calls := 0
	err := retry.Do(ctx, retry.Config{MaxAttempts: 3, InitialDelay: time.Hour}, func() error {
		calls++
		cancel()
		return busy
	})
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if !errors.Is(err, busy) || !errors.Is(err, context.Canceled) {
		t.Errorf("expected the last failure joined with context.Canceled, got %v", err)
	}
}
