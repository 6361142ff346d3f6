// Package retry re-runs an operation that failed for a reason expected to
// pass, such as a busy SQLite file or a homeserver hiccup.
//
// The host wraps channel-state saves in Do, and the Matrix adapter wraps
// room joins. Errors that will never succeed are wrapped with Permanent.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/bdobrica/Shiori/common/observability"
)

// Config bounds a retry loop. Delays double after each failed attempt and
// never exceed MaxDelay.
type Config struct {
	// MaxAttempts counts the first call. Values below 1 mean a single call.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig suits local database writes and single API calls.
var DefaultConfig = Config{
	MaxAttempts:  3,
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     2 * time.Second,
}

func (c Config) normalized() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultConfig.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultConfig.MaxDelay
	}
	return c
}

type permanent struct{ error }

func (p permanent) Unwrap() error { return p.error }

// Permanent wraps err so that Do gives up on it at once. Do returns err
// itself, unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err}
}

// Do runs fn until it succeeds, returns a Permanent error, or has been tried
// cfg.MaxAttempts times. A cancelled ctx stops the loop; the returned error
// then joins the last failure with ctx.Err().
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg = cfg.normalized()
	log := observability.WithTrace(ctx, nil)

	var err error
	delay := cfg.InitialDelay
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(err, ctxErr)
		}
		if err = fn(); err == nil {
			return nil
		}
		var p permanent
		if errors.As(err, &p) {
			return p.error
		}
		if attempt == cfg.MaxAttempts {
			return err
		}

		log.Debug("retry: will try again", "attempt", attempt, "of", cfg.MaxAttempts, "in", delay, "err", err)
		if ctxErr := sleep(ctx, delay); ctxErr != nil {
			return errors.Join(err, ctxErr)
		}
		delay = min(2*delay, cfg.MaxDelay)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
