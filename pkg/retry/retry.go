// Package retry re-runs failing operations with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// Config describes the retry behavior.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFactor   float64
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.JitterFactor <= 0 {
		c.JitterFactor = 0.2
	}
	return c
}

// Option tunes a single Do call.
type Option func(*settings)

type settings struct {
	op     string
	logger *slog.Logger
}

// WithLogger logs every failed attempt that is followed by a retry at Warn,
// tagged with op.
func WithLogger(logger *slog.Logger, op string) Option {
	return func(s *settings) {
		s.logger = logger
		s.op = op
	}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn until it succeeds, returns a Permanent error, the attempts are
// exhausted or ctx is done. The last error from fn is returned, joined with
// the context error when ctx ended the loop.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error, opts ...Option) error {
	cfg = cfg.withDefaults()
	var set settings
	for _, opt := range opts {
		opt(&set)
	}

	delay := cfg.InitialBackoff
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(err, ctxErr)
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= cfg.MaxAttempts {
			return err
		}

		wait := min(jitter(delay, cfg.JitterFactor), cfg.MaxBackoff)
		if set.logger != nil {
			set.logger.Warn("operation failed, retrying",
				slog.String("op", set.op),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", cfg.MaxAttempts),
				slog.Duration("wait", wait),
				slog.Any("error", err))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
		delay = min(delay*2, cfg.MaxBackoff)
	}
}

// jitter spreads d by up to ±factor.
func jitter(d time.Duration, factor float64) time.Duration {
	spread := int64(float64(d) * factor)
	if spread <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(2*spread)-spread)
}
