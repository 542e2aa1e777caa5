package utils

import (
	"context"
	"time"
)

// RetryConfig controls bounded exponential backoff for transient I/O
type RetryConfig struct {
	Attempts int
	BaseWait time.Duration
}

// DefaultRetry is used for reference-data lookups and gateway calls
var DefaultRetry = RetryConfig{
	Attempts: 3,
	BaseWait: 100 * time.Millisecond,
}

// Retry runs fn up to cfg.Attempts times, doubling the wait between attempts.
// It returns the last error if every attempt fails, or ctx.Err() if the
// context is cancelled while waiting.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	wait := cfg.BaseWait

	var err error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		if attempt == cfg.Attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}

	return err
}
