package scraper

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"immo_scrooper/models"
)

// FetchError is returned once every attempt for a URL has failed.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
	timeout   time.Duration
	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetchWithRetry waits on limiter before every attempt and backs off
// linearly: attempt n failing waits n × baseDelay.
func fetchWithRetry(ctx context.Context, f Fetcher, limiter *rate.Limiter, url string, p retryPolicy) (*models.RawDocument, error) {
	if p.attempts <= 0 {
		p.attempts = 1
	}
	if p.sleep == nil {
		p.sleep = sleepCtx
	}

	var lastErr error
	attempt := 0
	for attempt < p.attempts {
		attempt++
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.timeout)
		}
		doc, err := f.Fetch(attemptCtx, url)
		cancel()
		if err == nil {
			return doc, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if permanent(err) {
			break
		}
		if attempt < p.attempts {
			if err := p.sleep(ctx, time.Duration(attempt)*p.baseDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, &FetchError{URL: url, Attempts: attempt, Err: lastErr}
}
