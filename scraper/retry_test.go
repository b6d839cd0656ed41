package scraper

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFetchWithRetry_LinearBackoff(t *testing.T) {
	url := base + "/expose/5000001"
	f := newMapFetcher("generic", map[string]string{url: "<html></html>"})
	f.fails[url] = 2

	var waits []time.Duration
	policy := retryPolicy{
		attempts:  3,
		baseDelay: 2 * time.Second,
		sleep: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}

	doc, err := fetchWithRetry(context.Background(), f, nil, url, policy)
	if err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if doc.URL != url {
		t.Fatalf("unexpected document %s", doc.URL)
	}
	if len(waits) != 2 || waits[0] != 2*time.Second || waits[1] != 4*time.Second {
		t.Fatalf("expected waits of 2s and 4s, got %v", waits)
	}
}

func TestFetchWithRetry_GivesUp(t *testing.T) {
	url := base + "/expose/5000002"
	f := newMapFetcher("generic", map[string]string{url: "<html></html>"})
	f.fails[url] = 5

	_, err := fetchWithRetry(context.Background(), f, nil, url, retryPolicy{attempts: 3, sleep: noSleep})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Attempts != 3 || f.callCount(url) != 3 {
		t.Fatalf("expected 3 attempts, got %d (%d calls)", fe.Attempts, f.callCount(url))
	}
}

func TestFetchWithRetry_NotFoundIsNotRetried(t *testing.T) {
	url := base + "/expose/5000003"
	f := newMapFetcher("generic", nil)

	_, err := fetchWithRetry(context.Background(), f, nil, url, retryPolicy{attempts: 3, sleep: noSleep})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 404 {
		t.Fatalf("expected wrapped 404, got %v", err)
	}
	if f.callCount(url) != 1 {
		t.Fatalf("404 retried %d times", f.callCount(url))
	}
}
