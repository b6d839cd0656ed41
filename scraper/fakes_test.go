package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"immo_scrooper/models"
)

// mapFetcher serves pages from memory and counts requests per URL.
type mapFetcher struct {
	mu     sync.Mutex
	source string
	pages  map[string]string
	fails  map[string]int
	calls  map[string]int
}

func newMapFetcher(source string, pages map[string]string) *mapFetcher {
	return &mapFetcher{source: source, pages: pages, fails: map[string]int{}, calls: map[string]int{}}
}

func (f *mapFetcher) Fetch(_ context.Context, url string) (*models.RawDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if f.fails[url] > 0 {
		f.fails[url]--
		return nil, fmt.Errorf("connection reset")
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, &StatusError{URL: url, Code: 404}
	}
	return &models.RawDocument{URL: url, RequestedURL: url, Source: f.source, Body: body, FetchedAt: time.Now()}, nil
}

func (f *mapFetcher) Close() error { return nil }

func (f *mapFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func noSleep(context.Context, time.Duration) error { return nil }

func projectPage(links ...string) string {
	body := `<html><body><div class="sc-project-overview"><h1>Wohnprojekt</h1>`
	for _, l := range links {
		body += fmt.Sprintf(`<a href="%s">Top</a>`, l)
	}
	return body + `</div></body></html>`
}

func listingPage(title string, price, area int, district string) string {
	return fmt.Sprintf(`<html><body><h1>%s</h1>
<dl><dt>Kaufpreis</dt><dd>€ %d</dd><dt>Wohnfläche</dt><dd>%d m²</dd><dt>Zimmer</dt><dd>3</dd></dl>
<p>Adresse: Testgasse 1, %s Wien</p></body></html>`, title, price, area, district)
}
