package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly"

	"immo_scrooper/config"
	"immo_scrooper/httputil"
	"immo_scrooper/models"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// HTTPFetcher fetches static pages with colly. Sources that render their
// listing data server side use it.
type HTTPFetcher struct {
	site      *config.SiteConfig
	collector *colly.Collector
}

func NewHTTPFetcher(site *config.SiteConfig, clients *httputil.Clients, userAgent string) *HTTPFetcher {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	if clients != nil && clients.Scraping != nil && clients.Scraping.Transport != nil {
		c.WithTransport(clients.Scraping.Transport)
	}
	c.SetRequestTimeout(site.Timeout())
	return &HTTPFetcher{site: site, collector: c}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*models.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		doc      *models.RawDocument
		fetchErr error
	)
	c := f.collector.Clone()
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "de-AT,de;q=0.9,en;q=0.8")
	})
	c.OnResponse(func(r *colly.Response) {
		doc = &models.RawDocument{
			URL:          r.Request.URL.String(),
			RequestedURL: url,
			Source:       f.site.Source,
			Body:         string(r.Body),
			FetchedAt:    time.Now(),
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &StatusError{URL: url, Code: r.StatusCode}
			return
		}
		fetchErr = err
	})

	if err := c.Visit(url); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, fetchErr)
	}
	if doc == nil {
		return nil, fmt.Errorf("fetch %s: empty response", url)
	}
	if trigger := detectBlock(doc.Body); trigger != "" {
		return nil, fmt.Errorf("fetch %s: %w (%s)", url, errBlocked, trigger)
	}
	return doc, nil
}

func (f *HTTPFetcher) Close() error { return nil }
