package scraper

import (
	"context"
	"errors"
	"fmt"

	"immo_scrooper/config"
	"immo_scrooper/httputil"
	"immo_scrooper/models"
)

// Fetcher retrieves one page of a source.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.RawDocument, error)
	Close() error
}

// StatusError is an HTTP response outside 2xx.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.URL, e.Code)
}

// errBlocked means the page is a bot challenge rather than content.
var errBlocked = errors.New("blocked by bot protection")

// NewFetcher picks the fetch backend configured for a site.
func NewFetcher(site *config.SiteConfig, clients *httputil.Clients, userAgent string) Fetcher {
	switch site.Fetcher {
	case "browser":
		return NewBrowserFetcher(site)
	case "chrome":
		return NewChromeFetcher(site, userAgent)
	default:
		return NewHTTPFetcher(site, clients, userAgent)
	}
}

// permanent reports errors that another attempt cannot fix.
func permanent(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == 429:
			return false
		case se.Code >= 400 && se.Code < 500:
			return true
		}
	}
	return errors.Is(err, context.Canceled)
}
