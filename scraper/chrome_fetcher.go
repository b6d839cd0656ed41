package scraper

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"immo_scrooper/config"
	"immo_scrooper/models"
)

// ChromeFetcher drives a headless Chrome through the DevTools protocol. It
// shares one browser process across fetches and opens a tab per page.
type ChromeFetcher struct {
	site      *config.SiteConfig
	userAgent string

	once        sync.Once
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

func NewChromeFetcher(site *config.SiteConfig, userAgent string) *ChromeFetcher {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &ChromeFetcher{site: site, userAgent: userAgent}
}

func (f *ChromeFetcher) allocator() context.Context {
	f.once.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.UserAgent(f.userAgent),
		)
		if bin := os.Getenv("CHROME_BIN"); bin != "" {
			opts = append(opts, chromedp.ExecPath(bin))
		}
		f.allocCtx, f.cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	})
	return f.allocCtx
}

func (f *ChromeFetcher) Fetch(ctx context.Context, url string) (*models.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(f.allocator(), chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancel()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.site.Timeout())
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var body, location string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.OuterHTML("html", &body, chromedp.ByQuery),
		chromedp.Location(&location),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("chrome fetch %s: %w", url, err)
	}
	if trigger := detectBlock(body); trigger != "" {
		return nil, fmt.Errorf("fetch %s: %w (%s)", url, errBlocked, trigger)
	}

	return &models.RawDocument{
		URL:          location,
		RequestedURL: url,
		Source:       f.site.Source,
		Body:         body,
		FetchedAt:    time.Now(),
	}, nil
}

func (f *ChromeFetcher) Close() error {
	if f.cancelAlloc != nil {
		f.cancelAlloc()
	}
	return nil
}
