package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"immo_scrooper/config"
	"immo_scrooper/logging"
	"immo_scrooper/models"
)

var (
	consentSelectors = []string{
		"#didomi-notice-agree-button",
		"#onetrust-accept-btn-handler",
		"button[data-testid='uc-accept-all-button']",
		"button:has-text('Alle akzeptieren')",
		"button:has-text('Akzeptieren')",
		"button:has-text('Zustimmen')",
		"button:has-text('Einverstanden')",
		"button[id*='accept']",
		"button[class*='consent']",
		"button:has-text('Accept All')",
	}
	blockTriggers = []string{
		"Request unsuccessful. Incapsula",
		"Incapsula incident ID",
		"Access Denied",
		"This request was blocked",
		"Pardon Our Interruption",
		"cf-challenge",
	}
)

// BrowserFetcher renders pages in a persistent Chromium profile through
// playwright. Sources that hydrate listings client side or sit behind a
// consent wall use it.
type BrowserFetcher struct {
	site *config.SiteConfig

	mu          sync.Mutex
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	initialized bool
}

func NewBrowserFetcher(site *config.SiteConfig) *BrowserFetcher {
	return &BrowserFetcher{site: site}
}

func (f *BrowserFetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.initialized {
		return nil
	}

	var err error
	f.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	cwd, _ := os.Getwd()
	userDataDir := filepath.Join(cwd, "browser_data", f.site.ID)
	f.context, err = f.pw.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(true),
		Locale:   playwright.String("de-AT"),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		f.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	f.initialized = true
	return nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (*models.RawDocument, error) {
	if err := f.ensureBrowser(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := f.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	timeout := f.site.Timeout()
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	resp, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if resp != nil && resp.Status() >= 400 {
		return nil, &StatusError{URL: url, Code: resp.Status()}
	}

	humanDelay(page, 800, 1600)
	f.handleConsent(page)

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", url, err)
	}
	if trigger := detectBlock(content); trigger != "" {
		logging.Warnf(f.site.Source, "bot challenge on %s: %s", url, trigger)
		return nil, fmt.Errorf("fetch %s: %w (%s)", url, errBlocked, trigger)
	}

	return &models.RawDocument{
		URL:          page.URL(),
		RequestedURL: url,
		Source:       f.site.Source,
		Body:         content,
		FetchedAt:    time.Now(),
	}, nil
}

func (f *BrowserFetcher) handleConsent(page playwright.Page) {
	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			logging.Debugf(f.site.Source, "clicking consent button %s", selector)
			if err := btn.Click(); err == nil {
				page.WaitForTimeout(1000)
			}
			return
		}
	}
}

func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.initialized {
		return nil
	}
	if f.context != nil {
		f.context.Close()
	}
	f.initialized = false
	return f.pw.Stop()
}

func humanDelay(page playwright.Page, minMs, maxMs int) {
	page.Mouse().Move(float64(300+rand.Intn(400)), float64(200+rand.Intn(300)))
	page.WaitForTimeout(float64(minMs + rand.Intn(maxMs-minMs)))
}

// detectBlock returns the bot-challenge phrase found in content, if any.
func detectBlock(content string) string {
	for _, t := range blockTriggers {
		if strings.Contains(content, t) {
			return t
		}
	}
	return ""
}
