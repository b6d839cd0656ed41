package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"immo_scrooper/config"
	"immo_scrooper/extract"
	"immo_scrooper/geo"
	"immo_scrooper/httputil"
	"immo_scrooper/logging"
	"immo_scrooper/models"
	"immo_scrooper/services"
	"immo_scrooper/storage"
)

var (
	ErrUnknownSite    = errors.New("unknown site")
	ErrSiteRunning    = errors.New("site is already running")
	ErrUnknownCommand = errors.New("command not handled by the scraper")
)

// Orchestrator runs the acquisition pipeline: one worker per site, bounded
// by the configured worker count. Inside a site listings run sequentially.
type Orchestrator struct {
	cfg      *config.Config
	store    *storage.SQLiteStore
	listings *services.ListingService
	geo      *geo.Resolver
	clients  *httputil.Clients

	newFetcher func(*config.SiteConfig) Fetcher
	sleep      func(ctx context.Context, d time.Duration) error
	paused     atomic.Bool

	mu       sync.Mutex
	fetchers map[string]Fetcher
	running  map[string]bool
}

// NewOrchestrator wires the pipeline. store and resolver may be nil; without
// a store runs are only logged, without a resolver listings are not enriched.
func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore, listings *services.ListingService, resolver *geo.Resolver, clients *httputil.Clients) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		store:    store,
		listings: listings,
		geo:      resolver,
		clients:  clients,
		sleep:    sleepCtx,
		fetchers: make(map[string]Fetcher),
		running:  make(map[string]bool),
	}
	o.newFetcher = func(site *config.SiteConfig) Fetcher {
		return NewFetcher(site, o.clients, cfg.Geo.UserAgent)
	}
	return o
}

// SetFetcherFactory replaces how fetchers are built for a site.
func (o *Orchestrator) SetFetcherFactory(fn func(*config.SiteConfig) Fetcher) {
	o.newFetcher = fn
}

func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.paused.Load() {
		logging.Infof("scraper", "paused, skipping run")
		return nil
	}

	var g errgroup.Group
	g.SetLimit(max(1, o.cfg.Scraper.Workers))
	for _, siteID := range o.SiteIDs() {
		g.Go(func() error {
			if _, err := o.RunSite(ctx, siteID); err != nil {
				logging.Errorf(siteID, "run failed: %v", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// RunSite scrapes every search page of a site and processes the listings
// found there.
func (o *Orchestrator) RunSite(ctx context.Context, siteID string) (*models.ScrapeRun, error) {
	site, ok := o.cfg.Sites[siteID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSite, siteID)
	}
	return o.run(ctx, site, nil)
}

// RunURL processes a single listing or project URL. The site is picked by
// host; unknown hosts use the generic profile over plain HTTP.
func (o *Orchestrator) RunURL(ctx context.Context, rawURL string) (*models.ScrapeRun, error) {
	return o.run(ctx, o.siteForURL(rawURL), []string{rawURL})
}

func (o *Orchestrator) run(ctx context.Context, site *config.SiteConfig, urls []string) (*models.ScrapeRun, error) {
	if !o.claim(site.ID) {
		return nil, fmt.Errorf("%w: %s", ErrSiteRunning, site.ID)
	}
	defer o.release(site.ID)

	run := &models.ScrapeRun{
		SiteID:    site.ID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if o.store != nil {
		id, err := o.store.CreateRun(run)
		if err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		run.ID = id
	}
	o.log(run, models.LogLevelInfo, "starting scrape for %s", site.Name)

	limiter := rate.NewLimiter(rate.Every(site.RateLimit(o.cfg.Scraper.DelayMS)), 1)
	fetcher := o.fetcher(site)
	policy := retryPolicy{
		attempts:  o.cfg.Scraper.RetryAttempts,
		baseDelay: o.cfg.Scraper.RetryBaseDelay,
		timeout:   site.Timeout(),
		sleep:     o.sleep,
	}
	fetch := func(ctx context.Context, u string) (*models.RawDocument, error) {
		return fetchWithRetry(ctx, fetcher, limiter, u, policy)
	}

	ex := extract.New(site.Source, extract.Options{TwoDigitYearCutoff: o.cfg.Extraction.TwoDigitYearCutoff})
	svc := o.listings
	if o.geo != nil {
		svc = svc.WithEnricher(o.geo.WithLimiter(limiter))
	}

	if urls == nil {
		var searchErrs int
		urls, searchErrs = discoverListings(ctx, site, ex, fetch)
		run.ErrorsCount += searchErrs
	}
	run.ListingsFound = len(urls)
	o.log(run, models.LogLevelInfo, "%d listing urls discovered", len(urls))

	var runID *int64
	if o.store != nil {
		runID = &run.ID
	}
	stats := &services.ProcessStats{}
	resolver := NewCollectionResolver(ex, o.cfg.Scraper.MaxResolveDepth)
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		ws := resolver.Walk(ctx, u, fetch, func(p *extract.Page) {
			res, err := svc.ProcessListing(ctx, ex.ExtractPage(p), runID)
			if err != nil {
				o.log(run, models.LogLevelError, "process %s: %v", p.Raw.URL, err)
			}
			if res == nil {
				return
			}
			stats.Aggregate(res)
			switch res.Status {
			case services.StatusRejected:
				o.log(run, models.LogLevelDebug, "rejected %s: %s", res.URL, res.Rejection)
			case services.StatusFiltered:
				o.log(run, models.LogLevelDebug, "filtered %s: %s", res.URL, strings.Join(res.FailedBounds, ", "))
			}
		})
		run.CollectionsResolved += ws.CollectionsResolved
		run.ErrorsCount += ws.FetchErrors
	}

	run.ListingsInserted = stats.Inserted
	run.ListingsUpdated = stats.Updated
	run.ListingsRejected = stats.Rejected
	run.ListingsFiltered = stats.Filtered
	run.ErrorsCount += stats.Errors

	now := time.Now()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	if err := ctx.Err(); err != nil {
		run.Status = models.RunStatusFailed
	}
	o.log(run, models.LogLevelInfo, "completed: %d found, %d inserted, %d updated, %d rejected, %d filtered, %d errors",
		run.ListingsFound, run.ListingsInserted, run.ListingsUpdated, run.ListingsRejected, run.ListingsFiltered, run.ErrorsCount)

	if o.store != nil {
		if err := o.store.UpdateRun(run); err != nil {
			logging.Errorf(site.ID, "update run: %v", err)
		}
		if err := o.store.UpdateSiteStats(site.ID); err != nil {
			logging.Errorf(site.ID, "update site stats: %v", err)
		}
	}
	return run, ctx.Err()
}

func (o *Orchestrator) fetcher(site *config.SiteConfig) Fetcher {
	o.mu.Lock()
	defer o.mu.Unlock()
	if f, ok := o.fetchers[site.ID]; ok {
		return f
	}
	f := o.newFetcher(site)
	o.fetchers[site.ID] = f
	return f
}

func (o *Orchestrator) claim(siteID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[siteID] {
		return false
	}
	o.running[siteID] = true
	return true
}

func (o *Orchestrator) release(siteID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, siteID)
}

func (o *Orchestrator) siteForURL(rawURL string) *config.SiteConfig {
	u, err := url.Parse(rawURL)
	if err == nil {
		for _, id := range o.SiteIDs() {
			site := o.cfg.Sites[id]
			base, err := url.Parse(site.BaseURL)
			if err == nil && base.Host != "" && strings.EqualFold(base.Host, u.Host) {
				return site
			}
		}
	}
	return &config.SiteConfig{ID: "adhoc", Name: "single url", Source: "generic", Fetcher: "http", PageParam: "page", MaxPages: 1}
}

// HandleCommand executes the scrape related commands.
func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command, params *models.CommandParams) error {
	switch cmd.Command {
	case models.CmdScrapeNow:
		return o.RunAll(ctx)
	case models.CmdScrapeSite:
		if params != nil && params.Site != "" {
			_, err := o.RunSite(ctx, params.Site)
			return err
		}
		return o.RunAll(ctx)
	case models.CmdScrapeURL:
		if params == nil || params.URL == "" {
			return fmt.Errorf("scrape_url: missing url")
		}
		_, err := o.RunURL(ctx, params.URL)
		return err
	case models.CmdPause:
		o.paused.Store(true)
		logging.Infof("scraper", "paused")
	case models.CmdResume:
		o.paused.Store(false)
		logging.Infof("scraper", "resumed")
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Command)
	}
	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused.Load()
}

func (o *Orchestrator) log(run *models.ScrapeRun, level models.LogLevel, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	switch level {
	case models.LogLevelDebug:
		logging.Debugf(run.SiteID, "%s", message)
	case models.LogLevelWarn:
		logging.Warnf(run.SiteID, "%s", message)
	case models.LogLevelError:
		logging.Errorf(run.SiteID, "%s", message)
	default:
		logging.Infof(run.SiteID, "%s", message)
	}
	if o.store != nil && level != models.LogLevelDebug {
		o.store.Log(&run.ID, level, message, run.SiteID)
	}
}

func (o *Orchestrator) SiteIDs() []string {
	ids := make([]string, 0, len(o.cfg.Sites))
	for id := range o.cfg.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type Status struct {
	Paused  bool     `json:"paused"`
	Sites   []string `json:"sites"`
	Running []string `json:"running"`
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	running := make([]string, 0, len(o.running))
	for id := range o.running {
		running = append(running, id)
	}
	o.mu.Unlock()
	sort.Strings(running)
	return Status{Paused: o.paused.Load(), Sites: o.SiteIDs(), Running: running}
}

// Close shuts down every fetcher that was started.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, f := range o.fetchers {
		if err := f.Close(); err != nil {
			logging.Warnf(id, "close fetcher: %v", err)
		}
	}
	o.fetchers = make(map[string]Fetcher)
}
