package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"immo_scrooper/api"
	"immo_scrooper/config"
	"immo_scrooper/geo"
	"immo_scrooper/httputil"
	"immo_scrooper/logging"
	"immo_scrooper/models"
	"immo_scrooper/notify"
	"immo_scrooper/scheduler"
	"immo_scrooper/scraper"
	"immo_scrooper/services"
	"immo_scrooper/storage"
	"immo_scrooper/workers"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run scrape once and exit")
	dryRun    = flag.Bool("dry-run", false, "Use an in-memory listing store and send no notifications")
	singleURL = flag.String("url", "", "Process a single listing URL and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)

	log.Printf("Starting immo_scrooper, %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s, %s fetcher)", site.Name, id, site.Fetcher)
	}

	clients := httputil.NewClients(cfg.Proxy, cfg.Geo.Timeout, cfg.Geo.UserAgent)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	listings, closeListings := openListingStore(ctx, cfg)
	defer closeListings()

	// SQLite holds operational data: runs, logs, rejections and commands
	var ops *storage.SQLiteStore
	if !*dryRun {
		ops, err = storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to open SQLite: %v", err)
		}
		defer ops.Close()
		log.Printf("SQLite database: %s", cfg.DBPath)
	}

	resolver, err := geo.NewResolver(
		geo.NewOverpassClient(cfg.Geo.OverpassURL, clients.API),
		geo.NewNominatimClient(cfg.Geo.NominatimURL, clients.API),
		cfg.Geo.Timeout,
	)
	if err != nil {
		log.Fatalf("Failed to load proximity tables: %v", err)
	}

	var rejections services.RejectionRecorder
	if ops != nil {
		rejections = ops
	}
	listingService := services.NewListingService(
		services.NewGateway(listings),
		services.NewNormalizer(cfg.Validation),
		services.NewCriteria(cfg.Criteria),
		resolver,
		rejections,
	)

	orchestrator := scraper.NewOrchestrator(cfg, ops, listingService, resolver, clients)
	defer orchestrator.Close()

	if *singleURL != "" {
		run, err := orchestrator.RunURL(ctx, *singleURL)
		if err != nil {
			log.Fatalf("Processing %s failed: %v", *singleURL, err)
		}
		log.Printf("Done: %d inserted, %d updated, %d rejected, %d filtered",
			run.ListingsInserted, run.ListingsUpdated, run.ListingsRejected, run.ListingsFiltered)
		return
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.Telegram.BotToken != "" && !*dryRun {
		notifier = notify.NewTelegram(clients.API, cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}
	notifyWorker := workers.NewNotificationWorker(listings, notifier, cfg.Telegram.MinScore)
	backfillWorker := workers.NewBackfillWorker(listings, resolver)

	var mediaWorker *workers.MediaWorker
	if cfg.S3.Enabled() && !*dryRun {
		uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to configure S3: %v", err)
		}
		mediaWorker = workers.NewMediaWorker(listings, uploader, clients.Scraping)
	}

	if ops != nil {
		logFn := func(level models.LogLevel, source, message string) {
			ops.Log(nil, level, message, source)
		}
		notifyWorker.SetLogger(logFn)
		backfillWorker.SetLogger(logFn)
		if mediaWorker != nil {
			mediaWorker.SetLogger(logFn)
		}
	}

	if *scrapeNow {
		log.Println("Running scrape...")
		if err := orchestrator.RunAll(ctx); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		if _, err := notifyWorker.RunOnce(ctx, 50); err != nil {
			log.Printf("Notification failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}

	// Daemon mode
	var commands scheduler.CommandStore
	if ops != nil {
		commands = ops
	}
	sched := scheduler.New(cfg, orchestrator, commands)
	if mediaWorker != nil {
		sched.SetWorkers(notifyWorker, mediaWorker, backfillWorker)
		go mediaWorker.Run(ctx, 20, 2*time.Minute)
		log.Println("Media worker started")
	} else {
		sched.SetWorkers(notifyWorker, nil, backfillWorker)
	}
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	go notifyWorker.Run(ctx, 20, 5*time.Minute)
	go backfillWorker.Run(ctx, 10, 30*time.Minute)
	log.Println("Notification and backfill workers started")

	var srv *http.Server
	if cfg.APIAddr != "" {
		var opsView api.OpsStore
		if ops != nil {
			opsView = ops
		}
		srv = &http.Server{
			Addr:              cfg.APIAddr,
			Handler:           api.NewServer(orchestrator, opsView, listings).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Status API stopped: %v", err)
			}
		}()
		log.Printf("Status API listening on %s", cfg.APIAddr)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Println("Shutting down...")
	sched.Stop()
	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		srv.Shutdown(shutdownCtx)
	}
	log.Println("Goodbye!")
}

// openListingStore returns Postgres when configured and an in-memory store
// for dry runs or when no database is set.
func openListingStore(ctx context.Context, cfg *config.Config) (storage.ListingStore, func()) {
	if *dryRun || cfg.DatabaseURL == "" {
		log.Println("Using in-memory listing store")
		return storage.NewMemoryListingStore(), func() {}
	}

	pg, err := storage.NewPostgresListingStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		log.Fatalf("Failed to migrate Postgres: %v", err)
	}
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
	return pg, pg.Close
}

// maskConnectionString masks the password in a connection string for logging
func maskConnectionString(connStr string) string {
	scheme := strings.Index(connStr, "://")
	if scheme < 0 {
		return connStr
	}
	rest := connStr[scheme+3:]
	at := strings.IndexByte(rest, '@')
	if at < 0 {
		return connStr
	}
	colon := strings.IndexByte(rest[:at], ':')
	if colon < 0 {
		return connStr
	}
	return connStr[:scheme+3] + rest[:colon+1] + "****" + rest[at:]
}
