package scheduler

import (
	"context"
	"path/filepath"
	"testing"

	"immo_scrooper/config"
	"immo_scrooper/models"
	"immo_scrooper/scraper"
	"immo_scrooper/services"
	"immo_scrooper/storage"
)

type countingWorker struct{ n int }

func (w *countingWorker) Trigger() { w.n++ }

func TestScheduler_DispatchesCommands(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "ops.db"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer store.Close()

	cfg := &config.Config{Sites: map[string]*config.SiteConfig{}}
	listings := storage.NewMemoryListingStore()
	svc := services.NewListingService(services.NewGateway(listings), services.NewNormalizer(config.DefaultValidation()),
		services.NewCriteria(config.CriteriaConfig{}), nil, nil)
	orch := scraper.NewOrchestrator(cfg, nil, svc, nil, nil)

	s := New(cfg, orch, store)
	notify, media, backfill := &countingWorker{}, &countingWorker{}, &countingWorker{}
	s.SetWorkers(notify, media, backfill)

	for _, c := range []models.CommandType{models.CmdRunNotify, models.CmdRunMedia, models.CmdRunBackfill, models.CmdRunBackfill, models.CmdPause} {
		if _, err := store.InsertCommand(c, nil); err != nil {
			t.Fatalf("insert %s: %v", c, err)
		}
	}

	s.processCommands(context.Background())

	if notify.n != 1 || media.n != 1 || backfill.n != 2 {
		t.Fatalf("unexpected triggers notify=%d media=%d backfill=%d", notify.n, media.n, backfill.n)
	}
	if !orch.IsPaused() {
		t.Fatalf("pause command not forwarded to the orchestrator")
	}
	pending, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected all commands processed, %d left", len(pending))
	}
}
