package workers

import (
	"context"
	"fmt"
	"time"

	"immo_scrooper/models"
	"immo_scrooper/services"
	"immo_scrooper/storage"
)

// BackfillWorker re-resolves proximity for stored listings that have none
// or only the hub estimate.
type BackfillWorker struct {
	trigger
	store    storage.ListingStore
	enricher services.Enricher
	logFunc  LogFunc
}

func NewBackfillWorker(store storage.ListingStore, enricher services.Enricher) *BackfillWorker {
	return &BackfillWorker{
		trigger:  newTrigger(),
		store:    store,
		enricher: enricher,
		logFunc:  NoOpLogger,
	}
}

func (w *BackfillWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// RunOnce returns how many listings got a better proximity tier.
func (w *BackfillWorker) RunOnce(ctx context.Context, limit int) (int, error) {
	listings, err := w.store.ListMissingProximity(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list missing proximity: %w", err)
	}

	improved := 0
	for _, l := range listings {
		if ctx.Err() != nil {
			break
		}
		prox, coords, err := w.enricher.Enrich(ctx, l.Coordinates, deref(l.Address), deref(l.District))
		if err != nil {
			report(w.logFunc, models.LogLevelWarn, "backfill", fmt.Sprintf("resolve %s: %v", l.URL, err))
			continue
		}
		if !better(prox.Transit, l.Transit) && !better(prox.School, l.School) {
			continue
		}
		if err := w.store.UpdateProximity(ctx, l.ID, coords, prox); err != nil {
			report(w.logFunc, models.LogLevelError, "backfill", fmt.Sprintf("update %s: %v", l.URL, err))
			continue
		}
		improved++
	}
	if improved > 0 {
		report(w.logFunc, models.LogLevelInfo, "backfill", fmt.Sprintf("improved proximity for %d of %d listings", improved, len(listings)))
	}
	return improved, nil
}

// better reports whether next came from a more trusted tier than current.
func better(next, current *models.ProximityResult) bool {
	if next == nil || next.Tier == models.TierUnresolved {
		return false
	}
	return current == nil || current.Tier == models.TierUnresolved || next.Tier < current.Tier
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Run starts the backfill loop
func (w *BackfillWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.ch:
		}
		if _, err := w.RunOnce(ctx, batchSize); err != nil {
			report(w.logFunc, models.LogLevelError, "backfill", err.Error())
		}
	}
}
