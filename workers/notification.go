package workers

import (
	"context"
	"fmt"
	"time"

	"immo_scrooper/models"
	"immo_scrooper/notify"
	"immo_scrooper/storage"
)

// NotificationWorker delivers stored listings that scored high enough and
// were not sent yet. A listing is marked sent only after delivery worked.
type NotificationWorker struct {
	trigger
	store    storage.ListingStore
	notifier notify.Notifier
	minScore float64
	logFunc  LogFunc
}

func NewNotificationWorker(store storage.ListingStore, notifier notify.Notifier, minScore float64) *NotificationWorker {
	return &NotificationWorker{
		trigger:  newTrigger(),
		store:    store,
		notifier: notifier,
		minScore: minScore,
		logFunc:  NoOpLogger,
	}
}

func (w *NotificationWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// RunOnce sends up to limit listings and returns how many were delivered.
func (w *NotificationWorker) RunOnce(ctx context.Context, limit int) (int, error) {
	listings, err := w.store.ListUnsent(ctx, w.minScore, limit)
	if err != nil {
		return 0, fmt.Errorf("list unsent: %w", err)
	}

	sent := 0
	for _, l := range listings {
		if ctx.Err() != nil {
			break
		}
		if err := w.notifier.Notify(ctx, l); err != nil {
			report(w.logFunc, models.LogLevelWarn, "notify", fmt.Sprintf("deliver %s: %v", l.URL, err))
			continue
		}
		if err := w.store.MarkSent(ctx, l.ID); err != nil {
			report(w.logFunc, models.LogLevelError, "notify", fmt.Sprintf("mark sent %s: %v", l.URL, err))
			continue
		}
		sent++
	}
	if sent > 0 {
		report(w.logFunc, models.LogLevelInfo, "notify", fmt.Sprintf("sent %d of %d listings", sent, len(listings)))
	}
	return sent, nil
}

// Run starts the notification loop
func (w *NotificationWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
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
			report(w.logFunc, models.LogLevelError, "notify", err.Error())
		}
	}
}
