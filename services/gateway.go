package services

import (
	"context"
	"errors"
	"fmt"

	"immo_scrooper/models"
	"immo_scrooper/storage"
)

type UpsertStatus string

const (
	UpsertInserted UpsertStatus = "inserted"
	UpsertUpdated  UpsertStatus = "updated"
	UpsertFailed   UpsertStatus = "failed"
)

type UpsertOutcome struct {
	Status UpsertStatus
	ID     string
	Reason string
}

// Gateway writes listings so that each URL exists exactly once. Score and
// the sent flag already stored are never overwritten.
type Gateway struct {
	store storage.ListingStore
}

func NewGateway(store storage.ListingStore) *Gateway {
	return &Gateway{store: store}
}

func (g *Gateway) Store() storage.ListingStore { return g.store }

func (g *Gateway) Upsert(ctx context.Context, l *models.NormalizedListing) UpsertOutcome {
	existing, err := g.store.FindByURL(ctx, l.URL)
	switch {
	case err == nil:
		return g.replace(ctx, existing, l)
	case !errors.Is(err, storage.ErrNotFound):
		return failed(fmt.Errorf("find %s: %w", l.URL, err))
	}

	err = g.store.Insert(ctx, l)
	if err == nil {
		return UpsertOutcome{Status: UpsertInserted, ID: l.ID.String()}
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return failed(fmt.Errorf("insert %s: %w", l.URL, err))
	}

	// a concurrent writer inserted the same URL first
	existing, err = g.store.FindByURL(ctx, l.URL)
	if err != nil {
		return failed(fmt.Errorf("re-read %s after conflict: %w", l.URL, err))
	}
	return g.replace(ctx, existing, l)
}

func (g *Gateway) replace(ctx context.Context, existing, l *models.NormalizedListing) UpsertOutcome {
	if existing.Score != nil {
		s := *existing.Score
		l.Score = &s
	}
	if existing.SentToNotification {
		l.SentToNotification = true
	}
	if l.ImageKey == nil && existing.ImageKey != nil && sameImage(existing, l) {
		k := *existing.ImageKey
		l.ImageKey = &k
	}

	if err := g.store.Replace(ctx, existing.ID, l); err != nil {
		return failed(fmt.Errorf("replace %s: %w", l.URL, err))
	}
	return UpsertOutcome{Status: UpsertUpdated, ID: existing.ID.String()}
}

func sameImage(a, b *models.NormalizedListing) bool {
	return a.ImageURL != nil && b.ImageURL != nil && *a.ImageURL == *b.ImageURL
}

func failed(err error) UpsertOutcome {
	return UpsertOutcome{Status: UpsertFailed, Reason: err.Error()}
}
