package services

import (
	"context"
	"errors"
	"testing"

	"immo_scrooper/models"
	"immo_scrooper/storage"
)

func TestGateway_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryListingStore()
	g := NewGateway(store)

	first := g.Upsert(ctx, &models.NormalizedListing{URL: "https://example.at/1", Source: "willhaben", Score: ptr(62.0)})
	if first.Status != UpsertInserted {
		t.Fatalf("expected inserted, got %+v", first)
	}
	second := g.Upsert(ctx, &models.NormalizedListing{URL: "https://example.at/1", Source: "willhaben", Score: ptr(62.0)})
	if second.Status != UpsertUpdated {
		t.Fatalf("expected updated, got %+v", second)
	}
	if first.ID != second.ID {
		t.Fatalf("identity changed across upserts: %s vs %s", first.ID, second.ID)
	}
	if store.Len() != 1 {
		t.Fatalf("expected exactly one listing, got %d", store.Len())
	}
}

func TestGateway_PreservesDownstreamFields(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryListingStore()
	g := NewGateway(store)

	img := "https://example.at/a.jpg"
	g.Upsert(ctx, &models.NormalizedListing{URL: "https://example.at/1", Score: ptr(71.0), ImageURL: &img})
	stored, _ := store.FindByURL(ctx, "https://example.at/1")
	if err := store.MarkSent(ctx, stored.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := store.SetImageKey(ctx, stored.ID, "listings/a.jpg"); err != nil {
		t.Fatalf("set image key: %v", err)
	}

	out := g.Upsert(ctx, &models.NormalizedListing{URL: "https://example.at/1", Score: ptr(12.0), ImageURL: &img})
	if out.Status != UpsertUpdated {
		t.Fatalf("expected updated, got %+v", out)
	}
	got, _ := store.FindByURL(ctx, "https://example.at/1")
	if *got.Score != 71 {
		t.Fatalf("stored score overwritten: %v", *got.Score)
	}
	if !got.SentToNotification {
		t.Fatalf("sent flag reset by re-crawl")
	}
	if got.ImageKey == nil || *got.ImageKey != "listings/a.jpg" {
		t.Fatalf("image key lost for unchanged image")
	}
}

// racingStore hides the first lookup so Insert collides like a concurrent
// writer got there first.
type racingStore struct {
	*storage.MemoryListingStore
	hidden    bool
	rereadErr error
}

func (s *racingStore) FindByURL(ctx context.Context, url string) (*models.NormalizedListing, error) {
	if !s.hidden {
		s.hidden = true
		return nil, storage.ErrNotFound
	}
	if s.rereadErr != nil {
		return nil, s.rereadErr
	}
	return s.MemoryListingStore.FindByURL(ctx, url)
}

func TestGateway_DuplicateKeyRereadsAndReplaces(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryListingStore()
	if err := mem.Insert(ctx, &models.NormalizedListing{URL: "https://example.at/race", Score: ptr(50.0)}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	g := NewGateway(&racingStore{MemoryListingStore: mem})
	out := g.Upsert(ctx, &models.NormalizedListing{URL: "https://example.at/race"})
	if out.Status != UpsertUpdated {
		t.Fatalf("expected updated after conflict, got %+v", out)
	}
	if mem.Len() != 1 {
		t.Fatalf("conflict produced a second row")
	}

	g = NewGateway(&racingStore{MemoryListingStore: mem, rereadErr: errors.New("connection reset")})
	out = g.Upsert(ctx, &models.NormalizedListing{URL: "https://example.at/race"})
	if out.Status != UpsertFailed || out.Reason == "" {
		t.Fatalf("expected failed outcome with reason, got %+v", out)
	}
}
