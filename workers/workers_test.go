package workers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"immo_scrooper/models"
	"immo_scrooper/storage"
)

func ptr[T any](v T) *T { return &v }

func seed(t *testing.T, store *storage.MemoryListingStore, listings ...*models.NormalizedListing) {
	t.Helper()
	for _, l := range listings {
		if err := store.Insert(context.Background(), l); err != nil {
			t.Fatalf("seed %s: %v", l.URL, err)
		}
	}
}

type recordingNotifier struct {
	sent []string
	fail map[string]bool
}

func (n *recordingNotifier) Notify(_ context.Context, l *models.NormalizedListing) error {
	if n.fail[l.URL] {
		return errors.New("telegram unavailable")
	}
	n.sent = append(n.sent, l.URL)
	return nil
}

func TestNotificationWorker(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryListingStore()
	seed(t, store,
		&models.NormalizedListing{URL: "https://example.at/hoch", Score: ptr(71.0)},
		&models.NormalizedListing{URL: "https://example.at/grenze", Score: ptr(40.0)},
		&models.NormalizedListing{URL: "https://example.at/niedrig", Score: ptr(39.9)},
		&models.NormalizedListing{URL: "https://example.at/kaputt", Score: ptr(55.0)},
	)

	n := &recordingNotifier{fail: map[string]bool{"https://example.at/kaputt": true}}
	w := NewNotificationWorker(store, n, 40)

	sent, err := w.RunOnce(ctx, 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sent != 2 {
		t.Fatalf("expected 2 deliveries, got %d (%v)", sent, n.sent)
	}

	// failed delivery stays unsent and is retried
	n.fail = nil
	sent, _ = w.RunOnce(ctx, 10)
	if sent != 1 || n.sent[len(n.sent)-1] != "https://example.at/kaputt" {
		t.Fatalf("expected the failed listing to be retried, got %v", n.sent)
	}
	if sent, _ = w.RunOnce(ctx, 10); sent != 0 {
		t.Fatalf("listings were sent twice")
	}
}

type memoryUploader struct {
	mu      sync.Mutex
	objects map[string]string
	uploads int
}

func (u *memoryUploader) Exists(_ context.Context, key string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.objects[key]
	return ok, nil
}

func (u *memoryUploader) Upload(_ context.Context, key string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = string(b)
	u.uploads++
	return nil
}

func TestMediaWorker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/webp")
		w.Write([]byte("fake image bytes"))
	}))
	defer srv.Close()

	ctx := context.Background()
	store := storage.NewMemoryListingStore()
	seed(t, store,
		&models.NormalizedListing{URL: "https://example.at/1", ImageURL: ptr(srv.URL + "/bild?size=large")},
		&models.NormalizedListing{URL: "https://example.at/2", ImageURL: ptr(srv.URL + "/gone.jpg")},
	)

	up := &memoryUploader{objects: map[string]string{}}
	w := NewMediaWorker(store, up, srv.Client())

	processed, failed, err := w.RunOnce(ctx, 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if processed != 1 || failed != 1 {
		t.Fatalf("expected 1 processed and 1 failed, got %d/%d", processed, failed)
	}

	got, _ := store.FindByURL(ctx, "https://example.at/1")
	if got.ImageKey == nil || !strings.HasPrefix(*got.ImageKey, "listings/") || !strings.HasSuffix(*got.ImageKey, ".webp") {
		t.Fatalf("unexpected image key %v", got.ImageKey)
	}
	if up.objects[*got.ImageKey] != "fake image bytes" {
		t.Fatalf("uploaded object does not match download")
	}

	for i := 0; i < 5; i++ {
		w.RunOnce(ctx, 10)
	}
	if n := w.attempts["https://example.at/2"]; n != maxImageAttempts {
		t.Fatalf("expected attempts to stop at %d, got %d", maxImageAttempts, n)
	}
}

func TestMediaWorker_SameImageUploadedOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("shared render"))
	}))
	defer srv.Close()

	ctx := context.Background()
	store := storage.NewMemoryListingStore()
	seed(t, store,
		&models.NormalizedListing{URL: "https://example.at/top-1", ImageURL: ptr(srv.URL + "/a.jpg")},
		&models.NormalizedListing{URL: "https://example.at/top-2", ImageURL: ptr(srv.URL + "/b.jpg")},
	)
	up := &memoryUploader{objects: map[string]string{}}
	w := NewMediaWorker(store, up, srv.Client())

	processed, failed, err := w.RunOnce(ctx, 10)
	if err != nil || processed != 2 || failed != 0 {
		t.Fatalf("expected 2 processed, got %d/%d (%v)", processed, failed, err)
	}
	if up.uploads != 1 {
		t.Fatalf("identical images should be uploaded once, got %d uploads", up.uploads)
	}
	a, _ := store.FindByURL(ctx, "https://example.at/top-1")
	b, _ := store.FindByURL(ctx, "https://example.at/top-2")
	if a.ImageKey == nil || b.ImageKey == nil || *a.ImageKey != *b.ImageKey {
		t.Fatalf("both listings should share the key, got %v and %v", a.ImageKey, b.ImageKey)
	}
}

func TestGuessExtension(t *testing.T) {
	cases := map[[2]string]string{
		{"https://cdn.example.at/a/b.PNG", ""}:               ".png",
		{"https://cdn.example.at/a/b.jpeg?w=800", ""}:        ".jpeg",
		{"https://cdn.example.at/a/b", "image/gif"}:          ".gif",
		{"https://cdn.example.at/a/b", "image/webp; q=0.9"}:  ".webp",
		{"https://cdn.example.at/a/b", "application/binary"}: ".jpg",
	}
	for in, want := range cases {
		if got := guessExtension(in[0], in[1]); got != want {
			t.Fatalf("%v: expected %s, got %s", in, want, got)
		}
	}
}

type fixedEnricher struct {
	prox models.Proximity
	err  error
}

func (e fixedEnricher) Enrich(_ context.Context, known *models.Coordinates, _, _ string) (models.Proximity, *models.Coordinates, error) {
	return e.prox, known, e.err
}

func TestBackfillWorker_ReplacesHubEstimates(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryListingStore()
	coords := models.MustCoordinates(48.2020, 16.3480)
	hub := &models.ProximityResult{Category: models.CategoryTransit, WalkingMinutes: 14, Tier: models.TierHubHeuristic}
	seed(t, store,
		&models.NormalizedListing{URL: "https://example.at/hub", Coordinates: &coords, Transit: hub, School: hub},
		&models.NormalizedListing{URL: "https://example.at/leer", District: ptr("1070")},
	)

	table := fixedEnricher{prox: models.Proximity{
		Transit: &models.ProximityResult{Category: models.CategoryTransit, WalkingMinutes: 5, Tier: models.TierDistrictTable},
		School:  &models.ProximityResult{Category: models.CategorySchool, WalkingMinutes: 4, Tier: models.TierDistrictTable},
	}}
	improved, err := NewBackfillWorker(store, table).RunOnce(ctx, 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if improved != 2 {
		t.Fatalf("expected both listings improved, got %d", improved)
	}
	got, _ := store.FindByURL(ctx, "https://example.at/hub")
	if got.Transit.Tier != models.TierDistrictTable || got.Transit.WalkingMinutes != 5 {
		t.Fatalf("proximity not replaced: %+v", got.Transit)
	}

	remaining, _ := store.ListMissingProximity(ctx, 10)
	if len(remaining) != 0 {
		t.Fatalf("expected no listings left to backfill, got %d", len(remaining))
	}
}

func TestBackfillWorker_KeepsWhenNotBetter(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryListingStore()
	hub := &models.ProximityResult{Tier: models.TierHubHeuristic}
	seed(t, store, &models.NormalizedListing{URL: "https://example.at/hub", Transit: hub, School: hub})

	same := fixedEnricher{prox: models.Proximity{Transit: hub, School: hub}}
	if improved, _ := NewBackfillWorker(store, same).RunOnce(ctx, 10); improved != 0 {
		t.Fatalf("hub result must not count as an improvement")
	}
	failing := fixedEnricher{err: errors.New("unresolved")}
	if improved, _ := NewBackfillWorker(store, failing).RunOnce(ctx, 10); improved != 0 {
		t.Fatalf("errors must not update listings")
	}
}
