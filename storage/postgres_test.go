package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"immo_scrooper/models"
)

func setupPostgres(t *testing.T) *PostgresListingStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("immo"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewPostgresListingStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx))
	// second run must be a no-op
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestPostgresListingStore_Roundtrip(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	l := newListing("https://www.willhaben.at/iad/immobilien/d/wohnung-123456789/", scorePtr(61.5))
	district := "1070"
	l.District = &district
	coords := models.MustCoordinates(48.2030, 16.3480)
	l.Coordinates = &coords

	require.NoError(t, store.Insert(ctx, l))
	assert.ErrorIs(t, store.Insert(ctx, newListing(l.URL, nil)), ErrDuplicateKey)

	got, err := store.FindByURL(ctx, l.URL)
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
	assert.Equal(t, "1070", *got.District)
	assert.InDelta(t, 61.5, *got.Score, 0.001)
	require.NotNil(t, got.Coordinates)
	assert.InDelta(t, 48.2030, got.Coordinates.Lat(), 1e-9)

	_, err = store.FindByURL(ctx, "https://example.at/none")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresListingStore_ReplaceAndQueues(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	l := newListing("https://www.derstandard.at/immobilien/detail/14727001", scorePtr(48))
	img := "https://www.derstandard.at/img/14727001/1.jpg"
	l.ImageURL = &img
	require.NoError(t, store.Insert(ctx, l))

	update := newListing(l.URL, scorePtr(48))
	update.ImageURL = &img
	require.NoError(t, store.Replace(ctx, l.ID, update))
	assert.Equal(t, l.ID, update.ID)

	unsent, err := store.ListUnsent(ctx, 40, 10)
	require.NoError(t, err)
	require.Len(t, unsent, 1)
	require.NoError(t, store.MarkSent(ctx, l.ID))
	unsent, err = store.ListUnsent(ctx, 40, 10)
	require.NoError(t, err)
	assert.Empty(t, unsent)

	missing, err := store.ListMissingProximity(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	p := models.Proximity{
		Transit: &models.ProximityResult{Category: models.CategoryTransit, Name: "Neubaugasse", Tier: models.TierDistrictTable},
		School:  &models.ProximityResult{Category: models.CategorySchool, Name: "GRG 7 Kandlgasse", Tier: models.TierLiveQuery},
	}
	require.NoError(t, store.UpdateProximity(ctx, l.ID, nil, p))
	missing, err = store.ListMissingProximity(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)

	pending, err := store.ListPendingImages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, store.SetImageKey(ctx, l.ID, "listings/x.jpg"))

	got, err := store.FindByURL(ctx, l.URL)
	require.NoError(t, err)
	assert.True(t, got.SentToNotification)
	assert.Equal(t, "listings/x.jpg", *got.ImageKey)
	assert.Equal(t, "Neubaugasse", got.Transit.Name)

	assert.ErrorIs(t, store.MarkSent(ctx, uuid.New()), ErrNotFound)
}
