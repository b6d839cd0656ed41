package storage

import (
	"context"

	"github.com/google/uuid"
	"immo_scrooper/models"
)

// ListingStore persists normalized listings keyed by their URL.
type ListingStore interface {
	// FindByURL returns ErrNotFound when no listing has this URL.
	FindByURL(ctx context.Context, url string) (*models.NormalizedListing, error)
	// Insert returns ErrDuplicateKey when the URL is already stored.
	Insert(ctx context.Context, l *models.NormalizedListing) error
	// Replace overwrites the stored listing with this ID in place.
	Replace(ctx context.Context, id uuid.UUID, l *models.NormalizedListing) error

	ListUnsent(ctx context.Context, minScore float64, limit int) ([]*models.NormalizedListing, error)
	MarkSent(ctx context.Context, id uuid.UUID) error

	// ListMissingProximity returns listings with no proximity or with a
	// proximity that only came from the hub heuristic.
	ListMissingProximity(ctx context.Context, limit int) ([]*models.NormalizedListing, error)
	UpdateProximity(ctx context.Context, id uuid.UUID, coords *models.Coordinates, p models.Proximity) error

	ListPendingImages(ctx context.Context, limit int) ([]*models.NormalizedListing, error)
	SetImageKey(ctx context.Context, id uuid.UUID, key string) error

	ListRecent(ctx context.Context, limit int) ([]*models.NormalizedListing, error)
}

// needsProximity reports whether a listing should be picked up by the
// proximity backfill.
func needsProximity(l *models.NormalizedListing) bool {
	if l.Transit == nil || l.School == nil {
		return true
	}
	return l.Transit.Tier == models.TierHubHeuristic || l.School.Tier == models.TierHubHeuristic
}

func validateListing(l *models.NormalizedListing) error {
	if l == nil || l.URL == "" {
		return ErrInvalidInput
	}
	return nil
}
