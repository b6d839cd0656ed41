package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"immo_scrooper/models"
)

// MemoryListingStore is an in-memory ListingStore for tests and dry runs.
type MemoryListingStore struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*models.NormalizedListing
	byURL map[string]uuid.UUID
	now   func() time.Time
}

var _ ListingStore = (*MemoryListingStore)(nil)

func NewMemoryListingStore() *MemoryListingStore {
	return &MemoryListingStore{
		byID:  make(map[uuid.UUID]*models.NormalizedListing),
		byURL: make(map[string]uuid.UUID),
		now:   time.Now,
	}
}

func (s *MemoryListingStore) FindByURL(_ context.Context, url string) (*models.NormalizedListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byURL[url]
	if !ok {
		return nil, ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *MemoryListingStore) Insert(_ context.Context, l *models.NormalizedListing) error {
	if err := validateListing(l); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byURL[l.URL]; exists {
		return ErrDuplicateKey
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	now := s.now()
	l.CreatedAt = now
	l.UpdatedAt = now

	s.byID[l.ID] = l.Clone()
	s.byURL[l.URL] = l.ID
	return nil
}

func (s *MemoryListingStore) Replace(_ context.Context, id uuid.UUID, l *models.NormalizedListing) error {
	if err := validateListing(l); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if other, taken := s.byURL[l.URL]; taken && other != id {
		return ErrDuplicateKey
	}

	l.ID = id
	l.CreatedAt = stored.CreatedAt
	l.UpdatedAt = s.now()

	delete(s.byURL, stored.URL)
	s.byID[id] = l.Clone()
	s.byURL[l.URL] = id
	return nil
}

func (s *MemoryListingStore) ListUnsent(_ context.Context, minScore float64, limit int) ([]*models.NormalizedListing, error) {
	return s.list(limit, func(l *models.NormalizedListing) bool {
		return !l.SentToNotification && l.Score != nil && *l.Score >= minScore
	}, func(a, b *models.NormalizedListing) bool {
		return *a.Score > *b.Score
	}), nil
}

func (s *MemoryListingStore) MarkSent(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(l *models.NormalizedListing) {
		l.SentToNotification = true
	})
}

func (s *MemoryListingStore) ListMissingProximity(_ context.Context, limit int) ([]*models.NormalizedListing, error) {
	return s.list(limit, needsProximity, byCreated), nil
}

func (s *MemoryListingStore) UpdateProximity(_ context.Context, id uuid.UUID, coords *models.Coordinates, p models.Proximity) error {
	return s.update(id, func(l *models.NormalizedListing) {
		if coords != nil {
			c := *coords
			l.Coordinates = &c
		}
		l.Transit = p.Transit
		l.School = p.School
	})
}

func (s *MemoryListingStore) ListPendingImages(_ context.Context, limit int) ([]*models.NormalizedListing, error) {
	return s.list(limit, func(l *models.NormalizedListing) bool {
		return l.ImageURL != nil && l.ImageKey == nil
	}, byCreated), nil
}

func (s *MemoryListingStore) SetImageKey(_ context.Context, id uuid.UUID, key string) error {
	return s.update(id, func(l *models.NormalizedListing) {
		l.ImageKey = &key
	})
}

func (s *MemoryListingStore) ListRecent(_ context.Context, limit int) ([]*models.NormalizedListing, error) {
	return s.list(limit, func(*models.NormalizedListing) bool { return true },
		func(a, b *models.NormalizedListing) bool {
			return a.UpdatedAt.After(b.UpdatedAt)
		}), nil
}

// Len returns the number of stored listings.
func (s *MemoryListingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *MemoryListingStore) update(id uuid.UUID, fn func(*models.NormalizedListing)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(stored)
	stored.UpdatedAt = s.now()
	return nil
}

func (s *MemoryListingStore) list(limit int, keep func(*models.NormalizedListing) bool, less func(a, b *models.NormalizedListing) bool) []*models.NormalizedListing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.NormalizedListing
	for _, l := range s.byID {
		if keep(l) {
			result = append(result, l.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if less(result[i], result[j]) {
			return true
		}
		if less(result[j], result[i]) {
			return false
		}
		return result[i].URL < result[j].URL
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func byCreated(a, b *models.NormalizedListing) bool {
	return a.CreatedAt.Before(b.CreatedAt)
}
