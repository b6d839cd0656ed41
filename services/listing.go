package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"immo_scrooper/extract"
	"immo_scrooper/geo"
	"immo_scrooper/logging"
	"immo_scrooper/models"
	"immo_scrooper/storage"
)

// Enricher resolves coordinates and amenity proximity for a listing.
type Enricher interface {
	Enrich(ctx context.Context, known *models.Coordinates, address, district string) (models.Proximity, *models.Coordinates, error)
}

type RejectionRecorder interface {
	SaveRejection(runID *int64, r *models.Rejection) error
}

// ListingService runs one extracted record through enrichment, validation,
// the criteria filter and persistence.
type ListingService struct {
	normalizer *Normalizer
	criteria   *Criteria
	gateway    *Gateway
	enricher   Enricher
	rejections RejectionRecorder
}

func NewListingService(gateway *Gateway, normalizer *Normalizer, criteria *Criteria, enricher Enricher, rejections RejectionRecorder) *ListingService {
	return &ListingService{
		normalizer: normalizer,
		criteria:   criteria,
		gateway:    gateway,
		enricher:   enricher,
		rejections: rejections,
	}
}

// WithEnricher returns a copy that enriches through e. Source workers use it
// to put their own rate limiter in front of live geo calls.
func (s *ListingService) WithEnricher(e Enricher) *ListingService {
	c := *s
	c.enricher = e
	return &c
}

type ProcessStatus string

const (
	StatusInserted ProcessStatus = "inserted"
	StatusUpdated  ProcessStatus = "updated"
	StatusRejected ProcessStatus = "rejected"
	StatusFiltered ProcessStatus = "filtered"
	StatusFailed   ProcessStatus = "failed"
)

type ProcessResult struct {
	URL          string
	Status       ProcessStatus
	Listing      *models.NormalizedListing
	Rejection    *models.Rejection
	FailedBounds []string
}

// ProcessListing is safe to call repeatedly for the same URL.
func (s *ListingService) ProcessListing(ctx context.Context, rec *models.CandidateRecord, runID *int64) (*ProcessResult, error) {
	result := &ProcessResult{URL: rec.URL}

	var stored *models.NormalizedListing
	if existing, err := s.gateway.Store().FindByURL(ctx, rec.URL); err == nil {
		stored = existing
	} else if !errors.Is(err, storage.ErrNotFound) {
		logging.Warnf(rec.Source, "lookup %s: %v", rec.URL, err)
	}

	prox, coords := s.enrich(ctx, rec, stored)

	opts := NormalizeOptions{Coordinates: coords}
	if stored != nil {
		opts.StoredScore = stored.Score
	}
	listing, rejection := s.normalizer.NormalizeWith(rec, prox, opts)
	if rejection != nil {
		result.Status = StatusRejected
		result.Rejection = rejection
		if s.rejections != nil {
			if err := s.rejections.SaveRejection(runID, rejection); err != nil {
				logging.Warnf(rec.Source, "record rejection %s: %v", rec.URL, err)
			}
		}
		return result, nil
	}
	result.Listing = listing

	if failed := s.criteria.Explain(listing); len(failed) > 0 {
		result.Status = StatusFiltered
		result.FailedBounds = failed
		return result, nil
	}

	outcome := s.gateway.Upsert(ctx, listing)
	switch outcome.Status {
	case UpsertInserted:
		result.Status = StatusInserted
		if listing.Score != nil {
			logging.Debugf(rec.Source, "scored %s: %.1f %v", rec.URL, *listing.Score, ScoreBreakdown(listing))
		}
	case UpsertUpdated:
		result.Status = StatusUpdated
	default:
		result.Status = StatusFailed
		return result, fmt.Errorf("persist listing: %s", outcome.Reason)
	}
	return result, nil
}

// ProcessDocument extracts doc with ex and processes the record.
func (s *ListingService) ProcessDocument(ctx context.Context, ex *extract.Extractor, doc *models.RawDocument, runID *int64) (*ProcessResult, error) {
	return s.ProcessListing(ctx, ex.Extract(doc), runID)
}

// enrich reuses a stored proximity when it came from a live or table tier and
// the address did not change.
func (s *ListingService) enrich(ctx context.Context, rec *models.CandidateRecord, stored *models.NormalizedListing) (*models.Proximity, *models.Coordinates) {
	address := rec.Text(models.FieldAddress)
	if stored != nil && stored.Transit != nil && stored.School != nil &&
		stored.Transit.Tier != models.TierHubHeuristic && stored.School.Tier != models.TierHubHeuristic &&
		stored.Address != nil && *stored.Address == address {
		return &models.Proximity{Transit: stored.Transit, School: stored.School}, stored.Coordinates
	}
	if s.enricher == nil {
		return nil, nil
	}

	var known *models.Coordinates
	lat, lon := rec.Number(models.FieldLatitude), rec.Number(models.FieldLongitude)
	if lat != nil && lon != nil {
		if c, err := models.NewCoordinates(*lat, *lon); err == nil {
			known = &c
		}
	}

	prox, coords, err := s.enricher.Enrich(ctx, known, address, rec.Text(models.FieldDistrict))
	if err != nil {
		if !errors.Is(err, geo.ErrUnresolved) {
			logging.Warnf(rec.Source, "enrich %s: %v", rec.URL, err)
		}
		return nil, nil
	}
	return &prox, coords
}

// ProcessStats tracks aggregate statistics for a scrape run
type ProcessStats struct {
	ListingsProcessed int
	Inserted          int
	Updated           int
	Rejected          int
	Filtered          int
	Errors            int
}

// Aggregate adds a ProcessResult to the stats
func (s *ProcessStats) Aggregate(r *ProcessResult) {
	s.ListingsProcessed++
	switch r.Status {
	case StatusInserted:
		s.Inserted++
	case StatusUpdated:
		s.Updated++
	case StatusRejected:
		s.Rejected++
	case StatusFiltered:
		s.Filtered++
	case StatusFailed:
		s.Errors++
	}
}

func (s *ProcessStats) ToJSON() json.RawMessage {
	data, _ := json.Marshal(map[string]int{
		"listings_processed": s.ListingsProcessed,
		"inserted":           s.Inserted,
		"updated":            s.Updated,
		"rejected":           s.Rejected,
		"filtered":           s.Filtered,
		"errors":             s.Errors,
	})
	return data
}
