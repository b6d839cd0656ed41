package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"immo_scrooper/logging"
	"immo_scrooper/models"
)

// ErrUnresolved means neither geocoding nor the district gave a location.
var ErrUnresolved = errors.New("geo: location unresolved")

var nameKeywords = map[models.AmenityCategory][]string{
	models.CategoryTransit: {"u-bahn", "ubahn", "u1", "u2", "u3", "u4", "u6", "metro", "subway"},
	models.CategorySchool:  {"schule", "gymnasium", "school", "vs ", "grg", "brg", "bg "},
}

// Resolver computes the walking distance to the nearest amenity through four
// tiers: a live 2 km query, the static district table, a broad 5 km live
// query filtered by name, and the distance to the nearest city hub.
type Resolver struct {
	spatial  SpatialQuerier
	geocoder Geocoder
	timeout  time.Duration
	limiter  *rate.Limiter
	tables   map[models.AmenityCategory]map[string][]Place
}

// NewResolver builds a resolver. spatial and geocoder may be nil, in which
// case the live tiers and geocoding are skipped.
func NewResolver(spatial SpatialQuerier, geocoder Geocoder, timeout time.Duration) (*Resolver, error) {
	stations, err := loadTable("stations.json")
	if err != nil {
		return nil, err
	}
	schools, err := loadTable("schools.json")
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{
		spatial:  spatial,
		geocoder: geocoder,
		timeout:  timeout,
		tables: map[models.AmenityCategory]map[string][]Place{
			models.CategoryTransit: stations,
			models.CategorySchool:  schools,
		},
	}, nil
}

// WithLimiter returns a copy whose live calls wait on l.
func (r *Resolver) WithLimiter(l *rate.Limiter) *Resolver {
	c := *r
	c.limiter = l
	return &c
}

// Nearest resolves the nearest amenity of category to coords. It always
// produces a result; the last tier cannot fail.
func (r *Resolver) Nearest(ctx context.Context, category models.AmenityCategory, coords models.Coordinates) models.ProximityResult {
	district, _ := DistrictFromCoordinates(coords)
	return r.NearestInDistrict(ctx, category, coords, district)
}

// NearestInDistrict is Nearest with a known district for the table tier.
func (r *Resolver) NearestInDistrict(ctx context.Context, category models.AmenityCategory, coords models.Coordinates, district string) models.ProximityResult {
	tiers := []struct {
		tier models.Tier
		run  func() (Place, float64, bool, error)
	}{
		{models.TierLiveQuery, func() (Place, float64, bool, error) {
			return r.live(ctx, AmenityQuery{Category: category, Center: coords, RadiusMeters: liveRadiusMeters})
		}},
		{models.TierDistrictTable, func() (Place, float64, bool, error) {
			p, d, ok := nearestPlace(coords, r.tables[category][district])
			return p, d, ok, nil
		}},
		{models.TierBroadQuery, func() (Place, float64, bool, error) {
			return r.broad(ctx, AmenityQuery{Category: category, Center: coords, RadiusMeters: broadRadiusMeters, Relaxed: true})
		}},
		{models.TierHubHeuristic, func() (Place, float64, bool, error) {
			p, d, ok := nearestPlace(coords, hubs)
			return p, d, ok, nil
		}},
	}

	for _, t := range tiers {
		place, dist, ok, err := t.run()
		if err != nil {
			logging.Debugf("geo", "%s tier %s failed at %s: %v", category, t.tier, coords, err)
			continue
		}
		if !ok {
			continue
		}
		return models.ProximityResult{
			Category:       category,
			Name:           place.Name,
			DistanceMeters: dist,
			WalkingMinutes: WalkingMinutes(dist, t.tier),
			Tier:           t.tier,
		}
	}
	return models.ProximityResult{Category: category, Tier: models.TierUnresolved}
}

func (r *Resolver) live(ctx context.Context, q AmenityQuery) (Place, float64, bool, error) {
	places, err := r.query(ctx, q)
	if err != nil {
		return Place{}, 0, false, err
	}
	p, d, ok := nearestPlace(q.Center, places)
	return p, d, ok, nil
}

func (r *Resolver) broad(ctx context.Context, q AmenityQuery) (Place, float64, bool, error) {
	places, err := r.query(ctx, q)
	if err != nil {
		return Place{}, 0, false, err
	}
	var kept []Place
	for _, p := range places {
		if matchesKeyword(q.Category, p) && Haversine(q.Center, p.Coords) < broadCutoffMeters {
			kept = append(kept, p)
		}
	}
	p, d, ok := nearestPlace(q.Center, kept)
	return p, d, ok, nil
}

func (r *Resolver) query(ctx context.Context, q AmenityQuery) ([]Place, error) {
	if r.spatial == nil {
		return nil, nil
	}
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.spatial.Around(ctx, q)
}

func (r *Resolver) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

func matchesKeyword(category models.AmenityCategory, p Place) bool {
	haystack := strings.ToLower(p.Name + " " + p.Kind + " ")
	for _, kw := range nameKeywords[category] {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// Locate geocodes address, falling back to the centroid of district.
func (r *Resolver) Locate(ctx context.Context, address, district string) (models.Coordinates, error) {
	if r.geocoder != nil && strings.TrimSpace(address) != "" {
		coords, err := r.geocode(ctx, address)
		if err == nil {
			return coords, nil
		}
		logging.Debugf("geo", "geocode %q failed: %v", address, err)
	}
	if c, ok := DistrictCentroid(district); ok {
		return c, nil
	}
	return models.Coordinates{}, ErrUnresolved
}

func (r *Resolver) geocode(ctx context.Context, address string) (models.Coordinates, error) {
	if err := r.wait(ctx); err != nil {
		return models.Coordinates{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.geocoder.Geocode(ctx, address)
}

// NearestFromAddress locates address and resolves the nearest amenity.
func (r *Resolver) NearestFromAddress(ctx context.Context, category models.AmenityCategory, address, district string) (models.ProximityResult, error) {
	coords, err := r.Locate(ctx, address, district)
	if err != nil {
		return models.ProximityResult{Category: category}, fmt.Errorf("nearest %s for %q: %w", category, address, err)
	}
	if district == "" {
		district, _ = DistrictFromCoordinates(coords)
	}
	return r.NearestInDistrict(ctx, category, coords, district), nil
}

// Enrich resolves transit and school proximity for one listing location.
// known may be nil; the returned coordinates are the ones used.
func (r *Resolver) Enrich(ctx context.Context, known *models.Coordinates, address, district string) (models.Proximity, *models.Coordinates, error) {
	var coords models.Coordinates
	if known != nil {
		coords = *known
	} else {
		c, err := r.Locate(ctx, address, district)
		if err != nil {
			return models.Proximity{}, nil, err
		}
		coords = c
	}
	if district == "" {
		district, _ = DistrictFromCoordinates(coords)
	}

	transit := r.NearestInDistrict(ctx, models.CategoryTransit, coords, district)
	school := r.NearestInDistrict(ctx, models.CategorySchool, coords, district)
	return models.Proximity{Transit: &transit, School: &school}, &coords, nil
}
