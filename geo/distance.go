package geo

import (
	"math"

	"immo_scrooper/models"
)

const earthRadiusMeters = 6_371_000

const (
	walkingSpeed      = 80 // m/min, tiers 1-3
	hubWalkingSpeed   = 75 // m/min, tier 4
	liveRadiusMeters  = 2_000
	broadRadiusMeters = 5_000
	broadCutoffMeters = 8_000
)

// Haversine returns the great-circle distance in meters.
func Haversine(a, b models.Coordinates) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dLat := (b.Lat() - a.Lat()) * math.Pi / 180
	dLon := (b.Lon() - a.Lon()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// WalkingMinutes converts a distance to whole walking minutes for a tier.
func WalkingMinutes(meters float64, tier models.Tier) int {
	speed := float64(walkingSpeed)
	if tier == models.TierHubHeuristic {
		speed = hubWalkingSpeed
	}
	return int(math.Round(meters / speed))
}

// Place is a named point of interest.
type Place struct {
	Name   string
	Kind   string
	Coords models.Coordinates
}

// nearestPlace returns the closest place to from, or false for an empty set.
func nearestPlace(from models.Coordinates, places []Place) (Place, float64, bool) {
	best := -1.0
	var hit Place
	for _, p := range places {
		d := Haversine(from, p.Coords)
		if best < 0 || d < best {
			best, hit = d, p
		}
	}
	return hit, best, best >= 0
}
