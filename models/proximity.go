package models

import (
	"encoding/json"
	"fmt"
)

// Coordinates is an immutable, range-checked WGS84 point.
type Coordinates struct {
	lat float64
	lon float64
}

func NewCoordinates(lat, lon float64) (Coordinates, error) {
	if lat < -90 || lat > 90 {
		return Coordinates{}, fmt.Errorf("latitude out of range: %f", lat)
	}
	if lon < -180 || lon > 180 {
		return Coordinates{}, fmt.Errorf("longitude out of range: %f", lon)
	}
	return Coordinates{lat: lat, lon: lon}, nil
}

// MustCoordinates is for static tables whose values are known to be valid.
func MustCoordinates(lat, lon float64) Coordinates {
	c, err := NewCoordinates(lat, lon)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Coordinates) Lat() float64 { return c.lat }
func (c Coordinates) Lon() float64 { return c.lon }

func (c Coordinates) String() string {
	return fmt.Sprintf("%.5f,%.5f", c.lat, c.lon)
}

type coordinatesJSON struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal(coordinatesJSON{Lat: c.lat, Lon: c.lon})
}

func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var raw coordinatesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewCoordinates(raw.Lat, raw.Lon)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type AmenityCategory string

const (
	CategoryTransit AmenityCategory = "transit"
	CategorySchool  AmenityCategory = "school"
)

// Tier records which fallback produced a proximity value.
type Tier int

const (
	TierUnresolved    Tier = 0
	TierLiveQuery     Tier = 1
	TierDistrictTable Tier = 2
	TierBroadQuery    Tier = 3
	TierHubHeuristic  Tier = 4
)

func (t Tier) String() string {
	switch t {
	case TierLiveQuery:
		return "live"
	case TierDistrictTable:
		return "district_table"
	case TierBroadQuery:
		return "broad_live"
	case TierHubHeuristic:
		return "hub_heuristic"
	default:
		return "unresolved"
	}
}

type ProximityResult struct {
	Category       AmenityCategory `json:"category"`
	Name           string          `json:"name,omitempty"`
	DistanceMeters float64         `json:"distance_meters"`
	WalkingMinutes int             `json:"walking_minutes"`
	Tier           Tier            `json:"tier"`
}

// Proximity bundles the two amenity categories the pipeline enriches with.
type Proximity struct {
	Transit *ProximityResult `json:"transit,omitempty"`
	School  *ProximityResult `json:"school,omitempty"`
}
