package geo

import (
	"embed"
	"encoding/json"
	"fmt"

	"immo_scrooper/models"
)

//go:embed data/*.json
var dataFS embed.FS

type tableEntry struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// loadTable reads a district -> places table from the embedded data.
func loadTable(name string) (map[string][]Place, error) {
	raw, err := dataFS.ReadFile("data/" + name)
	if err != nil {
		return nil, err
	}
	var entries map[string][]tableEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	out := make(map[string][]Place, len(entries))
	for district, list := range entries {
		for _, e := range list {
			c, err := models.NewCoordinates(e.Lat, e.Lon)
			if err != nil {
				return nil, fmt.Errorf("%s %s %q: %w", name, district, e.Name, err)
			}
			out[district] = append(out[district], Place{Name: e.Name, Coords: c})
		}
	}
	return out, nil
}

// hubs are the major interchange points used when nothing better is known.
var hubs = []Place{
	{Name: "Stephansplatz", Coords: models.MustCoordinates(48.2082, 16.3738)},
	{Name: "Karlsplatz", Coords: models.MustCoordinates(48.2019, 16.3695)},
	{Name: "Westbahnhof", Coords: models.MustCoordinates(48.1967, 16.3400)},
	{Name: "Praterstern", Coords: models.MustCoordinates(48.2178, 16.3917)},
	{Name: "Schottentor", Coords: models.MustCoordinates(48.2133, 16.3633)},
	{Name: "Volkstheater", Coords: models.MustCoordinates(48.2033, 16.3583)},
	{Name: "Rathaus", Coords: models.MustCoordinates(48.2100, 16.3583)},
	{Name: "Heiligenstadt", Coords: models.MustCoordinates(48.2500, 16.3667)},
	{Name: "Floridsdorf", Coords: models.MustCoordinates(48.2500, 16.4000)},
	{Name: "Kagran", Coords: models.MustCoordinates(48.2333, 16.4500)},
}

var districtCentroids = map[string]models.Coordinates{
	"1010": models.MustCoordinates(48.2085, 16.3700),
	"1020": models.MustCoordinates(48.2165, 16.4000),
	"1030": models.MustCoordinates(48.1985, 16.3950),
	"1040": models.MustCoordinates(48.1920, 16.3670),
	"1050": models.MustCoordinates(48.1875, 16.3550),
	"1060": models.MustCoordinates(48.1950, 16.3480),
	"1070": models.MustCoordinates(48.2020, 16.3480),
	"1080": models.MustCoordinates(48.2110, 16.3480),
	"1090": models.MustCoordinates(48.2230, 16.3580),
	"1100": models.MustCoordinates(48.1550, 16.3820),
	"1110": models.MustCoordinates(48.1650, 16.4400),
	"1120": models.MustCoordinates(48.1750, 16.3250),
	"1130": models.MustCoordinates(48.1750, 16.2650),
	"1140": models.MustCoordinates(48.2050, 16.2700),
	"1150": models.MustCoordinates(48.1950, 16.3250),
	"1160": models.MustCoordinates(48.2130, 16.3100),
	"1170": models.MustCoordinates(48.2250, 16.3050),
	"1180": models.MustCoordinates(48.2300, 16.3300),
	"1190": models.MustCoordinates(48.2550, 16.3350),
	"1200": models.MustCoordinates(48.2400, 16.3750),
	"1210": models.MustCoordinates(48.2750, 16.4100),
	"1220": models.MustCoordinates(48.2300, 16.4800),
	"1230": models.MustCoordinates(48.1450, 16.2900),
}

// DistrictCentroid returns the approximate centre of a district.
func DistrictCentroid(district string) (models.Coordinates, bool) {
	c, ok := districtCentroids[district]
	return c, ok
}

type box struct {
	district       string
	latMin, latMax float64
	lonMin, lonMax float64
}

func (b box) contains(c models.Coordinates) bool {
	return c.Lat() >= b.latMin && c.Lat() <= b.latMax && c.Lon() >= b.lonMin && c.Lon() <= b.lonMax
}

var districtBoxes = []box{
	{"1060", 48.190, 48.210, 16.340, 16.360},
	{"1070", 48.200, 48.220, 16.340, 16.365},
	{"1080", 48.210, 48.230, 16.340, 16.365},
	{"1090", 48.215, 48.235, 16.355, 16.375},
	{"1100", 48.165, 48.195, 16.365, 16.405},
	{"1120", 48.170, 48.190, 16.320, 16.350},
	{"1130", 48.175, 48.205, 16.285, 16.325},
	{"1140", 48.190, 48.220, 16.300, 16.340},
	{"1150", 48.185, 48.205, 16.320, 16.350},
	{"1160", 48.205, 48.225, 16.310, 16.340},
	{"1190", 48.235, 48.280, 16.350, 16.390},
	{"1210", 48.240, 48.280, 16.390, 16.430},
	{"1220", 48.220, 48.260, 16.410, 16.500},
}

var (
	centralBox = box{latMin: 48.195, latMax: 48.220, lonMin: 16.355, lonMax: 16.385}
	viennaBox  = box{latMin: 48.115, latMax: 48.325, lonMin: 16.180, lonMax: 16.580}
)

// DistrictFromCoordinates maps a point to a district postal code. The inner
// districts are split around Stephansplatz first, then the bounding boxes
// are checked, and finally the nearest centroid is taken for points still
// inside the city.
func DistrictFromCoordinates(c models.Coordinates) (string, bool) {
	if centralBox.contains(c) {
		switch {
		case c.Lat() >= 48.210 && c.Lon() <= 16.370:
			return "1010", true
		case c.Lat() >= 48.210:
			return "1020", true
		case c.Lon() <= 16.370:
			return "1040", true
		default:
			return "1030", true
		}
	}
	for _, b := range districtBoxes {
		if b.contains(c) {
			return b.district, true
		}
	}
	if !viennaBox.contains(c) {
		return "", false
	}
	best, bestDist := "", -1.0
	for district, centroid := range districtCentroids {
		d := Haversine(c, centroid)
		if bestDist < 0 || d < bestDist || (d == bestDist && district < best) {
			best, bestDist = district, d
		}
	}
	return best, best != ""
}
