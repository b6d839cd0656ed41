package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"immo_scrooper/models"
)

// AmenityQuery asks for amenities of one category around a point. Relaxed
// widens the tag filter; callers narrow the result by name afterwards.
type AmenityQuery struct {
	Category     models.AmenityCategory
	Center       models.Coordinates
	RadiusMeters int
	Relaxed      bool
}

// SpatialQuerier finds amenities near a point.
type SpatialQuerier interface {
	Around(ctx context.Context, q AmenityQuery) ([]Place, error)
}

// OverpassClient queries an Overpass API interpreter endpoint.
type OverpassClient struct {
	endpoint string
	client   *http.Client
}

func NewOverpassClient(endpoint string, client *http.Client) *OverpassClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &OverpassClient{endpoint: endpoint, client: client}
}

type overpassResponse struct {
	Elements []struct {
		Type   string            `json:"type"`
		Lat    *float64          `json:"lat"`
		Lon    *float64          `json:"lon"`
		Center *struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"center"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

func (c *OverpassClient) Around(ctx context.Context, q AmenityQuery) ([]Place, error) {
	form := url.Values{"data": {BuildOverpassQuery(q)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("overpass status %d: %s", resp.StatusCode, body)
	}

	var parsed overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("overpass decode: %w", err)
	}

	var places []Place
	for _, el := range parsed.Elements {
		var lat, lon float64
		switch {
		case el.Lat != nil && el.Lon != nil:
			lat, lon = *el.Lat, *el.Lon
		case el.Center != nil:
			lat, lon = el.Center.Lat, el.Center.Lon
		default:
			continue
		}
		coords, err := models.NewCoordinates(lat, lon)
		if err != nil {
			continue
		}
		places = append(places, Place{Name: placeName(el.Tags), Kind: placeKind(el.Tags), Coords: coords})
	}
	return places, nil
}

func placeName(tags map[string]string) string {
	if name := tags["name"]; name != "" {
		return name
	}
	return tags["official_name"]
}

// placeKind keeps the classifying tag values, e.g. "subway" for a metro
// station whose name alone does not say so.
func placeKind(tags map[string]string) string {
	var kinds []string
	for _, k := range []string{"station", "railway", "amenity", "network"} {
		if v := tags[k]; v != "" {
			kinds = append(kinds, v)
		}
	}
	return strings.Join(kinds, " ")
}

// BuildOverpassQuery renders the Overpass QL for q.
func BuildOverpassQuery(q AmenityQuery) string {
	around := fmt.Sprintf("(around:%d,%f,%f)", q.RadiusMeters, q.Center.Lat(), q.Center.Lon())

	var parts []string
	switch {
	case q.Category == models.CategoryTransit && !q.Relaxed:
		parts = []string{
			`node["railway"="station"]["station"~"subway|light_rail"]` + around,
			`node["public_transport"="station"]["subway"="yes"]` + around,
			`node["railway"="subway_entrance"]` + around,
		}
	case q.Category == models.CategoryTransit:
		parts = []string{
			`node["railway"~"station|halt|subway_entrance"]` + around,
			`node["public_transport"="station"]` + around,
		}
	case !q.Relaxed:
		parts = []string{
			`node["amenity"="school"]` + around,
			`way["amenity"="school"]` + around,
		}
	default:
		parts = []string{
			`node["amenity"~"school|kindergarten"]` + around,
			`way["amenity"~"school|kindergarten"]` + around,
		}
	}
	return "[out:json][timeout:10];(" + strings.Join(parts, ";") + ";);out center;"
}
