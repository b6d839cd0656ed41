package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"immo_scrooper/models"
)

// Geocoder resolves a postal address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Coordinates, error)
}

type NominatimClient struct {
	endpoint string
	client   *http.Client
}

func NewNominatimClient(endpoint string, client *http.Client) *NominatimClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &NominatimClient{endpoint: endpoint, client: client}
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (c *NominatimClient) Geocode(ctx context.Context, address string) (models.Coordinates, error) {
	q := strings.TrimSpace(address)
	if q == "" {
		return models.Coordinates{}, ErrUnresolved
	}
	if !strings.Contains(strings.ToLower(q), "wien") {
		q += ", Wien, Austria"
	}

	params := url.Values{
		"q":            {q},
		"format":       {"json"},
		"limit":        {"1"},
		"countrycodes": {"at"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("nominatim request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("nominatim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Coordinates{}, fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return models.Coordinates{}, fmt.Errorf("nominatim decode: %w", err)
	}
	if len(results) == 0 {
		return models.Coordinates{}, ErrUnresolved
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("nominatim lat: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("nominatim lon: %w", err)
	}
	return models.NewCoordinates(lat, lon)
}
