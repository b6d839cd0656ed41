package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immo_scrooper/models"
)

type fakeSpatial struct {
	byRadius map[int][]Place
	err      error
	calls    []AmenityQuery
}

func (f *fakeSpatial) Around(_ context.Context, q AmenityQuery) ([]Place, error) {
	f.calls = append(f.calls, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.byRadius[q.RadiusMeters], nil
}

type fakeGeocoder struct {
	coords models.Coordinates
	err    error
}

func (f fakeGeocoder) Geocode(context.Context, string) (models.Coordinates, error) {
	return f.coords, f.err
}

func newTestResolver(t *testing.T, spatial SpatialQuerier, geocoder Geocoder) *Resolver {
	t.Helper()
	r, err := NewResolver(spatial, geocoder, time.Second)
	require.NoError(t, err)
	return r
}

func TestHaversine_KnownDistance(t *testing.T) {
	stephansplatz := models.MustCoordinates(48.2082, 16.3738)
	karlsplatz := models.MustCoordinates(48.2019, 16.3695)

	d := Haversine(stephansplatz, karlsplatz)
	assert.InDelta(t, 771, d, 5)
	assert.Equal(t, 0.0, Haversine(karlsplatz, karlsplatz))
}

func TestWalkingMinutes(t *testing.T) {
	assert.Equal(t, 10, WalkingMinutes(800, models.TierLiveQuery))
	assert.Equal(t, 10, WalkingMinutes(800, models.TierBroadQuery))
	assert.Equal(t, 11, WalkingMinutes(800, models.TierHubHeuristic))
	assert.Equal(t, 1, WalkingMinutes(100, models.TierDistrictTable))
}

func TestNearest_LiveTierWins(t *testing.T) {
	spatial := &fakeSpatial{byRadius: map[int][]Place{
		2000: {
			{Name: "Far", Coords: models.MustCoordinates(48.2150, 16.3500)},
			{Name: "Zieglergasse", Coords: models.MustCoordinates(48.1966, 16.3462)},
		},
	}}
	r := newTestResolver(t, spatial, nil)

	res := r.Nearest(context.Background(), models.CategoryTransit, models.MustCoordinates(48.1975, 16.3470))

	assert.Equal(t, models.TierLiveQuery, res.Tier)
	assert.Equal(t, "Zieglergasse", res.Name)
	assert.Equal(t, int(math.Round(res.DistanceMeters/80)), res.WalkingMinutes)
	require.Len(t, spatial.calls, 1)
}

func TestNearest_FallsBackToDistrictTable(t *testing.T) {
	spatial := &fakeSpatial{byRadius: map[int][]Place{}}
	r := newTestResolver(t, spatial, nil)

	coords := models.MustCoordinates(48.2030, 16.3480)
	res := r.NearestInDistrict(context.Background(), models.CategoryTransit, coords, "1070")

	assert.Equal(t, models.TierDistrictTable, res.Tier)
	assert.Equal(t, "Neubaugasse", res.Name)
	assert.Equal(t, WalkingMinutes(res.DistanceMeters, models.TierDistrictTable), res.WalkingMinutes)
	require.Len(t, spatial.calls, 1, "broad query must not run once the table answered")
}

func TestNearest_LiveErrorFallsThrough(t *testing.T) {
	spatial := &fakeSpatial{err: errors.New("overpass timeout")}
	r := newTestResolver(t, spatial, nil)

	res := r.NearestInDistrict(context.Background(), models.CategorySchool, models.MustCoordinates(48.2033, 16.3432), "1070")

	assert.Equal(t, models.TierDistrictTable, res.Tier)
	assert.Equal(t, "GRG 7 Kandlgasse", res.Name)
}

func TestNearest_BroadTierFiltersByKeyword(t *testing.T) {
	spatial := &fakeSpatial{byRadius: map[int][]Place{
		5000: {
			{Name: "Bahnhof Nord", Kind: "station train", Coords: models.MustCoordinates(48.3000, 16.5000)},
			{Name: "Aspernstraße", Kind: "subway station", Coords: models.MustCoordinates(48.3010, 16.5010)},
			{Name: "U2 Seestadt", Kind: "station", Coords: models.MustCoordinates(48.3300, 16.6000)},
		},
	}}
	r := newTestResolver(t, spatial, nil)

	// outside every district table
	res := r.NearestInDistrict(context.Background(), models.CategoryTransit, models.MustCoordinates(48.3000, 16.5000), "")

	assert.Equal(t, models.TierBroadQuery, res.Tier)
	assert.Equal(t, "Aspernstraße", res.Name)
}

func TestNearest_HubHeuristicWhenOffline(t *testing.T) {
	r := newTestResolver(t, nil, nil)

	res := r.NearestInDistrict(context.Background(), models.CategoryTransit, models.MustCoordinates(48.2085, 16.3740), "")

	assert.Equal(t, models.TierHubHeuristic, res.Tier)
	assert.Equal(t, "Stephansplatz", res.Name)
	assert.Equal(t, WalkingMinutes(res.DistanceMeters, models.TierHubHeuristic), res.WalkingMinutes)
}

func TestNearestFromAddress_CentroidFallback(t *testing.T) {
	r := newTestResolver(t, nil, fakeGeocoder{err: ErrUnresolved})

	res, err := r.NearestFromAddress(context.Background(), models.CategoryTransit, "Unbekannte Gasse 1", "1070")
	require.NoError(t, err)
	assert.Equal(t, models.TierDistrictTable, res.Tier)

	_, err = r.NearestFromAddress(context.Background(), models.CategoryTransit, "Unbekannte Gasse 1", "")
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestDistrictFromCoordinates(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     string
	}{
		{48.2150, 16.3650, "1010"},
		{48.2150, 16.3800, "1020"},
		{48.2000, 16.3800, "1030"},
		{48.2000, 16.3600, "1040"},
		{48.2150, 16.3450, "1070"},
		{48.2600, 16.4100, "1210"},
	}
	for _, tc := range cases {
		got, ok := DistrictFromCoordinates(models.MustCoordinates(tc.lat, tc.lon))
		assert.True(t, ok, "%v,%v", tc.lat, tc.lon)
		assert.Equal(t, tc.want, got, "%v,%v", tc.lat, tc.lon)
	}
	_, ok := DistrictFromCoordinates(models.MustCoordinates(47.0707, 15.4395))
	assert.False(t, ok, "Graz is not in Vienna")
}

func TestOverpassClient_Around(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		query = form.Get("data")
		fmt.Fprint(w, `{"elements":[
			{"type":"node","lat":48.2084,"lon":16.3720,"tags":{"name":"Stephansplatz","station":"subway"}},
			{"type":"way","center":{"lat":48.2117,"lon":16.3642},"tags":{"name":"Schottengymnasium","amenity":"school"}},
			{"type":"relation","tags":{"name":"no geometry"}}
		]}`)
	}))
	defer srv.Close()

	client := NewOverpassClient(srv.URL, srv.Client())
	places, err := client.Around(context.Background(), AmenityQuery{
		Category:     models.CategoryTransit,
		Center:       models.MustCoordinates(48.2082, 16.3738),
		RadiusMeters: 2000,
	})
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Stephansplatz", places[0].Name)
	assert.Equal(t, "subway", places[0].Kind)
	assert.InDelta(t, 48.2117, places[1].Coords.Lat(), 1e-9)
	assert.True(t, strings.Contains(query, `"railway"="subway_entrance"`))
	assert.True(t, strings.Contains(query, "around:2000"))
}

func TestOverpassClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOverpassClient(srv.URL, srv.Client()).Around(context.Background(), AmenityQuery{
		Category: models.CategorySchool, Center: models.MustCoordinates(48.2, 16.37), RadiusMeters: 2000,
	})
	assert.Error(t, err)
}

func TestNominatimClient_Geocode(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `[{"lat":"48.2030","lon":"16.3480"}]`)
	}))
	defer srv.Close()

	coords, err := NewNominatimClient(srv.URL, srv.Client()).Geocode(context.Background(), "Zieglergasse 14")
	require.NoError(t, err)
	assert.InDelta(t, 48.2030, coords.Lat(), 1e-9)
	assert.Equal(t, "Zieglergasse 14, Wien, Austria", gotQuery.Get("q"))
	assert.Equal(t, "at", gotQuery.Get("countrycodes"))
	assert.Equal(t, "1", gotQuery.Get("limit"))
}

func TestNominatimClient_NoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	_, err := NewNominatimClient(srv.URL, srv.Client()).Geocode(context.Background(), "1070 Wien")
	assert.ErrorIs(t, err, ErrUnresolved)
}
