package maps

import (
	"context"
	"errors"
	"testing"
	"time"

	gmaps "googlemaps.github.io/maps"

	"ridesync/internal/types"
)

type fakeGeocode struct {
	results []gmaps.GeocodingResult
	err     error
	last    *gmaps.GeocodingRequest
}

func (f *fakeGeocode) Geocode(_ context.Context, r *gmaps.GeocodingRequest) ([]gmaps.GeocodingResult, error) {
	f.last = r
	return f.results, f.err
}

func result(addr string, lat, lng float64, comps ...gmaps.AddressComponent) gmaps.GeocodingResult {
	var r gmaps.GeocodingResult
	r.FormattedAddress = addr
	r.Geometry.Location = gmaps.LatLng{Lat: lat, Lng: lng}
	r.AddressComponents = comps
	return r
}

func TestSearchFiltersOutsideServiceArea(t *testing.T) {
	api := &fakeGeocode{results: []gmaps.GeocodingResult{
		result("元朗 Yuen Long", 22.445, 114.022,
			gmaps.AddressComponent{LongName: "元朗", Types: []string{"neighborhood"}},
			gmaps.AddressComponent{LongName: "新界", Types: []string{"administrative_area_level_1"}},
			gmaps.AddressComponent{LongName: "Hong Kong", Types: []string{"country"}}),
		result("Shenzhen", 22.54, 114.06),
		result("Taipei", 25.03, 121.56),
	}}
	g := newGeocoder(api)

	got, err := g.Search(context.Background(), " 元朗 ")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 places inside the box, got %+v", got)
	}
	if got[0].District != "元朗 新界" {
		t.Fatalf("unexpected district %q", got[0].District)
	}
	if api.last.Bounds == nil || api.last.Region != "hk" || api.last.Address != "元朗" {
		t.Fatalf("unexpected request: %+v", api.last)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	api := &fakeGeocode{}
	got, err := newGeocoder(api).Search(context.Background(), "  ")
	if err != nil || got != nil || api.last != nil {
		t.Fatalf("expected no call for empty query, got %v %v", got, err)
	}
}

func TestReverse(t *testing.T) {
	api := &fakeGeocode{results: []gmaps.GeocodingResult{
		result("沙田正街", 22.38, 114.19, gmaps.AddressComponent{LongName: "沙田", Types: []string{"locality"}}),
	}}
	pt := types.Point{Lat: 22.381, Lng: 114.188}
	p, err := newGeocoder(api).Reverse(context.Background(), pt)
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if p.District != "沙田" || p.Point != pt {
		t.Fatalf("unexpected place: %+v", p)
	}

	if _, err := newGeocoder(&fakeGeocode{}).Reverse(context.Background(), pt); !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
}

type fakeDirections struct {
	routes []gmaps.Route
}

func (f *fakeDirections) Directions(context.Context, *gmaps.DirectionsRequest) ([]gmaps.Route, []gmaps.GeocodedWaypoint, error) {
	return f.routes, nil, nil
}

func TestDrivingEstimateSumsLegs(t *testing.T) {
	route := gmaps.Route{OverviewPolyline: gmaps.Polyline{Points: "enc"}}
	route.Legs = []*gmaps.Leg{
		{Distance: gmaps.Distance{Meters: 1000}, Duration: 2 * time.Minute},
		{Distance: gmaps.Distance{Meters: 500}, Duration: time.Minute},
	}
	s := &RouteService{api: &fakeDirections{routes: []gmaps.Route{route}}}
	est, err := s.DrivingEstimate(context.Background(), types.Point{Lat: 22.3, Lng: 114.1}, types.Point{Lat: 22.4, Lng: 114.2})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if est.Path != "enc" || est.DistanceMeters != 1500 || est.DurationSeconds != 180 {
		t.Fatalf("unexpected estimate: %+v", est)
	}

	s = &RouteService{api: &fakeDirections{}}
	if _, err := s.DrivingEstimate(context.Background(), types.Point{}, types.Point{}); err == nil {
		t.Fatal("expected error without routes")
	}
}
