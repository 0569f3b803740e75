// README: Place search and reverse lookup via Google Maps geocoding, bounded to the service area.
package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gmaps "googlemaps.github.io/maps"

	"ridesync/internal/types"
)

var ErrNoResults = errors.New("no matching places")

// Place is one geocoding suggestion.
type Place struct {
	Address  string      `json:"address"`
	Point    types.Point `json:"point"`
	District string      `json:"district"`
	PlaceID  string      `json:"place_id"`
}

type geocodeAPI interface {
	Geocode(ctx context.Context, r *gmaps.GeocodingRequest) ([]gmaps.GeocodingResult, error)
}

// ServiceArea is the Hong Kong bounding box used to bias results.
var ServiceArea = gmaps.LatLngBounds{
	SouthWest: gmaps.LatLng{Lat: 22.1967, Lng: 113.8342},
	NorthEast: gmaps.LatLng{Lat: 22.5747, Lng: 114.3908},
}

type Geocoder struct {
	api      geocodeAPI
	language string
	limit    int
}

func NewGeocoder(apiKey string) (*Geocoder, error) {
	client, err := gmaps.NewClient(gmaps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return newGeocoder(client), nil
}

func newGeocoder(api geocodeAPI) *Geocoder {
	return &Geocoder{api: api, language: "zh-HK", limit: 5}
}

// Search returns up to five suggestions inside the service area.
func (g *Geocoder) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	bounds := ServiceArea
	results, err := g.api.Geocode(ctx, &gmaps.GeocodingRequest{
		Address:  query,
		Bounds:   &bounds,
		Region:   "hk",
		Language: g.language,
	})
	if err != nil {
		return nil, fmt.Errorf("geocode api error: %w", err)
	}
	var out []Place
	for _, r := range results {
		p := toPlace(r)
		if !inServiceArea(p.Point) {
			continue
		}
		out = append(out, p)
		if len(out) >= g.limit {
			break
		}
	}
	return out, nil
}

// Reverse resolves a point to its best address and district.
func (g *Geocoder) Reverse(ctx context.Context, pt types.Point) (Place, error) {
	results, err := g.api.Geocode(ctx, &gmaps.GeocodingRequest{
		LatLng:   &gmaps.LatLng{Lat: pt.Lat, Lng: pt.Lng},
		Language: g.language,
	})
	if err != nil {
		return Place{}, fmt.Errorf("geocode api error: %w", err)
	}
	if len(results) == 0 {
		return Place{}, ErrNoResults
	}
	p := toPlace(results[0])
	p.Point = pt
	return p, nil
}

func toPlace(r gmaps.GeocodingResult) Place {
	return Place{
		Address:  r.FormattedAddress,
		Point:    types.Point{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		District: district(r.AddressComponents),
		PlaceID:  r.PlaceID,
	}
}

// district joins the area-level component names, most specific first.
func district(components []gmaps.AddressComponent) string {
	wanted := map[string]bool{
		"neighborhood":                true,
		"sublocality":                 true,
		"locality":                    true,
		"administrative_area_level_2": true,
		"administrative_area_level_1": true,
	}
	var parts []string
	for _, c := range components {
		for _, t := range c.Types {
			if wanted[t] {
				parts = append(parts, c.LongName)
				break
			}
		}
	}
	return strings.Join(parts, " ")
}

func inServiceArea(p types.Point) bool {
	return p.Lat >= ServiceArea.SouthWest.Lat && p.Lat <= ServiceArea.NorthEast.Lat &&
		p.Lng >= ServiceArea.SouthWest.Lng && p.Lng <= ServiceArea.NorthEast.Lng
}
