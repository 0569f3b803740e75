// README: Driving estimate from Google Directions, used when the backend route oracle is unavailable.
package maps

import (
	"context"
	"fmt"

	gmaps "googlemaps.github.io/maps"

	"ridesync/internal/types"
)

type directionsAPI interface {
	Directions(ctx context.Context, r *gmaps.DirectionsRequest) ([]gmaps.Route, []gmaps.GeocodedWaypoint, error)
}

// RouteService handles interactions with Google Directions.
type RouteService struct {
	api directionsAPI
}

func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := gmaps.NewClient(gmaps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{api: client}, nil
}

type Estimate struct {
	Path            string
	DistanceMeters  float64
	DurationSeconds float64
}

// DrivingEstimate returns the first route's encoded polyline, distance and duration.
func (s *RouteService) DrivingEstimate(ctx context.Context, origin, destination types.Point) (Estimate, error) {
	r := &gmaps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", destination.Lat, destination.Lng),
		Mode:        gmaps.TravelModeDriving,
		Region:      "hk",
	}
	routes, _, err := s.api.Directions(ctx, r)
	if err != nil {
		return Estimate{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Estimate{}, fmt.Errorf("no route found")
	}
	est := Estimate{Path: routes[0].OverviewPolyline.Points}
	for _, leg := range routes[0].Legs {
		est.DistanceMeters += float64(leg.Distance.Meters)
		est.DurationSeconds += leg.Duration.Seconds()
	}
	return est, nil
}
