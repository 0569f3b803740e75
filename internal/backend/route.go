// README: Route and toll oracle (POST /api/calculate-route).
package backend

import (
	"context"
	"fmt"
	"net/http"

	"ridesync/internal/modules/trip"
	"ridesync/internal/types"
)

type RouteRequest struct {
	Origin      types.Point
	Destination types.Point
	// Tunnels are the preferred tunnel names; empty means no preference.
	Tunnels   []string
	Direction string
}

type RouteQuote struct {
	Path            string
	DistanceMeters  float64
	DurationSeconds float64
	Tunnels         []trip.LineItem
	TollSum         int64
}

type latLngDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type tunnelPrefDTO struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

func (c *Client) CalculateRoute(ctx context.Context, req RouteRequest) (RouteQuote, error) {
	prefs := make([]tunnelPrefDTO, 0, len(req.Tunnels))
	for _, name := range req.Tunnels {
		// The oracle prices tunnels itself.
		prefs = append(prefs, tunnelPrefDTO{Name: name, Price: "0"})
	}
	body := map[string]any{
		"origin":      latLngDTO{Lat: req.Origin.Lat, Lng: req.Origin.Lng},
		"destination": latLngDTO{Lat: req.Destination.Lat, Lng: req.Destination.Lng},
		"tunnels":     prefs,
		"directions":  req.Direction,
	}
	var resp struct {
		Path          flexString    `json:"path"`
		TotalDistance *flexNumber   `json:"totalDistance"`
		TotalDuration flexNumber    `json:"totalDuration"`
		Tunnel        []lineItemDTO `json:"tunnel"`
		TunnelFeeSum  flexNumber    `json:"tunnelFeeSum"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/calculate-route", true, body, &resp); err != nil {
		return RouteQuote{}, err
	}
	if resp.TotalDistance == nil {
		return RouteQuote{}, fmt.Errorf("%w: route without totalDistance", ErrMalformed)
	}
	q := RouteQuote{
		Path:            string(resp.Path),
		DistanceMeters:  float64(*resp.TotalDistance),
		DurationSeconds: float64(resp.TotalDuration),
		Tunnels:         itemsFromDTO(resp.Tunnel),
		TollSum:         types.RoundAmount(float64(resp.TunnelFeeSum)),
	}
	if q.TollSum == 0 {
		q.TollSum = trip.SumItems(q.Tunnels)
	}
	return q, nil
}
