// README: Trip endpoints: available offers, fetch, history, create, status and partial updates.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"ridesync/internal/modules/trip"
	"ridesync/internal/types"
)

// AvailableTrips returns the current offer set. Entries the backend sends without
// an id are dropped.
func (c *Client) AvailableTrips(ctx context.Context) ([]trip.Trip, error) {
	var resp struct {
		Trips *[]tripDTO `json:"trips"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/trips/available", true, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Trips == nil {
		return nil, fmt.Errorf("%w: available trips without trips field", ErrMalformed)
	}
	out := make([]trip.Trip, 0, len(*resp.Trips))
	for i := range *resp.Trips {
		t, err := (*resp.Trips)[i].toTrip(trip.StatusSeekingDriver)
		if err != nil {
			c.log.WithError(err).Warn("dropping malformed offer")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) GetTrip(ctx context.Context, id types.ID) (trip.Trip, error) {
	var resp struct {
		Trip *tripDTO `json:"trip"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/trips/"+url.PathEscape(string(id)), true, nil, &resp); err != nil {
		return trip.Trip{}, err
	}
	if resp.Trip == nil {
		return trip.Trip{}, fmt.Errorf("%w: trip %s: missing trip field", ErrMalformed, id)
	}
	return resp.Trip.toTrip("")
}

func (c *Client) History(ctx context.Context) ([]trip.Trip, error) {
	var resp []tripDTO
	if err := c.do(ctx, http.MethodGet, "/api/trips/history", true, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]trip.Trip, 0, len(resp))
	for i := range resp {
		t, err := resp[i].toTrip(trip.StatusCompleted)
		if err != nil {
			c.log.WithError(err).Warn("dropping malformed history entry")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type CreateTripRequest struct {
	PassengerID       types.ID
	Pickup            trip.Place
	Dropoff           trip.Place
	VehicleType       string
	EstimatedPrice    int64
	EstimatedDuration float64
	DistanceMeters    float64
	RoutePath         string
	Tolls             []trip.LineItem
	Extras            []trip.LineItem
}

type createTripBody struct {
	Passenger         string        `json:"passenger"`
	PickupLocation    geoPointDTO   `json:"pickupLocation"`
	DropoffLocation   geoPointDTO   `json:"dropoffLocation"`
	VehicleType       string        `json:"vehicleType"`
	EstimatedPrice    int64         `json:"estimatedPrice"`
	EstimatedDuration float64       `json:"estimatedDuration"`
	Distance          float64       `json:"distance"`
	Status            string        `json:"status"`
	PaymentStatus     string        `json:"paymentStatus"`
	RoutePath         string        `json:"routePath"`
	SelectedTunnels   []lineItemDTO `json:"selectedTunnels"`
	ExtraSelections   []lineItemDTO `json:"extraSelections"`
}

// CreateTrip books a trip. The created trip starts out seeking a driver.
func (c *Client) CreateTrip(ctx context.Context, req CreateTripRequest) (trip.Trip, error) {
	body := createTripBody{
		Passenger:         string(req.PassengerID),
		PickupLocation:    placeToDTO(req.Pickup),
		DropoffLocation:   placeToDTO(req.Dropoff),
		VehicleType:       req.VehicleType,
		EstimatedPrice:    req.EstimatedPrice,
		EstimatedDuration: req.EstimatedDuration,
		Distance:          req.DistanceMeters,
		Status:            "pending",
		PaymentStatus:     "pending",
		RoutePath:         req.RoutePath,
		SelectedTunnels:   itemsToDTO(req.Tolls),
		ExtraSelections:   itemsToDTO(req.Extras),
	}
	var resp struct {
		Trip *tripDTO `json:"trip"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/trips", true, body, &resp); err != nil {
		return trip.Trip{}, err
	}
	if resp.Trip == nil {
		return trip.Trip{}, fmt.Errorf("%w: create trip: missing trip field", ErrMalformed)
	}
	created, err := resp.Trip.toTrip(trip.StatusSeekingDriver)
	if err != nil {
		return trip.Trip{}, err
	}
	// The response may echo only the id; keep what was booked.
	if created.Pickup.Address == "" && created.Pickup.Point.IsZero() {
		created.Pickup = req.Pickup
		created.Dropoff = req.Dropoff
	}
	if created.RoutePath == "" {
		created.RoutePath = req.RoutePath
	}
	if created.DistanceMeters == 0 {
		created.DistanceMeters = req.DistanceMeters
	}
	if created.DurationSeconds == 0 {
		created.DurationSeconds = req.EstimatedDuration
	}
	if created.EstimatedPrice == 0 {
		created.EstimatedPrice = req.EstimatedPrice
	}
	if created.VehicleType == "" {
		created.VehicleType = req.VehicleType
	}
	if len(created.Tolls) == 0 {
		created.Tolls = append([]trip.LineItem(nil), req.Tolls...)
		created.TollSum = trip.SumItems(req.Tolls)
	}
	if len(created.Extras) == 0 {
		created.Extras = append([]trip.LineItem(nil), req.Extras...)
	}
	return created, nil
}

// UpdateStatus drives one lifecycle transition on the backend.
func (c *Client) UpdateStatus(ctx context.Context, id types.ID, status trip.Status) error {
	body := map[string]string{"status": string(status)}
	return c.do(ctx, http.MethodPatch, "/api/trips/"+url.PathEscape(string(id))+"/status", true, body, nil)
}

type TripPatch struct {
	SelectedTunnels []trip.LineItem
}

func (c *Client) PatchTrip(ctx context.Context, id types.ID, p TripPatch) error {
	body := map[string]any{"selectedTunnels": itemsToDTO(p.SelectedTunnels)}
	return c.do(ctx, http.MethodPatch, "/api/trips/"+url.PathEscape(string(id)), true, body, nil)
}
