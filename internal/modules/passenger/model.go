// README: Passenger modes, quote and snapshot types.
package passenger

import (
	"errors"

	"ridesync/internal/modules/fare"
	"ridesync/internal/modules/trip"
	"ridesync/internal/types"
)

type Mode string

const (
	ModeIdle   Mode = "idle"
	ModeActive Mode = "active"
	// ModeRating follows a confirmed completion until a rating is submitted.
	ModeRating Mode = "rating"
)

var (
	ErrInvalidAction = errors.New("action not allowed in current mode")
	ErrBadRequest    = errors.New("bad request")
	ErrNoQuote       = errors.New("no quote to book")
	ErrBusy          = errors.New("another action is in progress")
	// ErrReset means the session was reset while the request was in flight.
	ErrReset = errors.New("session reset during request")
)

// PlaceInput is a pickup or dropoff chosen by the user. District is looked up
// when empty and a locator is configured.
type PlaceInput struct {
	Point    types.Point `json:"point"`
	Address  string      `json:"address"`
	District string      `json:"district"`
}

type QuoteRequest struct {
	Pickup      PlaceInput      `json:"pickup"`
	Dropoff     PlaceInput      `json:"dropoff"`
	VehicleType string          `json:"vehicle_type"`
	Tunnels     []string        `json:"tunnels"`
	Extras      []trip.LineItem `json:"extras"`
}

type Quote struct {
	Pickup          trip.Place         `json:"pickup"`
	Dropoff         trip.Place         `json:"dropoff"`
	VehicleType     string             `json:"vehicle_type"`
	TunnelGroups    []fare.TunnelGroup `json:"tunnel_groups"`
	Direction       string             `json:"direction"`
	Path            string             `json:"path"`
	DistanceMeters  float64            `json:"distance_meters"`
	DurationSeconds float64            `json:"duration_seconds"`
	Tolls           []trip.LineItem    `json:"tolls"`
	TollSum         int64              `json:"toll_sum"`
	Extras          []trip.LineItem    `json:"extras"`
	Price           types.Money        `json:"price"`
	// Approximate is set when the route came from the maps fallback.
	Approximate bool `json:"approximate"`
}

func (q Quote) clone() Quote {
	out := q
	out.TunnelGroups = append([]fare.TunnelGroup(nil), q.TunnelGroups...)
	out.Tolls = append([]trip.LineItem(nil), q.Tolls...)
	out.Extras = append([]trip.LineItem(nil), q.Extras...)
	return out
}

type Snapshot struct {
	Role       types.Role  `json:"role"`
	Mode       Mode        `json:"mode"`
	Status     trip.Status `json:"status,omitempty"`
	StatusText string      `json:"status_text,omitempty"`
	Progress   int         `json:"progress"`
	Trip       *trip.Trip  `json:"trip,omitempty"`
	Quote      *Quote      `json:"quote,omitempty"`
	CanCancel  bool        `json:"can_cancel"`
	CanConfirm bool        `json:"can_confirm"`
	RatingTrip types.ID    `json:"rating_trip,omitempty"`
	Degraded   bool        `json:"degraded"`
}
