// README: Driver modes, snapshot and errors. Every flag the driver view needs is a projection of Mode.
package driver

import (
	"errors"

	"ridesync/internal/modules/trip"
	"ridesync/internal/types"
)

// Mode is the single canonical driver state. Exactly one is active.
type Mode string

const (
	ModeOffline Mode = "offline"
	ModeWaiting Mode = "waiting"
	ModeOffers  Mode = "offers"
	ModeServing Mode = "serving"
)

var (
	ErrInvalidAction    = errors.New("action not allowed in current mode")
	ErrOfferUnavailable = errors.New("offer no longer available")
	ErrBusy             = errors.New("another action is in progress")
	// ErrReset means the session was reset while the request was in flight.
	ErrReset = errors.New("session reset during request")
)

func (m Mode) IsOnline() bool { return m != ModeOffline }

// ShowOnlineToggle is false while a trip is being served.
func (m Mode) ShowOnlineToggle() bool { return m != ModeServing }

type Snapshot struct {
	Role             types.Role       `json:"role"`
	Mode             Mode             `json:"mode"`
	Stage            trip.DriverStage `json:"stage"`
	Online           bool             `json:"online"`
	ShowOnlineToggle bool             `json:"show_online_toggle"`
	Degraded         bool             `json:"degraded"`
	Offers           []trip.Trip      `json:"offers"`
	Selected         types.ID         `json:"selected,omitempty"`
	Trip             *trip.Trip       `json:"trip,omitempty"`
	Progress         int              `json:"progress"`
}
