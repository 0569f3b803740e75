// README: Trip aggregate and canonical status definitions shared by both roles.
package trip

import (
	"ridesync/internal/types"
)

type Status string

const (
	StatusSeekingDriver   Status = "seeking_driver"
	StatusAccepted        Status = "accepted"
	StatusEnRouteToPickup Status = "en_route_to_pickup"
	StatusArrivedAtPickup Status = "arrived_at_pickup"
	StatusInProgress      Status = "in_progress"
	StatusArrived         Status = "arrived"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// Backend aliases for StatusSeekingDriver.
const (
	statusPending   = "pending"
	statusRequested = "requested"
)

type Place struct {
	Point   types.Point `json:"point"`
	Address string      `json:"address"`
}

type LineItem struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type Vehicle struct {
	Type        string `json:"type"`
	PlateNumber string `json:"plate_number"`
}

type Driver struct {
	ID      types.ID `json:"id"`
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Vehicle Vehicle  `json:"vehicle"`
}

type Passenger struct {
	ID     types.ID `json:"id"`
	Name   string   `json:"name"`
	Rating float64  `json:"rating"`
}

type Trip struct {
	ID              types.ID   `json:"id"`
	Status          Status     `json:"status"`
	Passenger       Passenger  `json:"passenger"`
	Driver          *Driver    `json:"driver,omitempty"`
	Pickup          Place      `json:"pickup"`
	Dropoff         Place      `json:"dropoff"`
	RoutePath       string     `json:"route_path"`
	DistanceMeters  float64    `json:"distance_meters"`
	DurationSeconds float64    `json:"duration_seconds"`
	VehicleType     string     `json:"vehicle_type"`
	EstimatedPrice  int64      `json:"estimated_price"`
	Extras          []LineItem `json:"extras"`
	Tolls           []LineItem `json:"tolls"`
	TollSum         int64      `json:"toll_sum"`
}

// Clone returns a deep copy so snapshots never share slices with live state.
func (t Trip) Clone() Trip {
	out := t
	if t.Driver != nil {
		d := *t.Driver
		out.Driver = &d
	}
	out.Extras = append([]LineItem(nil), t.Extras...)
	out.Tolls = append([]LineItem(nil), t.Tolls...)
	return out
}

func SumItems(items []LineItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Price
	}
	return total
}
