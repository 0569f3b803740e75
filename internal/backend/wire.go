// README: Backend JSON shapes and their conversion to trip values. Tolerates id/_id and string-or-number fields.
package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"ridesync/internal/modules/trip"
	"ridesync/internal/types"
)

// flexNumber accepts 12, 12.5 or "12.5".
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("number %q: %w", s, err)
		}
		*n = flexNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = flexNumber(v)
	return nil
}

// flexString keeps a JSON string as-is and any other JSON value as its raw text.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

type geoPointDTO struct {
	Type        string    `json:"type,omitempty"`
	Coordinates []float64 `json:"coordinates"`
	Address     string    `json:"address,omitempty"`
}

func placeToDTO(p trip.Place) geoPointDTO {
	return geoPointDTO{Type: "Point", Coordinates: p.Point.Coordinates(), Address: p.Address}
}

func (g *geoPointDTO) toPlace() trip.Place {
	if g == nil {
		return trip.Place{}
	}
	pt, err := types.PointFromCoordinates(g.Coordinates)
	if err != nil {
		pt = types.Point{}
	}
	return trip.Place{Point: pt, Address: g.Address}
}

type lineItemDTO struct {
	Name  string     `json:"name"`
	Price flexNumber `json:"price"`
}

func itemsFromDTO(in []lineItemDTO) []trip.LineItem {
	if len(in) == 0 {
		return nil
	}
	out := make([]trip.LineItem, 0, len(in))
	for _, it := range in {
		out = append(out, trip.LineItem{Name: it.Name, Price: types.RoundAmount(float64(it.Price))})
	}
	return out
}

func itemsToDTO(in []trip.LineItem) []lineItemDTO {
	out := make([]lineItemDTO, 0, len(in))
	for _, it := range in {
		out = append(out, lineItemDTO{Name: it.Name, Price: flexNumber(it.Price)})
	}
	return out
}

func (n flexNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(n))
}

// partyDTO is either an id string or an embedded object.
type partyDTO struct {
	ID      string  `json:"id"`
	MongoID string  `json:"_id"`
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Rating  float64 `json:"rating"`
	Vehicle *struct {
		Type        string `json:"type"`
		PlateNumber string `json:"plateNumber"`
	} `json:"vehicle"`
}

func (p *partyDTO) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &p.ID)
	}
	type plain partyDTO
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = partyDTO(v)
	return nil
}

func (p *partyDTO) id() types.ID {
	if p.ID != "" {
		return types.ID(p.ID)
	}
	return types.ID(p.MongoID)
}

type tripDTO struct {
	ID                string        `json:"id"`
	MongoID           string        `json:"_id"`
	Status            string        `json:"status"`
	Passenger         *partyDTO     `json:"passenger"`
	Driver            *partyDTO     `json:"driver"`
	PickupLocation    *geoPointDTO  `json:"pickupLocation"`
	DropoffLocation   *geoPointDTO  `json:"dropoffLocation"`
	RoutePath         flexString    `json:"routePath"`
	Distance          flexNumber    `json:"distance"`
	EstimatedDuration flexNumber    `json:"estimatedDuration"`
	VehicleType       string        `json:"vehicleType"`
	EstimatedPrice    flexNumber    `json:"estimatedPrice"`
	SelectedTunnels   []lineItemDTO `json:"selectedTunnels"`
	SeletedTunnel     []lineItemDTO `json:"seletedTunnel"`
	ExtraSelections   []lineItemDTO `json:"extraSelections"`
	SeletedOption     []lineItemDTO `json:"seletedOption"`
	TunnelFeeSum      flexNumber    `json:"tunnelFeeSum"`
}

// toTrip converts a backend trip. An empty status becomes defaultStatus; pass ""
// to require one.
func (d *tripDTO) toTrip(defaultStatus trip.Status) (trip.Trip, error) {
	id := d.ID
	if id == "" {
		id = d.MongoID
	}
	if id == "" {
		return trip.Trip{}, fmt.Errorf("%w: trip without id", ErrMalformed)
	}
	status := defaultStatus
	if d.Status != "" {
		s, ok := trip.ParseStatus(d.Status)
		if !ok {
			return trip.Trip{}, fmt.Errorf("%w: trip %s has unknown status %q", ErrMalformed, id, d.Status)
		}
		status = s
	}
	if status == "" {
		return trip.Trip{}, fmt.Errorf("%w: trip %s without status", ErrMalformed, id)
	}

	t := trip.Trip{
		ID:              types.ID(id),
		Status:          status,
		Pickup:          d.PickupLocation.toPlace(),
		Dropoff:         d.DropoffLocation.toPlace(),
		RoutePath:       string(d.RoutePath),
		DistanceMeters:  float64(d.Distance),
		DurationSeconds: float64(d.EstimatedDuration),
		VehicleType:     d.VehicleType,
		EstimatedPrice:  types.RoundAmount(float64(d.EstimatedPrice)),
		Tolls:           itemsFromDTO(d.SelectedTunnels),
		Extras:          itemsFromDTO(d.ExtraSelections),
	}
	if len(t.Tolls) == 0 {
		t.Tolls = itemsFromDTO(d.SeletedTunnel)
	}
	if len(t.Extras) == 0 {
		t.Extras = itemsFromDTO(d.SeletedOption)
	}
	t.TollSum = types.RoundAmount(float64(d.TunnelFeeSum))
	if t.TollSum == 0 {
		t.TollSum = trip.SumItems(t.Tolls)
	}
	if d.Passenger != nil {
		t.Passenger = trip.Passenger{ID: d.Passenger.id(), Name: d.Passenger.Name, Rating: d.Passenger.Rating}
	}
	if d.Driver != nil {
		drv := &trip.Driver{ID: d.Driver.id(), Name: d.Driver.Name, Phone: d.Driver.Phone}
		if d.Driver.Vehicle != nil {
			drv.Vehicle = trip.Vehicle{Type: d.Driver.Vehicle.Type, PlateNumber: d.Driver.Vehicle.PlateNumber}
		}
		t.Driver = drv
	}
	return t, nil
}

type userDTO struct {
	ID       string `json:"id"`
	MongoID  string `json:"_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
	Currency string `json:"currency"`
}
