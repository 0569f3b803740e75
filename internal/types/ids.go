// README: Identifier, coordinate and role value objects shared by every module.
package types

import "fmt"

// ID is an opaque backend identifier (trip, user, driver).
type ID string

func (id ID) String() string { return string(id) }

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Coordinates returns the point in [lng, lat] order.
func (p Point) Coordinates() []float64 {
	return []float64{p.Lng, p.Lat}
}

// PointFromCoordinates accepts a [lng, lat] pair.
func PointFromCoordinates(c []float64) (Point, error) {
	if len(c) != 2 {
		return Point{}, fmt.Errorf("coordinates: want 2 values, got %d", len(c))
	}
	return Point{Lat: c[1], Lng: c[0]}, nil
}

func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePassenger, RoleDriver:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}
