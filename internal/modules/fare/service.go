// README: Fare estimate and tunnel planning for the passenger quote flow.
package fare

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"ridesync/internal/modules/trip"
	"ridesync/internal/types"
)

var (
	ErrUnknownVehicle = errors.New("unknown vehicle type")
	ErrUnknownTunnel  = errors.New("unknown tunnel")
)

// Estimate is round(perKm * distance / 1000) plus tolls and extras.
func Estimate(vehicleID string, distanceMeters float64, tollSum int64, extras []trip.LineItem) (types.Money, error) {
	v, ok := LookupVehicle(vehicleID)
	if !ok {
		return types.Money{}, fmt.Errorf("%w: %q", ErrUnknownVehicle, vehicleID)
	}
	if distanceMeters < 0 {
		distanceMeters = 0
	}
	amount := types.RoundAmount(v.PerKm*distanceMeters/1000) + tollSum + trip.SumItems(extras)
	return types.HKD(amount), nil
}

// Plan is the tunnel offer for a pickup/dropoff pair.
type Plan struct {
	Groups    []TunnelGroup
	Direction string
}

type TunnelPlanner interface {
	Plan(pickupDistrict, dropoffDistrict string) Plan
}

// DistrictPlanner offers a group when exactly one end of the trip lies in it.
// When several groups apply the last one decides the direction.
type DistrictPlanner struct{}

func (DistrictPlanner) Plan(pickupDistrict, dropoffDistrict string) Plan {
	var p Plan
	if pickupDistrict == "" || dropoffDistrict == "" {
		return p
	}
	for _, g := range TunnelGroups {
		from, to := g.matches(pickupDistrict), g.matches(dropoffDistrict)
		switch {
		case !from && to:
			p.Groups = append(p.Groups, g)
			p.Direction = g.entering
		case from && !to:
			p.Groups = append(p.Groups, g)
			p.Direction = g.leaving
		}
	}
	return p
}

// SelectTunnels resolves chosen tunnel names. DefaultTunnel and blanks are skipped.
func SelectTunnels(names []string) ([]trip.LineItem, error) {
	var out []trip.LineItem
	seen := map[string]bool{}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || n == DefaultTunnel || seen[n] {
			continue
		}
		t, ok := LookupTunnel(n)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTunnel, n)
		}
		seen[n] = true
		out = append(out, t)
	}
	return out, nil
}

func containsFold(s, substr string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
