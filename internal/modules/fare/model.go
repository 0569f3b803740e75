// README: Vehicle catalogue and tunnel groups offered when quoting.
package fare

import "ridesync/internal/modules/trip"

type VehicleOption struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	PerKm float64 `json:"per_km"`
}

var Vehicles = []VehicleOption{
	{ID: "standard", Name: "Standard", PerKm: 12.50},
	{ID: "premium", Name: "Premium", PerKm: 18.75},
	{ID: "suv", Name: "SUV", PerKm: 22.30},
	{ID: "electric", Name: "Electric", PerKm: 16.90},
}

func LookupVehicle(id string) (VehicleOption, bool) {
	for _, v := range Vehicles {
		if v.ID == id {
			return v, true
		}
	}
	return VehicleOption{}, false
}

// TunnelGroup is a set of alternative crossings into or out of one district.
type TunnelGroup struct {
	Name     string          `json:"name"`
	Tunnels  []trip.LineItem `json:"tunnels"`
	keywords []string
	// entering and leaving are the direction hints sent to the route oracle.
	entering string
	leaving  string
}

func (g TunnelGroup) matches(district string) bool {
	for _, kw := range g.keywords {
		if kw != "" && containsFold(district, kw) {
			return true
		}
	}
	return false
}

var TunnelGroups = []TunnelGroup{
	{
		Name: "Yuen Long",
		Tunnels: []trip.LineItem{
			{Name: "Tai Lam Tunnel", Price: 43},
			{Name: "Tuen Mun Road", Price: 0},
		},
		keywords: []string{"元朗", "Yuen Long"},
		entering: "in",
		leaving:  "out",
	},
	{
		Name: "Sha Tin",
		Tunnels: []trip.LineItem{
			{Name: "Shing Mun Tunnels", Price: 5},
			{Name: "Lion Rock Tunnel", Price: 8},
			{Name: "Eagle's Nest Tunnel", Price: 8},
			{Name: "Tate's Cairn Tunnel", Price: 24},
			{Name: "Tai Po Road", Price: 0},
		},
		keywords: []string{"沙田", "大埔", "上水", "Sha Tin", "Tai Po", "Sheung Shui"},
		entering: "in",
		leaving:  "out",
	},
	{
		Name: "Hong Kong",
		Tunnels: []trip.LineItem{
			{Name: "Cross-Harbour Tunnel", Price: 50},
			{Name: "Eastern Harbour Crossing", Price: 50},
			{Name: "Western Harbour Tunnel", Price: 50},
		},
		keywords: []string{"香港島", "Hong Kong Island"},
		// Crossings are named from the island's side.
		entering: "out",
		leaving:  "in",
	},
}

// DefaultTunnel means "no preference"; the oracle picks the route.
const DefaultTunnel = "Default"

func LookupTunnel(name string) (trip.LineItem, bool) {
	for _, g := range TunnelGroups {
		for _, t := range g.Tunnels {
			if t.Name == name {
				return t, true
			}
		}
	}
	return trip.LineItem{}, false
}
