// README: Realtime frame format and event names.
package realtime

import (
	"encoding/json"
	"fmt"

	"ridesync/internal/types"
)

const (
	EventJoinDriverRoom     = "join_driver_room"
	EventJoinTrip           = "join_trip"
	EventTripStatusUpdate   = "trip_status_update"
	EventInTripStatusUpdate = "in_trip_status_update"
)

// Message is one JSON text frame.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is an inbound status notification.
type Event struct {
	Type    string
	Message string
	// Status is set only on trip-scoped events.
	Status string
}

type ScopeKind string

const (
	ScopeRoleRoom ScopeKind = "role_room"
	ScopeTrip     ScopeKind = "trip"
)

// Scope names what a channel subscribes to.
type Scope struct {
	Kind   ScopeKind
	TripID types.ID
}

func RoleRoom() Scope { return Scope{Kind: ScopeRoleRoom} }

func Trip(id types.ID) Scope { return Scope{Kind: ScopeTrip, TripID: id} }

func (s Scope) String() string {
	if s.Kind == ScopeTrip {
		return "trip:" + string(s.TripID)
	}
	return string(s.Kind)
}

func (s Scope) joinFrame() (Message, error) {
	switch s.Kind {
	case ScopeRoleRoom:
		return Message{Type: EventJoinDriverRoom}, nil
	case ScopeTrip:
		if s.TripID == "" {
			return Message{}, fmt.Errorf("realtime: trip scope without trip id")
		}
		data, _ := json.Marshal(map[string]string{"tripId": string(s.TripID)})
		return Message{Type: EventJoinTrip, Data: data}, nil
	}
	return Message{}, fmt.Errorf("realtime: unknown scope %q", s.Kind)
}

// accepts reports whether an inbound event type belongs to this scope.
func (s Scope) accepts(eventType string) bool {
	switch s.Kind {
	case ScopeRoleRoom:
		return eventType == EventTripStatusUpdate
	case ScopeTrip:
		return eventType == EventInTripStatusUpdate
	}
	return false
}

func decodeEvent(raw []byte) (Event, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Event{}, err
	}
	ev := Event{Type: m.Type}
	if len(m.Data) > 0 {
		var body struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		}
		if err := json.Unmarshal(m.Data, &body); err != nil {
			return Event{}, fmt.Errorf("event %s: %w", m.Type, err)
		}
		ev.Message = body.Message
		ev.Status = body.Status
	}
	return ev, nil
}
