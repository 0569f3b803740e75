// README: Status transition table, ordering and reconciliation rules.
package trip

import "strings"

// AllowedTransitions represents the ride status flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusSeekingDriver:   {StatusAccepted, StatusCancelled},
	StatusAccepted:        {StatusEnRouteToPickup, StatusCancelled},
	StatusEnRouteToPickup: {StatusArrivedAtPickup, StatusCancelled},
	StatusArrivedAtPickup: {StatusInProgress, StatusCancelled},
	StatusInProgress:      {StatusArrived, StatusCancelled},
	StatusArrived:         {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

var rank = map[Status]int{
	StatusSeekingDriver:   0,
	StatusAccepted:        1,
	StatusEnRouteToPickup: 2,
	StatusArrivedAtPickup: 3,
	StatusInProgress:      4,
	StatusArrived:         5,
	StatusCompleted:       6,
	StatusCancelled:       6,
}

// Rank orders statuses along the lifecycle. Unknown statuses rank -1.
func Rank(s Status) int {
	if r, ok := rank[s]; ok {
		return r
	}
	return -1
}

func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	_, ok := rank[s]
	return ok
}

// ParseStatus normalizes a backend status string.
func ParseStatus(raw string) (Status, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case statusPending, statusRequested:
		return StatusSeekingDriver, true
	}
	s := Status(v)
	return s, s.Valid()
}

// Decision is the outcome of comparing an inbound push with the current status.
type Decision int

const (
	// Ignore: duplicate, or the trip is already terminal.
	Ignore Decision = iota
	// Apply: the push moves the trip forward or terminates it.
	Apply
	// Refetch: the push would move the trip backwards; ask the backend instead.
	Refetch
)

// ReconcilePush decides how a trip-scoped push is applied. Pushes only move state
// forward; a regressing push means events arrived out of order.
func ReconcilePush(current, pushed Status) Decision {
	if !pushed.Valid() || pushed == current || IsTerminal(current) {
		return Ignore
	}
	if IsTerminal(pushed) || Rank(pushed) > Rank(current) {
		return Apply
	}
	return Refetch
}
