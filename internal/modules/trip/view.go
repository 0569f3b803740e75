// README: Role-specific projections of the canonical status.
package trip

// DriverStage is the driver-observed state. It adds two pre-assignment stages.
type DriverStage string

const (
	StageNone            DriverStage = "none"
	StageRequestReceived DriverStage = "request_received"
)

// DriverStageOf maps a backend status to what the driver sees. Acceptance
// implies the driver is already heading to the pickup.
func DriverStageOf(s Status) DriverStage {
	switch s {
	case StatusAccepted:
		return DriverStage(StatusEnRouteToPickup)
	case StatusSeekingDriver:
		return StageRequestReceived
	}
	return DriverStage(s)
}

// DriverDone reports whether the driver's part of the trip is over. The driver
// is released at the destination; completion is the passenger's confirmation.
func DriverDone(s Status) bool {
	return IsTerminal(s) || s == StatusArrived
}

// PassengerText is the status line shown to the passenger.
func PassengerText(s Status) string {
	switch s {
	case StatusAccepted:
		return "Driver assigned"
	case StatusEnRouteToPickup:
		return "Driver on the way"
	case StatusArrivedAtPickup:
		return "Driver has arrived"
	case StatusInProgress:
		return "En route to destination"
	case StatusArrived:
		return "Driver has arrived"
	case StatusCompleted:
		return "Ride completed"
	case StatusSeekingDriver:
		return "Looking for a driver"
	}
	return "Processing"
}

// Progress is a coarse completion percentage for display.
func Progress(s Status) int {
	r := Rank(s)
	if r < 0 {
		return 0
	}
	if s == StatusCancelled {
		return 0
	}
	return r * 100 / Rank(StatusCompleted)
}
