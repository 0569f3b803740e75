// README: Transition table, reconciliation and role view tests.
package trip

import (
	"encoding/json"
	"reflect"
	"sort"
	"testing"

	"ridesync/internal/types"
)

// TestCanTransition verifies the status flow without any backend.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy path
		{StatusSeekingDriver, StatusAccepted, true},
		{StatusAccepted, StatusEnRouteToPickup, true},
		{StatusEnRouteToPickup, StatusArrivedAtPickup, true},
		{StatusArrivedAtPickup, StatusInProgress, true},
		{StatusInProgress, StatusArrived, true},
		{StatusArrived, StatusCompleted, true},
		// cancel from every non-terminal status
		{StatusSeekingDriver, StatusCancelled, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusEnRouteToPickup, StatusCancelled, true},
		{StatusArrivedAtPickup, StatusCancelled, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusArrived, StatusCancelled, true},
		// terminal statuses have no outgoing transitions
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusAccepted, false},
		// skipping and regressing
		{StatusSeekingDriver, StatusInProgress, false},
		{StatusInProgress, StatusAccepted, false},
		{StatusAccepted, StatusAccepted, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want Status
		ok   bool
	}{
		{"pending", StatusSeekingDriver, true},
		{"seeking_driver", StatusSeekingDriver, true},
		{" Accepted ", StatusAccepted, true},
		{"arrived", StatusArrived, true},
		{"teleported", Status("teleported"), false},
		{"", Status(""), false},
	}
	for _, tc := range cases {
		got, ok := ParseStatus(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseStatus(%q) = (%s, %v), want (%s, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestReconcilePush(t *testing.T) {
	cases := []struct {
		current, pushed Status
		want            Decision
	}{
		{StatusAccepted, StatusAccepted, Ignore},
		{StatusAccepted, StatusEnRouteToPickup, Apply},
		{StatusAccepted, StatusInProgress, Apply},
		{StatusInProgress, StatusCancelled, Apply},
		{StatusArrived, StatusCompleted, Apply},
		{StatusInProgress, StatusAccepted, Refetch},
		{StatusCancelled, StatusInProgress, Ignore},
		{StatusCompleted, StatusCancelled, Ignore},
		{StatusAccepted, Status("bogus"), Ignore},
	}
	for _, tc := range cases {
		if got := ReconcilePush(tc.current, tc.pushed); got != tc.want {
			t.Errorf("ReconcilePush(%s, %s) = %v, want %v", tc.current, tc.pushed, got, tc.want)
		}
	}
}

// TestReconcilePushIdempotent applies every status twice along valid paths.
func TestReconcilePushIdempotent(t *testing.T) {
	path := []Status{StatusAccepted, StatusEnRouteToPickup, StatusArrivedAtPickup, StatusInProgress, StatusArrived, StatusCompleted}
	apply := func(cur Status, events []Status) Status {
		for _, ev := range events {
			if ReconcilePush(cur, ev) == Apply {
				cur = ev
			}
		}
		return cur
	}
	for i := range path {
		once := apply(StatusSeekingDriver, path[:i+1])
		var doubled []Status
		for _, s := range path[:i+1] {
			doubled = append(doubled, s, s)
		}
		twice := apply(StatusSeekingDriver, doubled)
		if once != twice {
			t.Fatalf("prefix %d: once=%s twice=%s", i, once, twice)
		}
	}
}

func TestDriverStageOf(t *testing.T) {
	if DriverStageOf(StatusAccepted) != DriverStage(StatusEnRouteToPickup) {
		t.Fatalf("accepted should map to en_route_to_pickup for drivers")
	}
	if DriverStageOf(StatusSeekingDriver) != StageRequestReceived {
		t.Fatalf("seeking_driver should map to request_received")
	}
	if DriverStageOf(StatusInProgress) != DriverStage(StatusInProgress) {
		t.Fatalf("in_progress should map 1:1")
	}
}

func TestDriverDone(t *testing.T) {
	for _, s := range []Status{StatusArrived, StatusCompleted, StatusCancelled} {
		if !DriverDone(s) {
			t.Errorf("DriverDone(%s) = false, want true", s)
		}
	}
	for _, s := range []Status{StatusAccepted, StatusEnRouteToPickup, StatusInProgress} {
		if DriverDone(s) {
			t.Errorf("DriverDone(%s) = true, want false", s)
		}
	}
}

func TestPassengerText(t *testing.T) {
	cases := map[Status]string{
		StatusAccepted:        "Driver assigned",
		StatusEnRouteToPickup: "Driver on the way",
		StatusArrivedAtPickup: "Driver has arrived",
		StatusInProgress:      "En route to destination",
		StatusArrived:         "Driver has arrived",
		StatusCompleted:       "Ride completed",
		Status("weird"):       "Processing",
	}
	for s, want := range cases {
		if got := PassengerText(s); got != want {
			t.Errorf("PassengerText(%s) = %q, want %q", s, got, want)
		}
	}
}

func TestCloneDoesNotShareState(t *testing.T) {
	orig := Trip{
		ID:     "t1",
		Driver: &Driver{Name: "Ann"},
		Tolls:  []LineItem{{Name: "Tai Lam Tunnel", Price: 43}},
	}
	cp := orig.Clone()
	cp.Driver.Name = "Bob"
	cp.Tolls[0].Price = 0
	if orig.Driver.Name != "Ann" || orig.Tolls[0].Price != 43 {
		t.Fatalf("clone mutated original: %+v", orig)
	}
	if SumItems(orig.Tolls) != 43 {
		t.Fatalf("expected toll sum 43")
	}
}

func TestTripJSONIsSnakeCase(t *testing.T) {
	in := Trip{
		ID:             "t1",
		Status:         StatusAccepted,
		Passenger:      Passenger{ID: "p1", Name: "Ann", Rating: 4.8},
		Driver:         &Driver{ID: "d1", Vehicle: Vehicle{Type: "standard", PlateNumber: "AB1234"}},
		Pickup:         Place{Point: types.Point{Lat: 22.44, Lng: 114.02}, Address: "Yuen Long"},
		EstimatedPrice: 443,
		Tolls:          []LineItem{{Name: "Tai Lam Tunnel", Price: 43}},
		TollSum:        43,
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := []string{
		"distance_meters", "driver", "dropoff", "duration_seconds", "estimated_price", "extras", "id",
		"passenger", "pickup", "route_path", "status", "toll_sum", "tolls", "vehicle_type",
	}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	driver := raw["driver"].(map[string]any)
	if driver["vehicle"].(map[string]any)["plate_number"] != "AB1234" {
		t.Fatalf("nested vehicle not snake_case: %v", driver)
	}
	pickup := raw["pickup"].(map[string]any)
	if pickup["point"].(map[string]any)["lat"] != 22.44 {
		t.Fatalf("point not snake_case: %v", pickup)
	}

	var out Trip
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Driver == nil || out.Driver.Vehicle.PlateNumber != "AB1234" || out.Tolls[0].Price != 43 {
		t.Fatalf("decoded trip lost fields: %+v", out)
	}

	b, err = json.Marshal(Trip{ID: "t2", Status: StatusSeekingDriver})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var bare map[string]any
	if err := json.Unmarshal(b, &bare); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := bare["driver"]; ok {
		t.Fatalf("unassigned driver must be omitted")
	}
}
