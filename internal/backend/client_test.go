// README: Backend client tests against an httptest server.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ridesync/internal/modules/trip"
	"ridesync/internal/types"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix(), "sub": "u1"}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, time.Second, staticToken(signedToken(t, time.Now().Add(time.Hour))), nil), srv
}

func TestGetTripNormalizesIDAndStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/trips/abc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Errorf("missing bearer token")
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing request id")
		}
		_, _ = io.WriteString(w, `{"trip":{"_id":"abc","status":"pending",
			"pickupLocation":{"type":"Point","coordinates":[114.02,22.44],"address":"Yuen Long"},
			"dropoffLocation":{"coordinates":[114.16,22.28],"address":"Central"},
			"distance":"32000","estimatedDuration":1800,"estimatedPrice":443.4,
			"selectedTunnels":[{"name":"Tai Lam Tunnel","price":"43"}],
			"driver":{"_id":"d1","name":"Ann","phone":"+852 1234"},
			"passenger":"p1"}}`)
	})

	got, err := c.GetTrip(context.Background(), "abc")
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if got.ID != "abc" || got.Status != trip.StatusSeekingDriver {
		t.Fatalf("unexpected id/status: %s %s", got.ID, got.Status)
	}
	if got.Pickup.Point != (types.Point{Lat: 22.44, Lng: 114.02}) || got.Pickup.Address != "Yuen Long" {
		t.Fatalf("unexpected pickup: %+v", got.Pickup)
	}
	if got.DistanceMeters != 32000 || got.EstimatedPrice != 443 || got.TollSum != 43 {
		t.Fatalf("unexpected numbers: %+v", got)
	}
	if got.Driver == nil || got.Driver.ID != "d1" || got.Driver.Name != "Ann" {
		t.Fatalf("unexpected driver: %+v", got.Driver)
	}
	if got.Passenger.ID != "p1" {
		t.Fatalf("expected passenger id from string form, got %+v", got.Passenger)
	}
}

func TestGetTripMalformed(t *testing.T) {
	cases := map[string]string{
		"missing trip":   `{}`,
		"missing id":     `{"trip":{"status":"accepted"}}`,
		"missing status": `{"trip":{"id":"x"}}`,
		"bad status":     `{"trip":{"id":"x","status":"flying"}}`,
		"not json":       `<html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			if _, err := c.GetTrip(context.Background(), "x"); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		code  int
		want  error
		stale bool
	}{
		{http.StatusUnauthorized, ErrUnauthorized, false},
		{http.StatusForbidden, ErrUnauthorized, false},
		{http.StatusNotFound, ErrNotFound, true},
		{http.StatusConflict, ErrConflict, true},
		{http.StatusBadRequest, ErrRejected, true},
		{http.StatusTooManyRequests, ErrTransient, false},
		{http.StatusBadGateway, ErrTransient, false},
	}
	for _, tc := range cases {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
			_, _ = io.WriteString(w, `{"message":"trip already taken"}`)
		})
		err := c.UpdateStatus(context.Background(), "t1", trip.StatusAccepted)
		if !errors.Is(err, tc.want) {
			t.Errorf("code %d: expected %v, got %v", tc.code, tc.want, err)
		}
		if IsStale(err) != tc.stale {
			t.Errorf("code %d: IsStale = %v, want %v", tc.code, IsStale(err), tc.stale)
		}
		var se *StatusError
		if !errors.As(err, &se) || se.Message != "trip already taken" {
			t.Errorf("code %d: expected server message, got %v", tc.code, err)
		}
	}
}

func TestTransportFailureIsTransient(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()
	if _, err := c.AvailableTrips(context.Background()); !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestExpiredTokenSkipsCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()
	c := New(srv.URL, time.Second, staticToken(signedToken(t, time.Now().Add(-time.Minute))), nil)

	err := c.UpdateStatus(context.Background(), "t1", trip.StatusArrived)
	if !errors.Is(err, ErrUnauthorized) || !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired unauthorized error, got %v", err)
	}
	if called {
		t.Fatal("backend must not be called with an expired token")
	}

	c = New(srv.URL, time.Second, staticToken(""), nil)
	if err := c.UpdateStatus(context.Background(), "t1", trip.StatusArrived); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
}

func TestCheckTokenOpaque(t *testing.T) {
	if err := CheckToken("opaque-session-token", time.Now()); err != nil {
		t.Fatalf("opaque tokens are accepted as-is, got %v", err)
	}
	if _, ok := TokenExpiry("opaque"); ok {
		t.Fatal("expected no expiry for opaque token")
	}
}

func TestAvailableTripsDropsMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"trips":[
			{"_id":"a","passenger":{"name":"Pat","rating":4.8},"distance":1200,"estimatedPrice":15,"seletedTunnel":[{"name":"Lion Rock Tunnel","price":8}]},
			{"passenger":{"name":"no id"}},
			{"_id":"b","status":"pending"}]}`)
	})
	got, err := c.AvailableTrips(context.Background())
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected offers: %+v", got)
	}
	if got[0].Status != trip.StatusSeekingDriver || got[0].Passenger.Name != "Pat" || got[0].TollSum != 8 {
		t.Fatalf("unexpected first offer: %+v", got[0])
	}

	c, _ = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[]}`)
	})
	if _, err := c.AvailableTrips(context.Background()); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed without trips field, got %v", err)
	}
}

func TestCreateTripBody(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/trips" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"trip":{"id":"new-1","status":"pending"}}`)
	})
	req := CreateTripRequest{
		PassengerID:    "p1",
		Pickup:         trip.Place{Point: types.Point{Lat: 22.44, Lng: 114.02}, Address: "Yuen Long"},
		Dropoff:        trip.Place{Point: types.Point{Lat: 22.28, Lng: 114.16}, Address: "Central"},
		VehicleType:    "standard",
		EstimatedPrice: 443,
		DistanceMeters: 32000,
		RoutePath:      "encoded",
		Tolls:          []trip.LineItem{{Name: "Tai Lam Tunnel", Price: 43}},
	}
	got, err := c.CreateTrip(context.Background(), req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.ID != "new-1" || got.Status != trip.StatusSeekingDriver {
		t.Fatalf("unexpected created trip: %+v", got)
	}
	if got.Pickup != req.Pickup || got.TollSum != 43 || got.RoutePath != "encoded" {
		t.Fatalf("expected booked fields kept, got %+v", got)
	}
	if body["status"] != "pending" || body["paymentStatus"] != "pending" || body["passenger"] != "p1" {
		t.Fatalf("unexpected body: %v", body)
	}
	pickup := body["pickupLocation"].(map[string]any)
	coords := pickup["coordinates"].([]any)
	if pickup["type"] != "Point" || coords[0].(float64) != 114.02 || coords[1].(float64) != 22.44 {
		t.Fatalf("expected [lng, lat] point, got %v", pickup)
	}
}

func TestCalculateRoute(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"path":"p@th","totalDistance":32000,"totalDuration":1800,
			"tunnel":[{"name":"Tai Lam Tunnel","price":43}],"tunnelFeeSum":43}`)
	})
	q, err := c.CalculateRoute(context.Background(), RouteRequest{
		Origin:      types.Point{Lat: 22.44, Lng: 114.02},
		Destination: types.Point{Lat: 22.28, Lng: 114.16},
		Tunnels:     []string{"Tai Lam Tunnel"},
		Direction:   "out",
	})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if q.Path != "p@th" || q.DistanceMeters != 32000 || q.TollSum != 43 || len(q.Tunnels) != 1 {
		t.Fatalf("unexpected quote: %+v", q)
	}
	if body["directions"] != "out" {
		t.Fatalf("expected direction hint, got %v", body["directions"])
	}
	tunnels := body["tunnels"].([]any)
	if tunnels[0].(map[string]any)["price"] != "0" {
		t.Fatalf("expected tunnel preference price \"0\", got %v", tunnels[0])
	}
}

func TestLoginAndRegister(t *testing.T) {
	var registerBody map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("auth endpoints must not send a bearer token")
		}
		if r.URL.Path == "/api/auth/register" {
			_ = json.NewDecoder(r.Body).Decode(&registerBody)
		}
		_, _ = io.WriteString(w, `{"token":"tok","user":{"_id":"u1","email":"a@b.c","name":"Ann","role":"driver"}}`)
	})
	res, err := c.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token != "tok" || res.User.ID != "u1" || res.User.Role != types.RoleDriver {
		t.Fatalf("unexpected login result: %+v", res)
	}
	_, err = c.Register(context.Background(), RegisterRequest{
		Email: "a@b.c", Password: "pw", Name: "Ann", Role: types.RoleDriver, CountryCode: "+852", PhoneNumber: "91234567",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registerBody["phone"] != "+85291234567" {
		t.Fatalf("expected joined phone, got %q", registerBody["phone"])
	}
}

func TestDriverVehicle(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"vehicleType":"premium","vehiclePlateNumber":"AB1234"}}`)
	})
	v, err := c.DriverVehicle(context.Background(), "d1")
	if err != nil {
		t.Fatalf("driver: %v", err)
	}
	if v.Type != "premium" || v.PlateNumber != "AB1234" {
		t.Fatalf("unexpected vehicle: %+v", v)
	}
}
