// README: Handler tests for status mapping and request validation.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"ridesync/internal/backend"
	"ridesync/internal/http/handlers"
	"ridesync/internal/maps"
	"ridesync/internal/modules/driver"
	"ridesync/internal/modules/fare"
	"ridesync/internal/modules/passenger"
	"ridesync/internal/modules/trip"
	"ridesync/internal/types"
)

type stubDriver struct {
	err      error
	accepted []types.ID
	calls    int
}

func (s *stubDriver) Snapshot(context.Context) (driver.Snapshot, error) {
	return driver.Snapshot{Role: types.RoleDriver, Mode: driver.ModeWaiting, Online: true}, nil
}
func (s *stubDriver) GoOnline(context.Context) error { s.calls++; return s.err }
func (s *stubDriver) GoOffline(context.Context) error { s.calls++; return s.err }
func (s *stubDriver) Select(context.Context, types.ID) error {
	s.calls++
	return s.err
}
func (s *stubDriver) Accept(_ context.Context, id types.ID) error {
	s.calls++
	s.accepted = append(s.accepted, id)
	return s.err
}
func (s *stubDriver) Decline(context.Context, types.ID) error { s.calls++; return s.err }
func (s *stubDriver) DeclineAll(context.Context) error { s.calls++; return s.err }
func (s *stubDriver) ArriveAtPickup(context.Context) error { s.calls++; return s.err }
func (s *stubDriver) StartTrip(context.Context) error { s.calls++; return s.err }
func (s *stubDriver) ArriveAtDestination(context.Context) error { s.calls++; return s.err }
func (s *stubDriver) Cancel(context.Context) error { s.calls++; return s.err }
func (s *stubDriver) Profile(context.Context) (backend.DriverProfile, error) {
	return backend.DriverProfile{}, s.err
}
func (s *stubDriver) UpdateProfile(_ context.Context, p backend.DriverProfile) (backend.DriverProfile, error) {
	return p, s.err
}

type stubPassenger struct {
	err   error
	quote passenger.QuoteRequest
	stars int
}

func (s *stubPassenger) Snapshot(context.Context) (passenger.Snapshot, error) {
	return passenger.Snapshot{Role: types.RolePassenger, Mode: passenger.ModeIdle}, nil
}
func (s *stubPassenger) Quote(_ context.Context, req passenger.QuoteRequest) (passenger.Quote, error) {
	s.quote = req
	if s.err != nil {
		return passenger.Quote{}, s.err
	}
	return passenger.Quote{VehicleType: req.VehicleType, Price: types.Money{Amount: 120, Currency: "HKD"}}, nil
}
func (s *stubPassenger) Book(context.Context) (trip.Trip, error) {
	return trip.Trip{ID: "t1", Status: trip.StatusSeekingDriver}, s.err
}
func (s *stubPassenger) Cancel(context.Context) error { return s.err }
func (s *stubPassenger) ConfirmCompletion(context.Context) error { return s.err }
func (s *stubPassenger) SubmitRating(_ context.Context, stars int) error {
	s.stars = stars
	return s.err
}

type stubPlaces struct {
	places []maps.Place
	err    error
}

func (s stubPlaces) Search(context.Context, string) ([]maps.Place, error) { return s.places, s.err }

func buildDriverRouter(svc handlers.DriverService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handlers.NewDriverHandler(svc)
	r.POST("/offers/:id/accept", h.Accept)
	r.POST("/online", h.Online)
	r.POST("/trip/start", h.Start)
	return r
}

func buildPassengerRouter(svc handlers.PassengerService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handlers.NewPassengerHandler(svc)
	r.POST("/quote", h.Quote)
	r.POST("/book", h.Book)
	r.POST("/rating", h.Rate)
	return r
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDriverAccept_InvalidID(t *testing.T) {
	svc := &stubDriver{}
	w := doRequest(buildDriverRouter(svc), http.MethodPost, "/offers/bad$id/accept", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if svc.calls != 0 {
		t.Errorf("service should not be called for an invalid id")
	}
}

func TestDriverAccept_ReturnsSnapshot(t *testing.T) {
	svc := &stubDriver{}
	w := doRequest(buildDriverRouter(svc), http.MethodPost, "/offers/trip_42/accept", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(svc.accepted) != 1 || svc.accepted[0] != "trip_42" {
		t.Errorf("unexpected accepted ids %v", svc.accepted)
	}
	var snap driver.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Mode != driver.ModeWaiting || !snap.Online {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"offer gone", fmt.Errorf("%w: %w", driver.ErrOfferUnavailable, backend.ErrConflict), http.StatusGone},
		{"invalid action", driver.ErrInvalidAction, http.StatusConflict},
		{"busy", driver.ErrBusy, http.StatusConflict},
		{"reset during request", driver.ErrReset, http.StatusConflict},
		{"conflict", backend.ErrConflict, http.StatusConflict},
		{"rejected", backend.ErrRejected, http.StatusUnprocessableEntity},
		{"unauthorized", backend.ErrUnauthorized, http.StatusUnauthorized},
		{"not found", backend.ErrNotFound, http.StatusNotFound},
		{"transient", fmt.Errorf("get trip: %w", backend.ErrTransient), http.StatusServiceUnavailable},
		{"malformed", backend.ErrMalformed, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(buildDriverRouter(&stubDriver{err: tt.err}), http.MethodPost, "/trip/start", nil)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestPassengerQuote(t *testing.T) {
	svc := &stubPassenger{}
	w := doRequest(buildPassengerRouter(svc), http.MethodPost, "/quote", map[string]any{
		"pickup":       map[string]any{"lat": 22.44, "lng": 114.02, "address": "Yuen Long"},
		"dropoff":      map[string]any{"lat": 22.28, "lng": 114.15, "address": "Central"},
		"vehicle_type": "premium",
		"tunnels":      []string{"Western Harbour Crossing"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.quote.VehicleType != "premium" || svc.quote.Pickup.Point.Lat != 22.44 || len(svc.quote.Tunnels) != 1 {
		t.Errorf("request not forwarded: %+v", svc.quote)
	}
}

func TestPassengerQuote_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", passenger.ErrBadRequest, http.StatusBadRequest},
		{"unknown vehicle", fmt.Errorf("%w: %q", fare.ErrUnknownVehicle, "limo"), http.StatusBadRequest},
		{"unknown tunnel", fare.ErrUnknownTunnel, http.StatusBadRequest},
		{"backend down", backend.ErrTransient, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(buildPassengerRouter(&stubPassenger{err: tt.err}), http.MethodPost, "/quote", map[string]any{})
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestPassengerBook_NoQuote(t *testing.T) {
	w := doRequest(buildPassengerRouter(&stubPassenger{err: passenger.ErrNoQuote}), http.MethodPost, "/book", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestPassengerRate_InvalidJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := buildPassengerRouter(&stubPassenger{})
	req := httptest.NewRequest(http.MethodPost, "/rating", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestPassengerRate_ForwardsStars(t *testing.T) {
	svc := &stubPassenger{}
	w := doRequest(buildPassengerRouter(svc), http.MethodPost, "/rating", map[string]any{"stars": 4})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.stars != 4 {
		t.Errorf("expected 4 stars, got %d", svc.stars)
	}
}

func TestPlaceSearch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name   string
		places handlers.PlaceSearcher
		query  string
		want   int
	}{
		{"missing query", stubPlaces{}, "", http.StatusBadRequest},
		{"not configured", nil, "q=central", http.StatusServiceUnavailable},
		{"no results", stubPlaces{err: maps.ErrNoResults}, "q=nowhere", http.StatusNotFound},
		{"found", stubPlaces{places: []maps.Place{{Address: "Central", District: "中西區"}}}, "q=central", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/places", handlers.NewLocationHandler(tt.places).Search)
			w := doRequest(r, http.MethodGet, "/places?"+tt.query, nil)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}
