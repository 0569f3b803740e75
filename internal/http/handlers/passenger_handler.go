// README: Passenger endpoints: quote, booking, cancellation, completion and rating.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesync/internal/modules/passenger"
	"ridesync/internal/modules/trip"
	"ridesync/internal/types"
)

type PassengerService interface {
	Snapshot(ctx context.Context) (passenger.Snapshot, error)
	Quote(ctx context.Context, req passenger.QuoteRequest) (passenger.Quote, error)
	Book(ctx context.Context) (trip.Trip, error)
	Cancel(ctx context.Context) error
	ConfirmCompletion(ctx context.Context) error
	SubmitRating(ctx context.Context, stars int) error
}

type PassengerHandler struct {
	passengers PassengerService
}

func NewPassengerHandler(svc PassengerService) *PassengerHandler {
	return &PassengerHandler{passengers: svc}
}

type placeReq struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Address  string  `json:"address"`
	District string  `json:"district"`
}

func (p placeReq) input() passenger.PlaceInput {
	return passenger.PlaceInput{
		Point:    types.Point{Lat: p.Lat, Lng: p.Lng},
		Address:  p.Address,
		District: p.District,
	}
}

type quoteReq struct {
	Pickup      placeReq        `json:"pickup"`
	Dropoff     placeReq        `json:"dropoff"`
	VehicleType string          `json:"vehicle_type"`
	Tunnels     []string        `json:"tunnels"`
	Extras      []trip.LineItem `json:"extras"`
}

type ratingReq struct {
	Stars int `json:"stars"`
}

func (h *PassengerHandler) Quote(c *gin.Context) {
	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	q, err := h.passengers.Quote(c.Request.Context(), passenger.QuoteRequest{
		Pickup:      req.Pickup.input(),
		Dropoff:     req.Dropoff.input(),
		VehicleType: req.VehicleType,
		Tunnels:     req.Tunnels,
		Extras:      req.Extras,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, q)
}

func (h *PassengerHandler) Book(c *gin.Context) {
	t, err := h.passengers.Book(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"trip": t})
}

func (h *PassengerHandler) Cancel(c *gin.Context) {
	h.run(c, h.passengers.Cancel)
}

func (h *PassengerHandler) Complete(c *gin.Context) {
	h.run(c, h.passengers.ConfirmCompletion)
}

func (h *PassengerHandler) Rate(c *gin.Context) {
	var req ratingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	h.run(c, func(ctx context.Context) error { return h.passengers.SubmitRating(ctx, req.Stars) })
}

func (h *PassengerHandler) run(c *gin.Context, action func(ctx context.Context) error) {
	ctx := c.Request.Context()
	if err := action(ctx); err != nil {
		writeServiceError(c, err)
		return
	}
	s, err := h.passengers.Snapshot(ctx)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}
