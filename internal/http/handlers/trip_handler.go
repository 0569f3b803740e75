// README: Trip history of the signed-in user.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesync/internal/modules/trip"
)

type HistorySource interface {
	History(ctx context.Context) ([]trip.Trip, error)
}

type TripHandler struct {
	history HistorySource
}

func NewTripHandler(src HistorySource) *TripHandler {
	return &TripHandler{history: src}
}

func (h *TripHandler) History(c *gin.Context) {
	trips, err := h.history.History(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if trips == nil {
		trips = []trip.Trip{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"trips": trips})
}
