// README: Place search for pickup and drop-off inputs.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridesync/internal/maps"
)

type PlaceSearcher interface {
	Search(ctx context.Context, query string) ([]maps.Place, error)
}

type LocationHandler struct {
	places PlaceSearcher
}

func NewLocationHandler(svc PlaceSearcher) *LocationHandler {
	return &LocationHandler{places: svc}
}

func (h *LocationHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		writeError(c, http.StatusBadRequest, "missing q")
		return
	}
	if h.places == nil {
		writeError(c, http.StatusServiceUnavailable, "place search is not configured")
		return
	}
	places, err := h.places.Search(c.Request.Context(), q)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if places == nil {
		places = []maps.Place{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"places": places})
}
