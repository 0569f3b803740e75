// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesync/internal/backend"
	"ridesync/internal/maps"
	"ridesync/internal/modules/account"
	"ridesync/internal/modules/driver"
	"ridesync/internal/modules/fare"
	"ridesync/internal/modules/passenger"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts backend ids: up to 64 letters, digits, '-' or '_'.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps coordinator and backend errors to status codes.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, driver.ErrOfferUnavailable):
		writeError(c, http.StatusGone, driver.ErrOfferUnavailable.Error())
	case errors.Is(err, account.ErrBadRequest), errors.Is(err, passenger.ErrBadRequest),
		errors.Is(err, fare.ErrUnknownVehicle), errors.Is(err, fare.ErrUnknownTunnel):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrSignedOut), errors.Is(err, backend.ErrUnauthorized):
		writeError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, account.ErrWrongRole):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, backend.ErrNotFound), errors.Is(err, maps.ErrNoResults):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, driver.ErrInvalidAction), errors.Is(err, passenger.ErrInvalidAction),
		errors.Is(err, driver.ErrBusy), errors.Is(err, passenger.ErrBusy),
		errors.Is(err, driver.ErrReset), errors.Is(err, passenger.ErrReset),
		errors.Is(err, passenger.ErrNoQuote), errors.Is(err, backend.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, backend.ErrRejected):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, backend.ErrMalformed):
		writeError(c, http.StatusBadGateway, "unexpected backend response")
	case errors.Is(err, backend.ErrTransient):
		writeError(c, http.StatusServiceUnavailable, "backend unavailable")
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
