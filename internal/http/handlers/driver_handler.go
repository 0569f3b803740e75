// README: Driver endpoints: duty toggle, offers, trip actions and profile.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesync/internal/backend"
	"ridesync/internal/modules/driver"
	"ridesync/internal/types"
)

type DriverService interface {
	Snapshot(ctx context.Context) (driver.Snapshot, error)
	GoOnline(ctx context.Context) error
	GoOffline(ctx context.Context) error
	Select(ctx context.Context, id types.ID) error
	Accept(ctx context.Context, id types.ID) error
	Decline(ctx context.Context, id types.ID) error
	DeclineAll(ctx context.Context) error
	ArriveAtPickup(ctx context.Context) error
	StartTrip(ctx context.Context) error
	ArriveAtDestination(ctx context.Context) error
	Cancel(ctx context.Context) error
	Profile(ctx context.Context) (backend.DriverProfile, error)
	UpdateProfile(ctx context.Context, p backend.DriverProfile) (backend.DriverProfile, error)
}

type DriverHandler struct {
	drivers DriverService
}

func NewDriverHandler(svc DriverService) *DriverHandler {
	return &DriverHandler{drivers: svc}
}

// run executes an action and answers with the resulting snapshot.
func (h *DriverHandler) run(c *gin.Context, action func(ctx context.Context) error) {
	ctx := c.Request.Context()
	if err := action(ctx); err != nil {
		writeServiceError(c, err)
		return
	}
	s, err := h.drivers.Snapshot(ctx)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}

// withOffer validates the :id path param before running an offer action.
func (h *DriverHandler) withOffer(c *gin.Context, action func(ctx context.Context, id types.ID) error) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid trip id")
		return
	}
	h.run(c, func(ctx context.Context) error { return action(ctx, types.ID(id)) })
}

func (h *DriverHandler) Online(c *gin.Context) { h.run(c, h.drivers.GoOnline) }
func (h *DriverHandler) Offline(c *gin.Context) { h.run(c, h.drivers.GoOffline) }

func (h *DriverHandler) Select(c *gin.Context) { h.withOffer(c, h.drivers.Select) }
func (h *DriverHandler) Accept(c *gin.Context) { h.withOffer(c, h.drivers.Accept) }
func (h *DriverHandler) Decline(c *gin.Context) { h.withOffer(c, h.drivers.Decline) }

func (h *DriverHandler) DeclineAll(c *gin.Context) { h.run(c, h.drivers.DeclineAll) }

func (h *DriverHandler) ArrivePickup(c *gin.Context) { h.run(c, h.drivers.ArriveAtPickup) }
func (h *DriverHandler) Start(c *gin.Context) { h.run(c, h.drivers.StartTrip) }
func (h *DriverHandler) Arrive(c *gin.Context) { h.run(c, h.drivers.ArriveAtDestination) }
func (h *DriverHandler) Cancel(c *gin.Context) { h.run(c, h.drivers.Cancel) }

func (h *DriverHandler) GetProfile(c *gin.Context) {
	p, err := h.drivers.Profile(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *DriverHandler) UpdateProfile(c *gin.Context) {
	var req backend.DriverProfile
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.drivers.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}
