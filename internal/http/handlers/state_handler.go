// README: Role snapshot and notification feed.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesync/internal/notify"
)

// StateFunc returns the snapshot of the running role.
type StateFunc func(ctx context.Context) (any, error)

type NotificationFeed interface {
	List() []notify.Notification
}

type StateHandler struct {
	state StateFunc
	feed  NotificationFeed
}

func NewStateHandler(state StateFunc, feed NotificationFeed) *StateHandler {
	return &StateHandler{state: state, feed: feed}
}

func (h *StateHandler) Get(c *gin.Context) {
	s, err := h.state(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, s)
}

func (h *StateHandler) Notifications(c *gin.Context) {
	items := h.feed.List()
	if items == nil {
		items = []notify.Notification{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"notifications": items})
}
