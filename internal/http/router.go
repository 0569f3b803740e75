// README: HTTP router registration for the local control API.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridesync/internal/http/handlers"
	"ridesync/internal/http/middleware"
	"ridesync/internal/logger"
	"ridesync/internal/types"
)

func NewRouter(deps ServerDeps) *gin.Engine {
	log := logger.OrDiscard(deps.Log)

	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	var role handlers.RoleSession
	var state handlers.StateFunc
	switch deps.Role {
	case types.RoleDriver:
		role = deps.Driver
		state = func(ctx context.Context) (any, error) { return deps.Driver.Snapshot(ctx) }
	default:
		role = deps.Passenger
		state = func(ctx context.Context) (any, error) { return deps.Passenger.Snapshot(ctx) }
	}

	stateHandler := handlers.NewStateHandler(state, deps.Notifications)
	r.GET("/api/state", stateHandler.Get)
	r.GET("/api/notifications", stateHandler.Notifications)

	accountHandler := handlers.NewAccountHandler(deps.Account, role)
	r.POST("/api/auth/login", accountHandler.Login)
	r.POST("/api/auth/register", accountHandler.Register)
	r.POST("/api/auth/logout", accountHandler.Logout)

	authed := r.Group("/api", middleware.RequireSession(deps.Account))
	authed.GET("/me", accountHandler.Me)

	tripHandler := handlers.NewTripHandler(deps.History)
	authed.GET("/history", tripHandler.History)

	locationHandler := handlers.NewLocationHandler(deps.Places)
	authed.GET("/places", locationHandler.Search)

	switch deps.Role {
	case types.RoleDriver:
		driverHandler := handlers.NewDriverHandler(deps.Driver)
		d := authed.Group("/driver")
		d.POST("/online", driverHandler.Online)
		d.POST("/offline", driverHandler.Offline)
		d.POST("/offers/decline", driverHandler.DeclineAll)
		d.POST("/offers/:id/select", driverHandler.Select)
		d.POST("/offers/:id/accept", driverHandler.Accept)
		d.POST("/offers/:id/decline", driverHandler.Decline)
		d.POST("/trip/arrive-pickup", driverHandler.ArrivePickup)
		d.POST("/trip/start", driverHandler.Start)
		d.POST("/trip/arrive", driverHandler.Arrive)
		d.POST("/trip/cancel", driverHandler.Cancel)
		d.GET("/profile", driverHandler.GetProfile)
		d.PUT("/profile", driverHandler.UpdateProfile)
	default:
		passengerHandler := handlers.NewPassengerHandler(deps.Passenger)
		p := authed.Group("/passenger")
		p.POST("/quote", passengerHandler.Quote)
		p.POST("/book", passengerHandler.Book)
		p.POST("/cancel", passengerHandler.Cancel)
		p.POST("/complete", passengerHandler.Complete)
		p.POST("/rating", passengerHandler.Rate)
	}

	return r
}
