// README: Control API server; serves the running role's coordinator over HTTP.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"ridesync/internal/http/handlers"
	"ridesync/internal/logger"
	"ridesync/internal/types"
)

type AccountService interface {
	handlers.AccountService
	SessionValid(ctx context.Context) bool
}

type DriverService interface {
	handlers.DriverService
	handlers.RoleSession
}

type PassengerService interface {
	handlers.PassengerService
	handlers.RoleSession
}

// ServerDeps wires one role. Only the coordinator matching Role is used.
type ServerDeps struct {
	Role          types.Role
	Account       AccountService
	Driver        DriverService
	Passenger     PassengerService
	History       handlers.HistorySource
	Places        handlers.PlaceSearcher
	Notifications handlers.NotificationFeed
	Log           *logrus.Entry
}

type Server struct {
	srv *http.Server
	log *logrus.Entry
}

func NewServer(addr string, deps ServerDeps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logger.OrDiscard(deps.Log),
	}
}

func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("control api listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
