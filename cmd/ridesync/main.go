// README: Entry point; loads config, restores the role coordinator and serves the control API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ridesync/internal/backend"
	"ridesync/internal/config"
	"ridesync/internal/eventloop"
	httptransport "ridesync/internal/http"
	"ridesync/internal/logger"
	"ridesync/internal/maps"
	"ridesync/internal/modules/account"
	"ridesync/internal/modules/driver"
	"ridesync/internal/modules/passenger"
	"ridesync/internal/modules/poller"
	"ridesync/internal/modules/session"
	"ridesync/internal/notify"
	"ridesync/internal/realtime"
	"ridesync/internal/types"
)

// tokenFunc breaks the construction cycle between the backend client and the
// account service that signs in through it.
type tokenFunc func(ctx context.Context) (string, error)

func (f tokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

type coordinator interface {
	Restore(ctx context.Context) error
	Shutdown(ctx context.Context)
}

// restoreRole rebuilds the role state at startup. An expired session still
// restores: the coordinator keeps the cached trip when the backend refuses the token.
func restoreRole(ctx context.Context, coord coordinator, signedIn bool, log *logrus.Entry) {
	if !signedIn {
		log.Info("session expired or missing; restoring from the local record")
	}
	if err := coord.Restore(ctx); err != nil {
		log.WithError(err).Warn("restore")
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	base := logger.New(cfg.Log)
	log := logger.Component(base, "main").WithField("role", cfg.Role)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Session, log)
	if err != nil {
		log.WithError(err).Fatal("session store")
	}
	defer closeStore()
	repo := session.NewRepository(store, cfg.Session.Namespace)

	feed := notify.NewFeed(50, logger.Component(base, "notify"))

	var acct *account.Service
	tokens := tokenFunc(func(ctx context.Context) (string, error) { return acct.Token(ctx) })
	api := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, tokens, logger.Component(base, "backend"))
	acct = account.NewService(api, repo, cfg.Role, logger.Component(base, "account"))

	rt := realtime.NewClient(realtime.Config{
		URL:            cfg.Realtime.URL,
		MaxRetries:     cfg.Realtime.MaxRetries,
		InitialBackoff: cfg.Realtime.InitialBackoff,
		MaxBackoff:     cfg.Realtime.MaxBackoff,
	}, acct, logger.Component(base, "realtime"))

	loop := eventloop.New(128)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go loop.Run(loopCtx)
	defer stopLoop()

	deps := httptransport.ServerDeps{
		Role:          cfg.Role,
		Account:       acct,
		History:       api,
		Notifications: feed,
		Log:           logger.Component(base, "http"),
	}

	var geocoder *maps.Geocoder
	var routes *maps.RouteService
	if cfg.Maps.APIKey != "" {
		if geocoder, err = maps.NewGeocoder(cfg.Maps.APIKey); err != nil {
			log.WithError(err).Warn("place search disabled")
		} else {
			deps.Places = geocoder
		}
		if routes, err = maps.NewRouteService(cfg.Maps.APIKey); err != nil {
			log.WithError(err).Warn("route fallback disabled")
			routes = nil
		}
	}

	var coord coordinator
	switch cfg.Role {
	case types.RoleDriver:
		d := driver.New(driver.Deps{
			API:      api,
			Realtime: rt,
			Loop:     loop,
			Repo:     repo,
			Notifier: feed,
			Poll: poller.Config{
				FallbackInterval: cfg.Poller.FallbackInterval,
				AlwaysTick:       cfg.Poller.AlwaysTick,
			},
			Log: logger.Component(base, "driver"),
		})
		deps.Driver = d
		coord = d
	default:
		pd := passenger.Deps{
			API:      api,
			Realtime: rt,
			Loop:     loop,
			Repo:     repo,
			Notifier: feed,
			Log:      logger.Component(base, "passenger"),
		}
		if routes != nil {
			pd.Router = routes
		}
		if geocoder != nil {
			pd.Locator = geocoder
		}
		p := passenger.New(pd)
		deps.Passenger = p
		coord = p
	}

	restoreRole(ctx, coord, acct.SessionValid(ctx), log)

	server := httptransport.NewServer(cfg.HTTP.Addr, deps)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-loop.Stopped():
			return eventloop.ErrStopped
		}
	})
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("control api")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	coord.Shutdown(shutdownCtx)
	log.Info("stopped")
}
