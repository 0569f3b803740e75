// README: Passenger coordinator. Tracks the one trip this passenger is part of.
package passenger

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"ridesync/internal/backend"
	"ridesync/internal/eventloop"
	"ridesync/internal/logger"
	"ridesync/internal/maps"
	"ridesync/internal/modules/fare"
	"ridesync/internal/modules/session"
	"ridesync/internal/modules/trip"
	"ridesync/internal/notify"
	"ridesync/internal/realtime"
	"ridesync/internal/types"
)

type Backend interface {
	GetTrip(ctx context.Context, id types.ID) (trip.Trip, error)
	CreateTrip(ctx context.Context, req backend.CreateTripRequest) (trip.Trip, error)
	UpdateStatus(ctx context.Context, id types.ID, status trip.Status) error
	PatchTrip(ctx context.Context, id types.ID, p backend.TripPatch) error
	CalculateRoute(ctx context.Context, req backend.RouteRequest) (backend.RouteQuote, error)
	DriverVehicle(ctx context.Context, driverID types.ID) (trip.Vehicle, error)
}

// Router estimates a plain driving route when the backend oracle is down.
type Router interface {
	DrivingEstimate(ctx context.Context, origin, destination types.Point) (maps.Estimate, error)
}

// Locator resolves the district of a point.
type Locator interface {
	Reverse(ctx context.Context, pt types.Point) (maps.Place, error)
}

type Realtime interface {
	Open(ctx context.Context, scope realtime.Scope, h realtime.Handlers) (realtime.Channel, error)
}

type Loop interface {
	Post(fn func()) bool
	Do(ctx context.Context, fn func()) error
}

type Deps struct {
	API      Backend
	Realtime Realtime
	Loop     Loop
	Repo     *session.Repository
	Notifier notify.Notifier
	Planner  fare.TunnelPlanner
	// Router and Locator are optional.
	Router  Router
	Locator Locator
	Log     *logrus.Entry
}

type Coordinator struct {
	api     Backend
	rt      Realtime
	loop    Loop
	repo    *session.Repository
	note    notify.Notifier
	planner fare.TunnelPlanner
	router  Router
	locator Locator
	log     *logrus.Entry

	bg     context.Context
	cancel context.CancelFunc

	// Owned by the loop.
	mode       Mode
	current    *trip.Trip
	quote      *Quote
	ratingTrip types.ID
	tripCh     realtime.Channel
	tripTok    uint64
	tokens     uint64
	degraded   bool
	pending    bool
	// epoch advances on Reset and Shutdown; work started under an older epoch is dropped.
	epoch uint64
}

func New(d Deps) *Coordinator {
	bg, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		api:     d.API,
		rt:      d.Realtime,
		loop:    d.Loop,
		repo:    d.Repo,
		note:    d.Notifier,
		planner: d.Planner,
		router:  d.Router,
		locator: d.Locator,
		log:     logger.OrDiscard(d.Log),
		bg:      bg,
		cancel:  cancel,
		mode:    ModeIdle,
	}
	if c.note == nil {
		c.note = notify.Discard{}
	}
	if c.planner == nil {
		c.planner = fare.DistrictPlanner{}
	}
	return c
}

// Restore rebuilds state from the persisted record. A terminal or missing
// backend trip yields the plain idle state.
func (c *Coordinator) Restore(ctx context.Context) error {
	var epoch uint64
	if err := c.loop.Do(ctx, func() { epoch = c.epoch }); err != nil {
		return err
	}
	rec, ok, err := c.repo.LoadTrip(ctx, types.RolePassenger)
	if errors.Is(err, session.ErrCorrupt) {
		c.log.WithError(err).Warn("discarding unreadable trip record")
		_ = c.repo.ClearTrip(ctx, types.RolePassenger)
		ok, err = false, nil
	}
	if err != nil || !ok {
		return err
	}

	var restored *trip.Trip
	t, ferr := c.api.GetTrip(ctx, rec.Trip.ID)
	switch {
	case ferr == nil:
		restored = &t
	case errors.Is(ferr, backend.ErrNotFound):
		c.log.WithField("trip_id", rec.Trip.ID).Info("persisted trip no longer exists")
	default:
		c.report("refresh your trip", ferr)
		cached := rec.Trip.Clone()
		restored = &cached
	}

	return c.loop.Do(ctx, func() {
		if epoch != c.epoch || c.mode != ModeIdle || c.pending {
			c.log.WithField("mode", c.mode).Info("session changed during restore; keeping current state")
			return
		}
		if restored == nil || trip.IsTerminal(restored.Status) {
			c.clearTrip()
			c.mode = ModeIdle
			return
		}
		c.mode = ModeActive
		c.current = restored
		c.save()
		c.openTrip(restored.ID)
		if needsDriverDetails(restored) {
			c.enrich(restored.ID)
		}
		c.log.WithFields(logrus.Fields{"trip_id": restored.ID, "status": restored.Status}).Info("restored trip")
	})
}

func (c *Coordinator) Reset(ctx context.Context) error {
	return c.loop.Do(ctx, func() {
		c.epoch++
		c.closeTrip()
		c.current = nil
		c.quote = nil
		c.ratingTrip = ""
		c.pending = false
		c.mode = ModeIdle
	})
}

func (c *Coordinator) Shutdown(ctx context.Context) {
	if err := c.loop.Do(ctx, func() {
		c.epoch++
		c.closeTrip()
	}); err != nil && !errors.Is(err, eventloop.ErrStopped) {
		c.log.WithError(err).Warn("shutdown")
	}
	c.cancel()
}

func (c *Coordinator) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := c.loop.Do(ctx, func() { s = c.snapshot() })
	return s, err
}

func (c *Coordinator) snapshot() Snapshot {
	s := Snapshot{
		Role:       types.RolePassenger,
		Mode:       c.mode,
		RatingTrip: c.ratingTrip,
		Degraded:   c.degraded,
	}
	if c.quote != nil {
		q := c.quote.clone()
		s.Quote = &q
	}
	if c.mode == ModeActive && c.current != nil {
		t := c.current.Clone()
		s.Trip = &t
		s.Status = t.Status
		s.StatusText = trip.PassengerText(t.Status)
		s.Progress = trip.Progress(t.Status)
		s.CanCancel = !trip.IsTerminal(t.Status)
		s.CanConfirm = t.Status == trip.StatusArrived
	}
	return s
}

func (c *Coordinator) nextToken() uint64 {
	c.tokens++
	return c.tokens
}

func (c *Coordinator) openTrip(id types.ID) {
	c.closeTrip()
	tok := c.nextToken()
	ch, err := c.rt.Open(c.bg, realtime.Trip(id), realtime.Handlers{
		OnEvent: func(ev realtime.Event) {
			c.loop.Post(func() { c.onTripEvent(tok, ev) })
		},
		OnConnect: func(bool) {
			c.loop.Post(func() { c.onReconcile(tok) })
		},
		OnDegraded: func() {
			c.loop.Post(func() { c.onDegraded(tok) })
		},
	})
	if err != nil {
		c.log.WithError(err).WithField("trip_id", id).Warn("open trip channel")
		return
	}
	c.tripCh, c.tripTok = ch, tok
	c.degraded = false
}

func (c *Coordinator) closeTrip() {
	if c.tripCh == nil {
		return
	}
	_ = c.tripCh.Close()
	c.tripCh, c.tripTok = nil, 0
}

func (c *Coordinator) owns(tok uint64) bool {
	return c.tripCh != nil && tok == c.tripTok && c.mode == ModeActive && c.current != nil
}

func (c *Coordinator) onTripEvent(tok uint64, ev realtime.Event) {
	if !c.owns(tok) {
		return
	}
	st, ok := trip.ParseStatus(ev.Status)
	if !ok {
		c.log.WithField("status", ev.Status).Warn("ignoring push with unknown status")
		return
	}
	log := c.log.WithFields(logrus.Fields{"trip_id": c.current.ID, "from": c.current.Status, "to": st})
	switch trip.ReconcilePush(c.current.Status, st) {
	case trip.Apply:
		log.Info("trip status pushed")
		t := c.current.Clone()
		t.Status = st
		c.applyTrip(t)
	case trip.Refetch:
		log.Info("out-of-order push; refetching")
		c.refetch(c.current.ID)
	}
}

func (c *Coordinator) onReconcile(tok uint64) {
	if c.owns(tok) {
		c.refetch(c.current.ID)
	}
}

func (c *Coordinator) onDegraded(tok uint64) {
	if !c.owns(tok) {
		return
	}
	c.degraded = true
	c.note.Notify(notify.LevelTransient, "Live trip updates unavailable")
	c.refetch(c.current.ID)
}

func (c *Coordinator) refetch(id types.ID) {
	go func() {
		t, err := c.api.GetTrip(c.bg, id)
		c.loop.Post(func() {
			if c.mode != ModeActive || c.current == nil || c.current.ID != id {
				return
			}
			if err != nil {
				c.report("refresh your trip", err)
				return
			}
			c.applyTrip(c.mergeDriver(t))
		})
	}()
}

// applyTrip adopts t as the active trip and runs the side effects of its status.
func (c *Coordinator) applyTrip(t trip.Trip) {
	prev := c.current.Status
	switch t.Status {
	case trip.StatusCancelled:
		c.note.Notify(notify.LevelInfo, "Your trip was cancelled")
		c.clearTrip()
		c.mode = ModeIdle
		return
	case trip.StatusCompleted:
		c.toRating(t.ID)
		return
	}
	c.current = &t
	c.save()
	if t.Status == prev {
		return
	}
	switch t.Status {
	case trip.StatusAccepted:
		c.note.Notify(notify.LevelInfo, "Driver assigned")
	case trip.StatusArrived:
		c.note.Notify(notify.LevelInfo, "You have arrived, please confirm completion")
	}
	if needsDriverDetails(&t) {
		c.enrich(t.ID)
	}
}

func (c *Coordinator) toRating(id types.ID) {
	c.clearTrip()
	c.ratingTrip = id
	c.mode = ModeRating
	c.note.Notify(notify.LevelInfo, "Ride completed, please rate your driver")
}

// clearTrip closes the channel before dropping state so no handler outlives it.
func (c *Coordinator) clearTrip() {
	c.closeTrip()
	c.current = nil
	c.degraded = false
	if err := c.repo.ClearTrip(c.bg, types.RolePassenger); err != nil {
		c.log.WithError(err).Error("clear trip record")
	}
}

func (c *Coordinator) save() {
	if c.current == nil {
		return
	}
	if err := c.repo.SaveTrip(c.bg, types.RolePassenger, *c.current); err != nil {
		c.log.WithError(err).Error("persist trip record")
	}
}

func needsDriverDetails(t *trip.Trip) bool {
	if trip.Rank(t.Status) < trip.Rank(trip.StatusAccepted) || trip.IsTerminal(t.Status) {
		return false
	}
	return t.Driver == nil || t.Driver.Vehicle.PlateNumber == ""
}

// enrich fills in the assigned driver's contact and vehicle. The status
// transition never waits for it.
func (c *Coordinator) enrich(id types.ID) {
	go func() {
		t, err := c.api.GetTrip(c.bg, id)
		if err != nil {
			c.log.WithError(err).WithField("trip_id", id).Warn("fetch trip for driver details")
			return
		}
		if t.Driver == nil || t.Driver.ID == "" {
			return
		}
		d := *t.Driver
		if v, err := c.api.DriverVehicle(c.bg, d.ID); err != nil {
			c.log.WithError(err).WithField("driver_id", d.ID).Warn("fetch driver vehicle")
		} else {
			d.Vehicle = v
		}
		c.loop.Post(func() {
			if c.mode != ModeActive || c.current == nil || c.current.ID != id {
				return
			}
			c.current.Driver = &d
			c.save()
		})
	}()
}

// mergeDriver keeps driver details already fetched when t lacks them.
func (c *Coordinator) mergeDriver(t trip.Trip) trip.Trip {
	if c.current == nil || c.current.Driver == nil {
		return t
	}
	if t.Driver == nil {
		d := *c.current.Driver
		t.Driver = &d
		return t
	}
	if t.Driver.ID == c.current.Driver.ID && t.Driver.Vehicle == (trip.Vehicle{}) {
		t.Driver.Vehicle = c.current.Driver.Vehicle
	}
	return t
}

func (c *Coordinator) report(action string, err error) {
	entry := c.log.WithError(err).WithField("action", action)
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		entry.Warn("not authorized")
		c.note.Notify(notify.LevelBlocking, "Please sign in again to "+action)
	case errors.Is(err, backend.ErrMalformed):
		entry.Error("unexpected backend payload")
	case errors.Is(err, context.Canceled), errors.Is(err, eventloop.ErrStopped):
		entry.Debug("abandoned")
	default:
		entry.Warn("backend call failed")
		c.note.Notify(notify.LevelTransient, "Could not "+action+", please retry")
	}
}
