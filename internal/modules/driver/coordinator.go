// README: Driver coordinator. All state lives on the event loop; network calls run off it.
package driver

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"ridesync/internal/backend"
	"ridesync/internal/eventloop"
	"ridesync/internal/logger"
	"ridesync/internal/modules/poller"
	"ridesync/internal/modules/session"
	"ridesync/internal/modules/trip"
	"ridesync/internal/notify"
	"ridesync/internal/realtime"
	"ridesync/internal/types"
)

type Backend interface {
	AvailableTrips(ctx context.Context) ([]trip.Trip, error)
	GetTrip(ctx context.Context, id types.ID) (trip.Trip, error)
	UpdateStatus(ctx context.Context, id types.ID, status trip.Status) error
	Profile(ctx context.Context) (backend.DriverProfile, error)
	UpdateProfile(ctx context.Context, p backend.DriverProfile) (backend.DriverProfile, error)
}

type Realtime interface {
	Open(ctx context.Context, scope realtime.Scope, h realtime.Handlers) (realtime.Channel, error)
}

// Loop is satisfied by *eventloop.Loop.
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
	Poll     poller.Config
	Log      *logrus.Entry
}

type Coordinator struct {
	api  Backend
	rt   Realtime
	loop Loop
	repo *session.Repository
	note notify.Notifier
	poll *poller.Poller
	log  *logrus.Entry

	bg     context.Context
	cancel context.CancelFunc

	// Owned by the loop.
	mode     Mode
	offers   []trip.Trip
	selected types.ID
	current  *trip.Trip
	// suppressed hides offers from later polls: true for accepted trips,
	// false for declines that last until the next GoOnline.
	suppressed map[types.ID]bool
	room       realtime.Channel
	roomTok    uint64
	tripCh     realtime.Channel
	tripTok    uint64
	tokens     uint64
	degraded   bool
	pending    bool
	// epoch advances on every teardown; in-flight work from an older epoch is dropped.
	epoch uint64
}

func New(d Deps) *Coordinator {
	bg, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		api:        d.API,
		rt:         d.Realtime,
		loop:       d.Loop,
		repo:       d.Repo,
		note:       d.Notifier,
		log:        logger.OrDiscard(d.Log),
		bg:         bg,
		cancel:     cancel,
		mode:       ModeOffline,
		suppressed: make(map[types.ID]bool),
	}
	if c.note == nil {
		c.note = notify.Discard{}
	}
	c.poll = poller.New(d.API, d.Loop, c.onPoll, d.Poll, c.log.WithField("unit", "poller"))
	return c
}

// Restore rebuilds state after a process start. The persisted record only
// names the trip; the backend's copy decides what is restored.
func (c *Coordinator) Restore(ctx context.Context) error {
	var epoch uint64
	if err := c.loop.Do(ctx, func() { epoch = c.epoch }); err != nil {
		return err
	}
	rec, ok, err := c.repo.LoadTrip(ctx, types.RoleDriver)
	if errors.Is(err, session.ErrCorrupt) {
		c.log.WithError(err).Warn("discarding unreadable trip record")
		_ = c.repo.ClearTrip(ctx, types.RoleDriver)
		ok, err = false, nil
	}
	if err != nil {
		return err
	}
	online, err := c.repo.Online(ctx)
	if err != nil {
		c.log.WithError(err).Warn("read online flag")
		online = false
	}

	var restored *trip.Trip
	if ok {
		t, ferr := c.api.GetTrip(ctx, rec.Trip.ID)
		switch {
		case ferr == nil:
			restored = &t
		case errors.Is(ferr, backend.ErrNotFound):
			c.log.WithField("trip_id", rec.Trip.ID).Info("persisted trip no longer exists")
		default:
			// Keep the cached copy; the trip channel refetches once connected.
			c.report("refresh the current trip", ferr)
			cached := rec.Trip.Clone()
			restored = &cached
		}
	}

	return c.loop.Do(ctx, func() {
		if epoch != c.epoch || c.mode != ModeOffline || c.pending {
			c.log.WithField("mode", c.mode).Info("session changed during restore; keeping current state")
			return
		}
		if restored != nil && !trip.DriverDone(restored.Status) {
			c.mode = ModeServing
			c.current = restored
			c.save()
			c.openTrip(restored.ID)
			c.log.WithFields(logrus.Fields{"trip_id": restored.ID, "status": restored.Status}).Info("restored trip")
			return
		}
		if ok {
			c.clearRecord()
		}
		if online {
			c.enterWaiting()
			return
		}
		c.mode = ModeOffline
	})
}

// Reset drops in-memory state and subscriptions, used on sign-out.
func (c *Coordinator) Reset(ctx context.Context) error {
	return c.loop.Do(ctx, func() {
		c.teardown()
		c.mode = ModeOffline
	})
}

// Shutdown closes subscriptions and the poller. Persisted state is kept.
func (c *Coordinator) Shutdown(ctx context.Context) {
	if err := c.loop.Do(ctx, c.teardown); err != nil && !errors.Is(err, eventloop.ErrStopped) {
		c.log.WithError(err).Warn("shutdown")
	}
	c.poll.Close()
	c.cancel()
}

func (c *Coordinator) teardown() {
	c.epoch++
	c.poll.Stop()
	c.closeRoom()
	c.closeTrip()
	c.offers = nil
	c.selected = ""
	c.current = nil
	c.pending = false
}

func (c *Coordinator) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := c.loop.Do(ctx, func() { s = c.snapshot() })
	return s, err
}

func (c *Coordinator) snapshot() Snapshot {
	s := Snapshot{
		Role:             types.RoleDriver,
		Mode:             c.mode,
		Stage:            trip.StageNone,
		Online:           c.mode.IsOnline(),
		ShowOnlineToggle: c.mode.ShowOnlineToggle(),
		Degraded:         c.degraded,
		Offers:           make([]trip.Trip, 0, len(c.offers)),
		Selected:         c.selected,
	}
	for _, o := range c.offers {
		s.Offers = append(s.Offers, o.Clone())
	}
	switch c.mode {
	case ModeOffers:
		s.Stage = trip.StageRequestReceived
	case ModeServing:
		t := c.current.Clone()
		s.Trip = &t
		s.Stage = trip.DriverStageOf(t.Status)
		s.Progress = trip.Progress(t.Status)
	}
	return s
}

// enterWaiting starts an idle online session: role room plus poller.
func (c *Coordinator) enterWaiting() {
	c.mode = ModeWaiting
	c.offers = nil
	c.selected = ""
	c.current = nil
	c.degraded = false
	c.openRoom()
	c.poll.Start(c.bg)
}

func (c *Coordinator) nextToken() uint64 {
	c.tokens++
	return c.tokens
}

func (c *Coordinator) openRoom() {
	c.closeRoom()
	tok := c.nextToken()
	ch, err := c.rt.Open(c.bg, realtime.RoleRoom(), realtime.Handlers{
		OnEvent: func(ev realtime.Event) {
			c.loop.Post(func() { c.onRoomEvent(tok, ev) })
		},
		OnConnect: func(reconnect bool) {
			if reconnect {
				c.loop.Post(func() { c.onRoomEvent(tok, realtime.Event{Type: realtime.EventTripStatusUpdate}) })
			}
		},
		OnDegraded: func() {
			c.loop.Post(func() { c.onRoomDegraded(tok) })
		},
	})
	if err != nil {
		c.log.WithError(err).Warn("open role room")
		c.degraded = true
		c.poll.EnableFallback(true)
		return
	}
	c.room, c.roomTok = ch, tok
}

func (c *Coordinator) closeRoom() {
	if c.room == nil {
		return
	}
	_ = c.room.Close()
	c.room, c.roomTok = nil, 0
}

func (c *Coordinator) openTrip(id types.ID) {
	c.closeTrip()
	tok := c.nextToken()
	ch, err := c.rt.Open(c.bg, realtime.Trip(id), realtime.Handlers{
		OnEvent: func(ev realtime.Event) {
			c.loop.Post(func() { c.onTripEvent(tok, ev) })
		},
		OnConnect: func(bool) {
			c.loop.Post(func() { c.onTripReconcile(tok) })
		},
		OnDegraded: func() {
			c.loop.Post(func() { c.onTripDegraded(tok) })
		},
	})
	if err != nil {
		c.log.WithError(err).WithField("trip_id", id).Warn("open trip channel")
		return
	}
	c.tripCh, c.tripTok = ch, tok
}

func (c *Coordinator) closeTrip() {
	if c.tripCh == nil {
		return
	}
	_ = c.tripCh.Close()
	c.tripCh, c.tripTok = nil, 0
}

func (c *Coordinator) onRoomEvent(tok uint64, ev realtime.Event) {
	if c.room == nil || tok != c.roomTok {
		return
	}
	if c.mode != ModeWaiting && c.mode != ModeOffers {
		return
	}
	c.log.WithField("message", ev.Message).Debug("role room signal; polling")
	c.poll.Trigger()
}

func (c *Coordinator) onRoomDegraded(tok uint64) {
	if c.room == nil || tok != c.roomTok {
		return
	}
	c.degraded = true
	c.poll.EnableFallback(true)
	c.note.Notify(notify.LevelTransient, "Live updates unavailable, checking for trips periodically")
}

func (c *Coordinator) onTripEvent(tok uint64, ev realtime.Event) {
	if c.tripCh == nil || tok != c.tripTok || c.mode != ModeServing || c.current == nil {
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
		if st == trip.StatusCancelled {
			c.note.Notify(notify.LevelInfo, "The passenger cancelled the trip")
		}
		t := c.current.Clone()
		t.Status = st
		c.applyTrip(t)
	case trip.Refetch:
		log.Info("out-of-order push; refetching")
		c.refetch(c.current.ID)
	}
}

func (c *Coordinator) onTripReconcile(tok uint64) {
	if c.tripCh == nil || tok != c.tripTok || c.current == nil {
		return
	}
	c.refetch(c.current.ID)
}

func (c *Coordinator) onTripDegraded(tok uint64) {
	if c.tripCh == nil || tok != c.tripTok || c.current == nil {
		return
	}
	c.degraded = true
	c.note.Notify(notify.LevelTransient, "Live trip updates unavailable")
	c.refetch(c.current.ID)
}

// refetch asks the backend for the trip; its status wins over local state.
func (c *Coordinator) refetch(id types.ID) {
	go func() {
		t, err := c.api.GetTrip(c.bg, id)
		c.loop.Post(func() {
			if c.mode != ModeServing || c.current == nil || c.current.ID != id {
				return
			}
			if err != nil {
				c.report("refresh the current trip", err)
				return
			}
			if t.Status != c.current.Status {
				c.log.WithFields(logrus.Fields{"trip_id": id, "from": c.current.Status, "to": t.Status}).Info("trip reconciled with backend")
			}
			c.applyTrip(t)
		})
	}()
}

func (c *Coordinator) onPoll(res poller.Result) {
	if c.mode != ModeWaiting && c.mode != ModeOffers {
		return
	}
	if res.Err != nil {
		c.report("load available trips", res.Err)
		return
	}
	offers := make([]trip.Trip, 0, len(res.Offers))
	for _, t := range res.Offers {
		if t.Status != trip.StatusSeekingDriver {
			continue
		}
		if _, hidden := c.suppressed[t.ID]; hidden {
			continue
		}
		offers = append(offers, t)
	}
	c.offers = offers
	if _, ok := c.findOffer(c.selected); !ok {
		c.selected = ""
	}
	if len(offers) > 0 {
		c.mode = ModeOffers
	} else {
		c.mode = ModeWaiting
	}
}

// applyTrip makes t the served trip, or ends the duty when the driver is done.
func (c *Coordinator) applyTrip(t trip.Trip) {
	if trip.DriverDone(t.Status) {
		c.finishTrip(t)
		return
	}
	c.current = &t
	c.save()
}

func (c *Coordinator) finishTrip(t trip.Trip) {
	c.log.WithFields(logrus.Fields{"trip_id": t.ID, "status": t.Status}).Info("trip finished for driver")
	c.closeTrip()
	c.current = nil
	c.clearRecord()
	// A restored trip may have been served with the duty flag off.
	if err := c.repo.SetOnline(c.bg, true); err != nil {
		c.log.WithError(err).Error("persist online flag")
	}
	c.enterWaiting()
}

func (c *Coordinator) save() {
	if c.current == nil {
		return
	}
	if err := c.repo.SaveTrip(c.bg, types.RoleDriver, *c.current); err != nil {
		c.log.WithError(err).Error("persist trip record")
	}
}

func (c *Coordinator) clearRecord() {
	if err := c.repo.ClearTrip(c.bg, types.RoleDriver); err != nil {
		c.log.WithError(err).Error("clear trip record")
	}
}

func (c *Coordinator) findOffer(id types.ID) (trip.Trip, bool) {
	if id == "" {
		return trip.Trip{}, false
	}
	for _, o := range c.offers {
		if o.ID == id {
			return o, true
		}
	}
	return trip.Trip{}, false
}

func (c *Coordinator) dropOffer(id types.ID) {
	kept := c.offers[:0]
	for _, o := range c.offers {
		if o.ID != id {
			kept = append(kept, o)
		}
	}
	c.offers = kept
	if c.selected == id {
		c.selected = ""
	}
	if len(c.offers) == 0 && c.mode == ModeOffers {
		c.mode = ModeWaiting
	}
}

// report logs err and turns it into a notification. Safe off the loop.
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
