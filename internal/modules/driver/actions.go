// README: Driver actions. Each one validates on the loop, calls the backend, then applies on the loop.
package driver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"ridesync/internal/backend"
	"ridesync/internal/modules/trip"
	"ridesync/internal/notify"
	"ridesync/internal/types"
)

// begin runs check on the loop and claims the action slot when it passes.
// The returned epoch must be handed to end.
func (c *Coordinator) begin(check func() error) (uint64, error) {
	var (
		err   error
		epoch uint64
	)
	if derr := c.loop.Do(c.bg, func() {
		if c.pending {
			err = ErrBusy
			return
		}
		if err = check(); err == nil {
			c.pending = true
			epoch = c.epoch
		}
	}); derr != nil {
		return 0, derr
	}
	return epoch, err
}

// end releases the action slot and applies the outcome on the loop. An
// outcome from before a Reset is dropped: the state it belongs to is gone.
func (c *Coordinator) end(epoch uint64, action string, apply func() error) error {
	var err error
	if derr := c.loop.Do(c.bg, func() {
		if epoch != c.epoch {
			c.log.WithField("action", action).Warn("session reset while request was in flight; outcome dropped")
			err = ErrReset
			return
		}
		c.pending = false
		err = apply()
	}); derr != nil {
		return derr
	}
	return err
}

// local runs a loop-only action.
func (c *Coordinator) local(fn func() error) error {
	var err error
	if derr := c.loop.Do(c.bg, func() {
		if c.pending {
			err = ErrBusy
			return
		}
		err = fn()
	}); derr != nil {
		return derr
	}
	return err
}

func (c *Coordinator) GoOnline(ctx context.Context) error {
	return c.local(func() error {
		if c.mode != ModeOffline {
			return nil
		}
		for id, accepted := range c.suppressed {
			if !accepted {
				delete(c.suppressed, id)
			}
		}
		if err := c.repo.SetOnline(ctx, true); err != nil {
			c.log.WithError(err).Error("persist online flag")
		}
		c.enterWaiting()
		c.log.Info("driver online")
		return nil
	})
}

func (c *Coordinator) GoOffline(ctx context.Context) error {
	return c.local(func() error {
		switch c.mode {
		case ModeOffline:
			return nil
		case ModeServing:
			return ErrInvalidAction
		}
		c.poll.Stop()
		c.closeRoom()
		c.offers = nil
		c.selected = ""
		c.degraded = false
		c.mode = ModeOffline
		if err := c.repo.SetOnline(ctx, false); err != nil {
			c.log.WithError(err).Error("persist online flag")
		}
		c.log.Info("driver offline")
		return nil
	})
}

// Select marks an offer as the tentative choice.
func (c *Coordinator) Select(_ context.Context, id types.ID) error {
	return c.local(func() error {
		if c.mode != ModeOffers {
			return ErrInvalidAction
		}
		if _, ok := c.findOffer(id); !ok {
			c.note.Notify(notify.LevelTransient, "This trip is no longer available")
			return ErrOfferUnavailable
		}
		c.selected = id
		return nil
	})
}

// Accept claims an offer. On success the whole offer set is discarded, polling
// stops and the trip channel replaces the role room.
func (c *Coordinator) Accept(ctx context.Context, id types.ID) error {
	var offer trip.Trip
	epoch, err := c.begin(func() error {
		if c.mode != ModeOffers && c.mode != ModeWaiting {
			return ErrInvalidAction
		}
		o, ok := c.findOffer(id)
		if !ok {
			c.note.Notify(notify.LevelTransient, "This trip is no longer available")
			return ErrOfferUnavailable
		}
		offer = o
		return nil
	})
	if err != nil {
		return err
	}

	log := c.log.WithField("trip_id", id)
	if err := c.api.UpdateStatus(ctx, id, trip.StatusAccepted); err != nil {
		return c.end(epoch, "accept", func() error {
			if backend.IsStale(err) {
				log.WithError(err).Info("offer taken or withdrawn")
				c.note.Notify(notify.LevelTransient, "This trip is no longer available")
				c.suppressed[id] = false
				c.dropOffer(id)
				c.poll.Trigger()
				return fmt.Errorf("%w: %w", ErrOfferUnavailable, err)
			}
			c.report("accept the trip", err)
			return err
		})
	}

	t, err := c.api.GetTrip(ctx, id)
	if err != nil {
		log.WithError(err).Warn("fetch accepted trip; using offer data")
		t = offer.Clone()
	}
	if trip.Rank(t.Status) < trip.Rank(trip.StatusAccepted) {
		t.Status = trip.StatusAccepted
	}

	return c.end(epoch, "accept", func() error {
		c.suppressed[id] = true
		c.offers = nil
		c.selected = ""
		c.poll.Stop()
		c.closeRoom()
		c.degraded = false
		c.mode = ModeServing
		c.openTrip(id)
		c.applyTrip(t)
		log.WithField("status", t.Status).Info("trip accepted")
		return nil
	})
}

// Decline hides one offer. A declined offer that was selected is also
// cancelled on the backend.
func (c *Coordinator) Decline(ctx context.Context, id types.ID) error {
	var patch bool
	epoch, err := c.begin(func() error {
		if c.mode != ModeOffers {
			return ErrInvalidAction
		}
		if _, ok := c.findOffer(id); !ok {
			return ErrOfferUnavailable
		}
		patch = id == c.selected
		return nil
	})
	if err != nil {
		return err
	}

	if patch {
		err = c.api.UpdateStatus(ctx, id, trip.StatusCancelled)
	}
	return c.end(epoch, "decline", func() error {
		if err != nil && !backend.IsStale(err) {
			c.report("decline the trip", err)
			return err
		}
		if _, hidden := c.suppressed[id]; !hidden {
			c.suppressed[id] = false
		}
		c.dropOffer(id)
		return nil
	})
}

// DeclineAll discards the current offer set.
func (c *Coordinator) DeclineAll(context.Context) error {
	return c.local(func() error {
		switch c.mode {
		case ModeWaiting:
			return nil
		case ModeOffers:
		default:
			return ErrInvalidAction
		}
		for _, o := range c.offers {
			if _, hidden := c.suppressed[o.ID]; !hidden {
				c.suppressed[o.ID] = false
			}
		}
		c.offers = nil
		c.selected = ""
		c.mode = ModeWaiting
		return nil
	})
}

func (c *Coordinator) ArriveAtPickup(ctx context.Context) error {
	return c.advance(ctx, trip.DriverStage(trip.StatusEnRouteToPickup), trip.StatusArrivedAtPickup, "mark arrival at pickup")
}

func (c *Coordinator) StartTrip(ctx context.Context) error {
	return c.advance(ctx, trip.DriverStage(trip.StatusArrivedAtPickup), trip.StatusInProgress, "start the trip")
}

// ArriveAtDestination ends the driver's duty: the record is cleared and the
// driver goes back to waiting for offers.
func (c *Coordinator) ArriveAtDestination(ctx context.Context) error {
	return c.advance(ctx, trip.DriverStage(trip.StatusInProgress), trip.StatusArrived, "mark arrival at destination")
}

func (c *Coordinator) Cancel(ctx context.Context) error {
	return c.advance(ctx, "", trip.StatusCancelled, "cancel the trip")
}

// advance moves the served trip to next. An empty want accepts any stage.
func (c *Coordinator) advance(ctx context.Context, want trip.DriverStage, next trip.Status, action string) error {
	var id types.ID
	epoch, err := c.begin(func() error {
		if c.mode != ModeServing || c.current == nil {
			return ErrInvalidAction
		}
		if want != "" && trip.DriverStageOf(c.current.Status) != want {
			return ErrInvalidAction
		}
		id = c.current.ID
		return nil
	})
	if err != nil {
		return err
	}

	err = c.api.UpdateStatus(ctx, id, next)
	return c.end(epoch, action, func() error {
		if c.mode != ModeServing || c.current == nil || c.current.ID != id {
			// A push ended the trip while the call was in flight.
			if err != nil {
				return err
			}
			return nil
		}
		log := c.log.WithFields(logrus.Fields{"trip_id": id, "to": next})
		if err != nil {
			if backend.IsStale(err) {
				log.WithError(err).Info("trip changed elsewhere; refetching")
				c.note.Notify(notify.LevelTransient, "The trip was updated, refreshing")
				c.refetch(id)
				return err
			}
			c.report(action, err)
			return err
		}
		if trip.ReconcilePush(c.current.Status, next) != trip.Apply {
			return nil
		}
		t := c.current.Clone()
		t.Status = next
		c.applyTrip(t)
		log.Info("trip advanced")
		return nil
	})
}

func (c *Coordinator) Profile(ctx context.Context) (backend.DriverProfile, error) {
	p, err := c.api.Profile(ctx)
	if err != nil {
		c.report("load your profile", err)
	}
	return p, err
}

func (c *Coordinator) UpdateProfile(ctx context.Context, p backend.DriverProfile) (backend.DriverProfile, error) {
	out, err := c.api.UpdateProfile(ctx, p)
	if err != nil {
		c.report("save your profile", err)
	}
	return out, err
}
