// README: Passenger actions: quote, book, cancel, confirm completion, rate.
package passenger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"ridesync/internal/backend"
	"ridesync/internal/modules/fare"
	"ridesync/internal/modules/trip"
	"ridesync/internal/notify"
	"ridesync/internal/types"
)

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

// end applies the outcome unless a Reset happened since begin.
func (c *Coordinator) end(epoch uint64, action string, apply func() error) error {
	var err error
	if derr := c.loop.Do(c.bg, func() {
		if c.stale(epoch, action) {
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

func (c *Coordinator) stale(epoch uint64, action string) bool {
	if epoch == c.epoch {
		return false
	}
	c.log.WithField("action", action).Warn("session reset while request was in flight; outcome dropped")
	return true
}

func (c *Coordinator) currentEpoch() (uint64, error) {
	var epoch uint64
	err := c.loop.Do(c.bg, func() { epoch = c.epoch })
	return epoch, err
}

// Quote prices a route. The result replaces any previous quote; with an
// active trip the chosen tolls are also saved on the backend.
func (c *Coordinator) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if req.Pickup.Point.IsZero() || req.Dropoff.Point.IsZero() {
		return Quote{}, fmt.Errorf("%w: pickup and dropoff are required", ErrBadRequest)
	}
	vehicle := strings.TrimSpace(req.VehicleType)
	if vehicle == "" {
		vehicle = fare.Vehicles[0].ID
	}
	if _, ok := fare.LookupVehicle(vehicle); !ok {
		return Quote{}, fmt.Errorf("%w: %q", fare.ErrUnknownVehicle, vehicle)
	}
	chosen, err := fare.SelectTunnels(req.Tunnels)
	if err != nil {
		return Quote{}, err
	}
	epoch, err := c.currentEpoch()
	if err != nil {
		return Quote{}, err
	}

	pickup, dropoff := c.locate(ctx, req.Pickup), c.locate(ctx, req.Dropoff)
	plan := c.planner.Plan(pickup.District, dropoff.District)

	names := make([]string, 0, len(chosen))
	for _, t := range chosen {
		names = append(names, t.Name)
	}
	q := Quote{
		Pickup:       trip.Place{Point: pickup.Point, Address: pickup.Address},
		Dropoff:      trip.Place{Point: dropoff.Point, Address: dropoff.Address},
		VehicleType:  vehicle,
		TunnelGroups: plan.Groups,
		Direction:    plan.Direction,
		Extras:       append([]trip.LineItem(nil), req.Extras...),
	}

	route, err := c.api.CalculateRoute(ctx, backend.RouteRequest{
		Origin:      pickup.Point,
		Destination: dropoff.Point,
		Tunnels:     names,
		Direction:   plan.Direction,
	})
	switch {
	case err == nil:
		q.Path = route.Path
		q.DistanceMeters = route.DistanceMeters
		q.DurationSeconds = route.DurationSeconds
		q.Tolls = route.Tunnels
		q.TollSum = route.TollSum
	case errors.Is(err, backend.ErrTransient) && c.router != nil:
		c.log.WithError(err).Warn("route oracle unavailable; using maps estimate")
		est, rerr := c.router.DrivingEstimate(ctx, pickup.Point, dropoff.Point)
		if rerr != nil {
			c.report("calculate the route", err)
			return Quote{}, err
		}
		q.Path = est.Path
		q.DistanceMeters = est.DistanceMeters
		q.DurationSeconds = est.DurationSeconds
		q.Tolls = chosen
		q.TollSum = trip.SumItems(chosen)
		q.Approximate = true
	default:
		c.report("calculate the route", err)
		return Quote{}, err
	}

	price, err := fare.Estimate(vehicle, q.DistanceMeters, q.TollSum, q.Extras)
	if err != nil {
		return Quote{}, err
	}
	q.Price = price

	var active types.ID
	var stale bool
	if err := c.loop.Do(c.bg, func() {
		if stale = c.stale(epoch, "quote"); stale {
			return
		}
		stored := q.clone()
		c.quote = &stored
		if c.mode == ModeActive && c.current != nil {
			active = c.current.ID
		}
	}); err != nil {
		return Quote{}, err
	}
	if stale {
		return Quote{}, ErrReset
	}
	if active != "" {
		c.saveTolls(ctx, active, q.Tolls)
	}
	return q, nil
}

func (c *Coordinator) saveTolls(ctx context.Context, id types.ID, tolls []trip.LineItem) {
	if err := c.api.PatchTrip(ctx, id, backend.TripPatch{SelectedTunnels: tolls}); err != nil {
		c.report("save the tunnel selection", err)
		return
	}
	_ = c.loop.Do(c.bg, func() {
		if c.mode != ModeActive || c.current == nil || c.current.ID != id {
			return
		}
		c.current.Tolls = append([]trip.LineItem(nil), tolls...)
		c.current.TollSum = trip.SumItems(tolls)
		c.save()
	})
}

// locate fills a missing district from the locator. Lookup failures leave it empty.
func (c *Coordinator) locate(ctx context.Context, in PlaceInput) PlaceInput {
	if in.District != "" || c.locator == nil {
		return in
	}
	p, err := c.locator.Reverse(ctx, in.Point)
	if err != nil {
		c.log.WithError(err).Debug("reverse geocode")
		return in
	}
	in.District = p.District
	if in.Address == "" {
		in.Address = p.Address
	}
	return in
}

// Book creates a trip from the current quote and starts listening to it.
func (c *Coordinator) Book(ctx context.Context) (trip.Trip, error) {
	var q Quote
	epoch, err := c.begin(func() error {
		if c.mode != ModeIdle {
			return ErrInvalidAction
		}
		if c.quote == nil {
			return ErrNoQuote
		}
		q = c.quote.clone()
		return nil
	})
	if err != nil {
		return trip.Trip{}, err
	}

	var passengerID types.ID
	if creds, ok, err := c.repo.Credentials(ctx); err == nil && ok {
		passengerID = creds.User.ID
	}
	created, err := c.api.CreateTrip(ctx, backend.CreateTripRequest{
		PassengerID:       passengerID,
		Pickup:            q.Pickup,
		Dropoff:           q.Dropoff,
		VehicleType:       q.VehicleType,
		EstimatedPrice:    q.Price.Amount,
		EstimatedDuration: q.DurationSeconds,
		DistanceMeters:    q.DistanceMeters,
		RoutePath:         q.Path,
		Tolls:             q.Tolls,
		Extras:            q.Extras,
	})
	if err != nil {
		if eerr := c.end(epoch, "book", func() error { return nil }); errors.Is(eerr, ErrReset) {
			return trip.Trip{}, eerr
		}
		c.report("book the trip", err)
		return trip.Trip{}, err
	}
	if !created.Status.Valid() || trip.IsTerminal(created.Status) {
		created.Status = trip.StatusSeekingDriver
	}

	err = c.end(epoch, "book", func() error {
		c.quote = nil
		c.ratingTrip = ""
		c.mode = ModeActive
		c.current = &created
		c.save()
		c.openTrip(created.ID)
		c.log.WithField("trip_id", created.ID).Info("trip booked")
		return nil
	})
	if err != nil {
		return trip.Trip{}, err
	}
	return created.Clone(), nil
}

// Cancel cancels the active trip.
func (c *Coordinator) Cancel(ctx context.Context) error {
	return c.transition(ctx, nil, trip.StatusCancelled, "cancel the trip")
}

// ConfirmCompletion completes an arrived trip and opens the rating prompt.
func (c *Coordinator) ConfirmCompletion(ctx context.Context) error {
	arrived := trip.StatusArrived
	return c.transition(ctx, &arrived, trip.StatusCompleted, "confirm completion")
}

func (c *Coordinator) transition(ctx context.Context, want *trip.Status, next trip.Status, action string) error {
	var id types.ID
	epoch, err := c.begin(func() error {
		if c.mode != ModeActive || c.current == nil || trip.IsTerminal(c.current.Status) {
			return ErrInvalidAction
		}
		if want != nil && c.current.Status != *want {
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
		if c.mode != ModeActive || c.current == nil || c.current.ID != id {
			return err
		}
		log := c.log.WithFields(logrus.Fields{"trip_id": id, "to": next})
		if err != nil {
			if backend.IsStale(err) {
				log.WithError(err).Info("trip changed elsewhere; refetching")
				c.note.Notify(notify.LevelTransient, "Your trip was updated, refreshing")
				c.refetch(id)
				return err
			}
			c.report(action, err)
			return err
		}
		log.Info("trip updated")
		t := c.current.Clone()
		t.Status = next
		c.applyTrip(t)
		return nil
	})
}

// SubmitRating closes the rating prompt. The backend has no rating endpoint;
// the score is recorded in the log.
func (c *Coordinator) SubmitRating(ctx context.Context, stars int) error {
	if stars < 1 || stars > 5 {
		return fmt.Errorf("%w: rating must be 1..5", ErrBadRequest)
	}
	var err error
	if derr := c.loop.Do(ctx, func() {
		if c.mode != ModeRating {
			err = ErrInvalidAction
			return
		}
		c.log.WithFields(logrus.Fields{"trip_id": c.ratingTrip, "stars": stars}).Info("driver rated")
		c.ratingTrip = ""
		c.mode = ModeIdle
		c.note.Notify(notify.LevelInfo, "Thanks for your rating")
	}); derr != nil {
		return derr
	}
	return err
}
