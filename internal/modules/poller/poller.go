// README: Availability poller for the idle driver. One fetch at a time; results land on the event loop.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ridesync/internal/logger"
	"ridesync/internal/modules/trip"
)

type Fetcher interface {
	AvailableTrips(ctx context.Context) ([]trip.Trip, error)
}

// Poster is satisfied by *eventloop.Loop.
type Poster interface {
	Post(fn func()) bool
}

// Result of one poll. Offers is nil when Err is set.
type Result struct {
	Offers []trip.Trip
	Err    error
}

type Config struct {
	// FallbackInterval is the idle tick period used while realtime is degraded.
	FallbackInterval time.Duration
	// AlwaysTick keeps the fallback tick on even while realtime is healthy.
	AlwaysTick bool
}

// Poller runs at most one polling session at a time. A session starts with an
// immediate fetch, fetches again on Trigger and, when enabled, on the fallback
// tick. Stop ends the session for good; a later Start opens a new one.
type Poller struct {
	fetch   Fetcher
	loop    Poster
	deliver func(Result)
	cfg     Config
	log     *logrus.Entry

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	trigger  chan struct{}
	fallback chan bool
	done     chan struct{}
}

// New builds a poller. deliver runs on the loop and only for results of the
// session that is still current.
func New(fetch Fetcher, loop Poster, deliver func(Result), cfg Config, log *logrus.Entry) *Poller {
	if cfg.FallbackInterval <= 0 {
		cfg.FallbackInterval = 30 * time.Second
	}
	return &Poller{
		fetch:   fetch,
		loop:    loop,
		deliver: deliver,
		cfg:     cfg,
		log:     logger.OrDiscard(log),
	}
}

// Start opens a new session, ending any previous one.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.gen++
	p.cancel = cancel
	p.trigger = make(chan struct{}, 1)
	p.fallback = make(chan bool, 1)
	p.done = make(chan struct{})
	go p.run(runCtx, p.gen, p.trigger, p.fallback, p.done)
	p.log.WithField("session", p.gen).Debug("polling started")
}

// Stop ends the current session. Results still in flight are discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	p.trigger = nil
	p.fallback = nil
	p.gen++
	p.log.Debug("polling stopped")
}

// Trigger asks for a fetch. Requests made while one is pending coalesce.
func (p *Poller) Trigger() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.trigger == nil {
		return
	}
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// EnableFallback turns the fallback tick on or off for the current session.
func (p *Poller) EnableFallback(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fallback == nil {
		return
	}
	// Only the latest value matters.
	select {
	case <-p.fallback:
	default:
	}
	p.fallback <- on
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Close stops the session and waits for its goroutine. Never call it from the loop.
func (p *Poller) Close() {
	p.mu.Lock()
	done := p.done
	p.stopLocked()
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Poller) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen == gen && p.cancel != nil
}

func (p *Poller) run(ctx context.Context, gen uint64, trigger <-chan struct{}, fallback <-chan bool, done chan<- struct{}) {
	defer close(done)

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	setTick := func(on bool) {
		on = on || p.cfg.AlwaysTick
		switch {
		case on && ticker == nil:
			ticker = time.NewTicker(p.cfg.FallbackInterval)
			tick = ticker.C
		case !on && ticker != nil:
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	setTick(false)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	p.poll(ctx, gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
			p.poll(ctx, gen)
		case <-tick:
			p.poll(ctx, gen)
		case on := <-fallback:
			setTick(on)
		}
	}
}

func (p *Poller) poll(ctx context.Context, gen uint64) {
	offers, err := p.fetch.AvailableTrips(ctx)
	if ctx.Err() != nil {
		return
	}
	res := Result{Offers: offers, Err: err}
	if err != nil {
		res.Offers = nil
		p.log.WithError(err).Warn("poll available trips failed")
	}
	p.loop.Post(func() {
		if !p.current(gen) {
			return
		}
		p.deliver(res)
	})
}
