// README: In-memory realtime opener for coordinator tests.
package realtimetest

import (
	"context"
	"sync"

	"ridesync/internal/realtime"
)

// Opener records every channel it opens.
type Opener struct {
	mu       sync.Mutex
	channels []*Channel
}

func (o *Opener) Open(_ context.Context, scope realtime.Scope, h realtime.Handlers) (realtime.Channel, error) {
	ch := &Channel{scope: scope, h: h}
	o.mu.Lock()
	o.channels = append(o.channels, ch)
	o.mu.Unlock()
	return ch, nil
}

// OpenChannels returns the channels that are still open, oldest first.
func (o *Opener) OpenChannels() []*Channel {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*Channel
	for _, ch := range o.channels {
		if !ch.Closed() {
			out = append(out, ch)
		}
	}
	return out
}

// Last returns the most recently opened channel for scope, open or not.
func (o *Opener) Last(scope realtime.Scope) *Channel {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.channels) - 1; i >= 0; i-- {
		if o.channels[i].scope == scope {
			return o.channels[i]
		}
	}
	return nil
}

type Channel struct {
	scope realtime.Scope
	h     realtime.Handlers

	mu     sync.Mutex
	closed bool
}

func (c *Channel) Scope() realtime.Scope { return c.scope }

func (c *Channel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Push delivers ev unless the channel is closed.
func (c *Channel) Push(ev realtime.Event) {
	if c.Closed() || c.h.OnEvent == nil {
		return
	}
	c.h.OnEvent(ev)
}

// PushStale delivers ev even after Close, like a callback already in flight.
func (c *Channel) PushStale(ev realtime.Event) {
	if c.h.OnEvent != nil {
		c.h.OnEvent(ev)
	}
}

func (c *Channel) Connect(reconnect bool) {
	if c.h.OnConnect != nil {
		c.h.OnConnect(reconnect)
	}
}

func (c *Channel) Degrade() {
	if c.h.OnDegraded != nil {
		c.h.OnDegraded()
	}
}

// Status builds a trip-scoped status push.
func Status(status string) realtime.Event {
	return realtime.Event{Type: realtime.EventInTripStatusUpdate, Status: status, Message: "status changed"}
}

// Signal builds a role-room refresh signal.
func Signal() realtime.Event {
	return realtime.Event{Type: realtime.EventTripStatusUpdate, Message: "trips changed"}
}
