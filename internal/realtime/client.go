// README: WebSocket channel handle per scope (role room or trip). Reconnects with backoff, then degrades.
package realtime

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ridesync/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Handlers are invoked from the channel's own goroutines. OnEvent calls are
// sequential; OnConnect and OnDegraded run asynchronously.
type Handlers struct {
	OnEvent func(Event)
	// OnConnect fires after each successful join; reconnect is false the first time.
	OnConnect func(reconnect bool)
	// OnDegraded fires once when retries are exhausted. The channel is then dead.
	OnDegraded func()
}

// Channel is an owned subscription. Close removes the handlers, then disconnects.
type Channel interface {
	Scope() Scope
	Close() error
}

type Config struct {
	URL            string
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Client struct {
	cfg      Config
	tokens   TokenSource
	dialer   *websocket.Dialer
	log      *logrus.Entry
	clientID string
}

func NewClient(cfg Config, tokens TokenSource, log *logrus.Entry) *Client {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return &Client{
		cfg:      cfg,
		tokens:   tokens,
		dialer:   &websocket.Dialer{HandshakeTimeout: writeWait},
		log:      logger.OrDiscard(log),
		clientID: uuid.NewString(),
	}
}

// Open starts a channel for scope. Connecting happens in the background; Open
// only fails for an invalid scope.
func (c *Client) Open(ctx context.Context, scope Scope, h Handlers) (Channel, error) {
	if _, err := scope.joinFrame(); err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	hd := &handle{
		client:   c,
		scope:    scope,
		handlers: &h,
		cancel:   cancel,
		done:     make(chan struct{}),
		log:      c.log.WithField("scope", scope.String()),
	}
	go hd.run(runCtx)
	return hd, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("X-Client-ID", c.clientID)
	if c.tokens != nil {
		if tok, err := c.tokens.Token(ctx); err == nil && tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	return conn, err
}

type handle struct {
	client *Client
	scope  Scope
	log    *logrus.Entry

	mu       sync.Mutex
	handlers *Handlers
	conn     *websocket.Conn

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func (h *handle) Scope() Scope { return h.scope }

func (h *handle) Close() error {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.handlers = nil
		conn := h.conn
		h.mu.Unlock()

		h.cancel()
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
		}
	})
	<-h.done
	return nil
}

func (h *handle) current() *Handlers {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handlers
}

func (h *handle) run(ctx context.Context) {
	defer close(h.done)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.client.cfg.InitialBackoff
	b.MaxInterval = h.client.cfg.MaxBackoff
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()

	failures := 0
	everConnected := false
	for {
		conn, err := h.client.dial(ctx)
		if err == nil {
			reconnect := everConnected
			everConnected = true
			failures = 0
			b.Reset()
			h.serve(ctx, conn, reconnect)
			if ctx.Err() != nil {
				return
			}
			h.log.Warn("realtime connection lost")
		} else {
			if ctx.Err() != nil {
				return
			}
			h.log.WithError(err).Debug("realtime dial failed")
		}

		failures++
		if failures > h.client.cfg.MaxRetries {
			h.log.WithField("attempts", failures).Warn("realtime degraded; giving up reconnecting")
			if hs := h.current(); hs != nil && hs.OnDegraded != nil {
				go hs.OnDegraded()
			}
			return
		}
		timer := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (h *handle) serve(ctx context.Context, conn *websocket.Conn, reconnect bool) {
	h.mu.Lock()
	if h.handlers == nil {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.conn = conn
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.conn = nil
		h.mu.Unlock()
		_ = conn.Close()
	}()

	join, _ := h.scope.joinFrame()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(join); err != nil {
		h.log.WithError(err).Warn("realtime join failed")
		return
	}
	h.log.WithField("reconnect", reconnect).Info("realtime joined")
	if hs := h.current(); hs != nil && hs.OnConnect != nil {
		go hs.OnConnect(reconnect)
	}

	readerDone := make(chan struct{})
	go h.readPump(conn, readerDone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-readerDone:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *handle) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).Debug("realtime read ended")
			}
			return
		}
		// Servers may batch several frames separated by newlines.
		for _, part := range bytes.Split(raw, []byte{'\n'}) {
			if len(bytes.TrimSpace(part)) == 0 {
				continue
			}
			ev, err := decodeEvent(part)
			if err != nil {
				h.log.WithError(err).Warn("dropping malformed realtime frame")
				continue
			}
			if !h.scope.accepts(ev.Type) {
				h.log.WithField("type", ev.Type).Debug("ignoring realtime event")
				continue
			}
			if hs := h.current(); hs != nil && hs.OnEvent != nil {
				hs.OnEvent(ev)
			}
		}
	}
}
