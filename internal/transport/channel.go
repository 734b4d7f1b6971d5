package transport

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/metrics"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/validator"
)

// ConnectionState is the push channel's connection lifecycle state.
type ConnectionState string

// Connection states. The channel cycles through the first three on its
// own; FAILED_PERMANENTLY is terminal and only ever entered when the
// owner shuts the channel down.
const (
	StateConnecting     ConnectionState = "CONNECTING"
	StateOpen           ConnectionState = "OPEN"
	StateClosedRetrying ConnectionState = "CLOSED_RETRYING"
	StateFailed         ConnectionState = "FAILED_PERMANENTLY"
)

// EventKind discriminates decoded push events.
type EventKind string

// Event kinds
const (
	EventAlert  EventKind = "alert"
	EventHealth EventKind = "health"
)

// Event is one decoded, validated push frame. Generation records the
// connection that produced it, so a consumer can discard frames that
// outlived their connection after a reconnect.
type Event struct {
	Kind       EventKind
	Alert      alert.Alert   // set when Kind == EventAlert
	Health     HealthPayload // set when Kind == EventHealth
	Generation uint64
}

// StateChange reports a connection state transition. Generation counts
// successful connects, so consumers can tell a fresh OPEN from a stale one.
type StateChange struct {
	State      ConnectionState
	Generation uint64
	At         time.Time
}

// Config contains push channel configuration
type Config struct {
	URL         string
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	EventBuffer int
	Header      http.Header // optional extra handshake headers (auth)
}

// Channel owns a single websocket connection to the alert push endpoint
// and keeps it alive forever: connection drops put it into
// CLOSED_RETRYING and an exponential backoff loop, never a terminal
// state. Decoded frames come out of Events; state transitions out of
// States.
type Channel struct {
	cfg    Config
	log    *logger.Logger
	dialer *websocket.Dialer
	check  *validator.Validator

	events chan Event
	states chan StateChange

	mu         sync.RWMutex
	state      ConnectionState
	generation uint64

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a push channel. Run must be called to start it.
func New(cfg Config, log *logger.Logger) *Channel {
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = time.Second
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = time.Minute
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}

	return &Channel{
		cfg:    cfg,
		log:    log.Component("transport"),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		check:  validator.New(),
		events: make(chan Event, cfg.EventBuffer),
		states: make(chan StateChange, 16),
		state:  StateConnecting,
		closed: make(chan struct{}),
	}
}

// Events returns the decoded push event stream.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// States returns the connection state transition stream.
func (c *Channel) States() <-chan StateChange {
	return c.states
}

// State returns the current connection state.
func (c *Channel) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Generation returns the number of successful connects so far.
func (c *Channel) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Close shuts the channel down for good. Safe to call more than once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

// Run connects and keeps reading until ctx is cancelled or Close is
// called. It owns the events channel and closes it on exit.
func (c *Channel) Run(ctx context.Context) {
	defer close(c.events)
	defer c.setState(StateFailed)

	attempt := 0
	for {
		if c.done(ctx) {
			return
		}

		c.setState(StateConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			attempt++
			backoff := c.backoffDuration(attempt)
			metrics.RecordReconnect()
			c.setState(StateClosedRetrying)
			c.log.WithError(err).
				WithFields(map[string]interface{}{"backoff": backoff.String(), "attempt": attempt}).
				Warn("push channel connect failed, retrying")

			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return
			case <-c.closed:
				return
			}
		}

		attempt = 0
		c.mu.Lock()
		c.generation++
		gen := c.generation
		c.mu.Unlock()
		c.setState(StateOpen)
		c.log.WithFields(map[string]interface{}{"url": c.cfg.URL, "generation": gen}).
			Info("push channel open")

		err = c.readLoop(ctx, conn, gen)
		conn.Close()
		if c.done(ctx) {
			return
		}

		metrics.RecordReconnect()
		c.setState(StateClosedRetrying)
		c.log.WithError(err).Warn("push channel dropped, reconnecting")
	}
}

// dial attempts a single websocket connect, honoring teardown.
func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-dialCtx.Done():
		}
	}()

	conn, resp, err := c.dialer.DialContext(dialCtx, c.cfg.URL, c.cfg.Header)
	if resp != nil && resp.Body != nil && err != nil {
		resp.Body.Close()
	}
	return conn, err
}

// readLoop consumes frames until the connection breaks or teardown starts.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, gen uint64) error {
	// Unblock ReadMessage when the owner tears the channel down.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-c.closed:
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleFrame(payload, gen)
	}
}

// handleFrame decodes one frame and emits the event it carries, stamped
// with the producing connection's generation. Malformed payloads are
// dropped and logged; they never stop the read loop.
func (c *Channel) handleFrame(payload []byte, gen uint64) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		metrics.RecordFrame("unknown", "malformed")
		c.log.WithError(err).Warn("dropping undecodable push frame")
		return
	}

	switch env.Type {
	case MessageTypeAlert:
		var dto alert.DTO
		if err := json.Unmarshal(env.Data, &dto); err != nil {
			metrics.RecordFrame(env.Type, "malformed")
			c.log.WithError(err).Warn("dropping malformed realtime_alert frame")
			return
		}
		a, err := alert.FromDTO(dto, alert.OriginLive, time.Now())
		if err != nil {
			metrics.RecordFrame(env.Type, "malformed")
			c.log.WithError(err).Warn("dropping invalid realtime_alert frame")
			return
		}
		c.emit(env.Type, Event{Kind: EventAlert, Alert: a, Generation: gen})

	case MessageTypeHealth:
		var h HealthPayload
		if err := json.Unmarshal(env.Data, &h); err != nil {
			metrics.RecordFrame(env.Type, "malformed")
			c.log.WithError(err).Warn("dropping malformed system_health frame")
			return
		}
		if err := c.check.ValidateErr(h); err != nil {
			metrics.RecordFrame(env.Type, "malformed")
			c.log.WithError(err).Warn("dropping invalid system_health frame")
			return
		}
		c.emit(env.Type, Event{Kind: EventHealth, Health: h, Generation: gen})

	default:
		metrics.RecordFrame(env.Type, "ignored")
		c.log.Debugf("ignoring push frame of unknown type %q", env.Type)
	}
}

// emit hands an event to the consumer without ever blocking the read
// loop. A full buffer drops the frame; the next snapshot poll restores
// anything missed.
func (c *Channel) emit(frameType string, ev Event) {
	select {
	case c.events <- ev:
		metrics.RecordFrame(frameType, "ok")
	default:
		metrics.RecordFrame(frameType, "dropped")
		c.log.Warn("event buffer full, dropping push frame")
	}
}

// setState records a state transition and publishes it.
func (c *Channel) setState(s ConnectionState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	gen := c.generation
	c.mu.Unlock()

	metrics.SetConnectionState(string(s))
	change := StateChange{State: s, Generation: gen, At: time.Now()}
	select {
	case c.states <- change:
	default:
		// Consumer is far behind; the current state remains readable
		// through State().
	}
}

// done reports whether teardown has started.
func (c *Channel) done(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.closed:
		return true
	default:
		return false
	}
}

// backoffDuration calculates exponential backoff with jitter
func (c *Channel) backoffDuration(attempt int) time.Duration {
	if attempt <= 0 {
		return c.cfg.BackoffMin
	}
	backoff := c.cfg.BackoffMin << attempt
	if backoff > c.cfg.BackoffMax || backoff <= 0 {
		backoff = c.cfg.BackoffMax
	}
	jitter := time.Duration(rand.Int63n(int64(c.cfg.BackoffMin)))
	return backoff + jitter
}
