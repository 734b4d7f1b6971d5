// Package monitor runs the reconciliation event loop. Live push events,
// snapshot polls, and lifecycle commands all funnel into one goroutine
// that owns the working set, so no merge ever races another, and the
// loop publishes an immutable view of the reconciled state for rendering.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	"github.com/cisseniang564/ProvTech-sub001/internal/lifecycle"
	apperrors "github.com/cisseniang564/ProvTech-sub001/internal/pkg/errors"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
	"github.com/cisseniang564/ProvTech-sub001/internal/reconcile"
	"github.com/cisseniang564/ProvTech-sub001/internal/snapshot"
	"github.com/cisseniang564/ProvTech-sub001/internal/transport"
)

// ErrStopped is returned by lifecycle operations once the event loop has
// exited.
var ErrStopped = errors.New("monitor stopped")

// PushSource is the live side of the reconciler: decoded push events
// plus connection state transitions. *transport.Channel implements it.
type PushSource interface {
	Events() <-chan transport.Event
	States() <-chan transport.StateChange
}

// SnapshotSource is the authoritative side: completed polls plus a way
// to request one out of schedule. *snapshot.Fetcher implements it.
type SnapshotSource interface {
	Snapshots() <-chan snapshot.Result
	TriggerResync()
	LastSync() time.Time
}

// Notifier receives first-seen alerts and action failures.
// *notify.Dispatcher implements it.
type Notifier interface {
	Dispatch(a alert.Alert)
	Flush()
	ActionFailed(action, alertID string, err error)
}

// View is a snapshot of the reconciled state for rendering. Its contents
// are rebuilt on every publish and never mutated afterwards, so callers
// may hold on to them.
type View struct {
	Alerts     []alert.Alert
	Recent     []alert.Alert
	Counts     reconcile.Counts
	Connection transport.ConnectionState
	Generation uint64
	LastSync   time.Time
	Health     *transport.HealthPayload
	UpdatedAt  time.Time
}

// Config tunes the monitor.
type Config struct {
	// FlushInterval is how often folded-up notifications are released as
	// a digest. Defaults to 5s.
	FlushInterval time.Duration
}

type command struct {
	fn   func(*reconcile.Store)
	done chan struct{}
}

// Monitor owns the working set and the event loop around it.
type Monitor struct {
	push     PushSource
	snaps    SnapshotSource
	store    *reconcile.Store
	notifier Notifier
	ctrl     *lifecycle.Controller
	log      *logger.Logger

	flushEvery time.Duration

	cmds    chan command
	updates chan struct{}
	stopped chan struct{}

	// conn and health are only touched by the loop goroutine.
	conn   transport.StateChange
	health *transport.HealthPayload

	mu   sync.RWMutex
	view View
}

// New wires a monitor. api and actor configure the lifecycle controller
// that Acknowledge and Resolve delegate to.
func New(push PushSource, snaps SnapshotSource, store *reconcile.Store, notifier Notifier, api lifecycle.AlertAPI, actor string, cfg Config, log *logger.Logger) *Monitor {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	m := &Monitor{
		push:       push,
		snaps:      snaps,
		store:      store,
		notifier:   notifier,
		log:        log.Component("monitor"),
		flushEvery: cfg.FlushInterval,
		cmds:       make(chan command, 16),
		updates:    make(chan struct{}, 1),
		stopped:    make(chan struct{}),
		conn:       transport.StateChange{State: transport.StateConnecting},
	}
	m.ctrl = lifecycle.New(m, api, actor, log)
	m.publish()
	return m
}

// Run processes events until ctx is cancelled. Call it exactly once.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.stopped)

	m.log.Info("monitor started")
	flush := time.NewTicker(m.flushEvery)
	defer flush.Stop()

	events := m.push.Events()
	states := m.push.States()
	snaps := m.snaps.Snapshots()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			m.handleEvent(ev)
		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			m.handleState(st)
		case res, ok := <-snaps:
			if !ok {
				snaps = nil
				continue
			}
			delta := m.store.ApplySnapshot(res.Alerts, res.StartedAt)
			m.dispatchFirstSeen(delta)
			m.publish()
		case cmd := <-m.cmds:
			cmd.fn(m.store)
			close(cmd.done)
			m.publish()
		case <-flush.C:
			m.notifier.Flush()
		case <-ctx.Done():
			m.log.Info("monitor stopped")
			return
		}
	}
}

// View returns the latest published view.
func (m *Monitor) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view
}

// Updates signals view changes. Signals coalesce: a slow reader finds at
// most one pending signal, never a backlog.
func (m *Monitor) Updates() <-chan struct{} {
	return m.updates
}

// Resync asks the fetcher for an immediate authoritative poll.
func (m *Monitor) Resync() {
	m.snaps.TriggerResync()
}

// Acknowledge runs the acknowledge round trip for an alert. Failures of
// the round trip itself additionally surface as an error toast; locally
// rejected transitions just come back to the caller.
func (m *Monitor) Acknowledge(ctx context.Context, id string) error {
	err := m.ctrl.Acknowledge(ctx, id)
	if apperrors.IsLifecycleAction(err) {
		m.notifier.ActionFailed("acknowledge", id, err)
	}
	return err
}

// Resolve runs the resolve round trip for an alert.
func (m *Monitor) Resolve(ctx context.Context, id, notes string) error {
	err := m.ctrl.Resolve(ctx, id, notes)
	if apperrors.IsLifecycleAction(err) {
		m.notifier.ActionFailed("resolve", id, err)
	}
	return err
}

// Exec satisfies lifecycle.Executor: fn runs on the loop goroutine that
// owns the working set, and Exec returns once it has.
func (m *Monitor) Exec(ctx context.Context, fn func(*reconcile.Store)) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case m.cmds <- cmd:
	case <-m.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		return nil
	case <-m.stopped:
		// The loop may have run the command right before exiting.
		select {
		case <-cmd.done:
			return nil
		default:
		}
		return ErrStopped
	}
}

// handleEvent applies one push event, unless it is stale. A frame read
// before a disconnect can sit in the event buffer until after the
// post-reconnect resync has ruled; merging it then would resurrect
// alerts the authoritative snapshot just retired.
func (m *Monitor) handleEvent(ev transport.Event) {
	if m.staleEvent(ev) {
		m.log.WithFields(map[string]interface{}{
			"generation": ev.Generation,
			"current":    m.conn.Generation,
			"state":      string(m.conn.State),
		}).Debug("dropping push event from a stale connection")
		return
	}

	switch ev.Kind {
	case transport.EventAlert:
		delta := m.store.ApplyLive(ev.Alert)
		m.dispatchFirstSeen(delta)
	case transport.EventHealth:
		h := ev.Health
		m.health = &h
	}
	m.publish()
}

// staleEvent reports whether ev was produced by a connection that is no
// longer current: an older generation than the latest observed, or the
// observed generation after the channel reported it dropped. Events from
// a newer generation than any state change seen so far always pass; the
// states channel may lag the event stream on a fresh connect.
func (m *Monitor) staleEvent(ev transport.Event) bool {
	if ev.Generation < m.conn.Generation {
		return true
	}
	return ev.Generation == m.conn.Generation && m.conn.State != transport.StateOpen
}

// handleState tracks the connection and, on every successful
// (re)connect, requests a snapshot right away: anything pushed while the
// channel was down stays invisible until a poll rules on it.
func (m *Monitor) handleState(st transport.StateChange) {
	m.conn = st
	if st.State == transport.StateOpen {
		m.log.WithFields(map[string]interface{}{
			"generation": st.Generation,
		}).Info("push channel open, requesting resync")
		m.snaps.TriggerResync()
	}
	m.publish()
}

func (m *Monitor) dispatchFirstSeen(delta reconcile.Delta) {
	for _, a := range delta.FirstSeen {
		m.notifier.Dispatch(a)
	}
}

// publish rebuilds the view and signals watchers. Loop goroutine only.
func (m *Monitor) publish() {
	v := View{
		Alerts:     m.store.List(),
		Recent:     m.store.Recent(),
		Counts:     m.store.Counts(),
		Connection: m.conn.State,
		Generation: m.conn.Generation,
		LastSync:   m.snaps.LastSync(),
		UpdatedAt:  time.Now(),
	}
	if m.health != nil {
		h := *m.health
		v.Health = &h
	}

	m.mu.Lock()
	m.view = v
	m.mu.Unlock()

	select {
	case m.updates <- struct{}{}:
	default:
	}
}
