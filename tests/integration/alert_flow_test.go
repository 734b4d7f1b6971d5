// Package integration drives the full console stack against the
// in-process alert simulator: a real websocket push channel, real REST
// snapshot polls, and real reconciliation and lifecycle round trips.
package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	"github.com/cisseniang564/ProvTech-sub001/internal/monitor"
	"github.com/cisseniang564/ProvTech-sub001/internal/notify"
	apperrors "github.com/cisseniang564/ProvTech-sub001/internal/pkg/errors"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
	"github.com/cisseniang564/ProvTech-sub001/internal/reconcile"
	"github.com/cisseniang564/ProvTech-sub001/internal/simulator"
	"github.com/cisseniang564/ProvTech-sub001/internal/snapshot"
	"github.com/cisseniang564/ProvTech-sub001/internal/testutil"
	"github.com/cisseniang564/ProvTech-sub001/internal/transport"
	"github.com/cisseniang564/ProvTech-sub001/pkg/client"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

// flakyAPI wraps the real alert service so tests can make the server
// side of a lifecycle round trip fail on demand.
type flakyAPI struct {
	*client.AlertService
	failAck atomic.Bool
}

func (f *flakyAPI) Acknowledge(ctx context.Context, id string) (*client.Alert, error) {
	if f.failAck.Load() {
		return nil, errors.New("injected acknowledge failure")
	}
	return f.AlertService.Acknowledge(ctx, id)
}

type harness struct {
	sim  *simulator.Simulator
	api  *flakyAPI
	sink *testutil.FakeSink
	mon  *monitor.Monitor
}

// startStack boots the simulator plus the whole client pipeline and
// tears everything down with the test.
func startStack(t *testing.T) *harness {
	t.Helper()

	log := logger.New(logger.Config{Level: "error", Format: "json"})

	sim := simulator.New(simulator.Config{}, log)
	srv := httptest.NewServer(sim.Handler())

	rest := client.NewClient(client.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	api := &flakyAPI{AlertService: rest.Alerts()}

	channel := transport.New(transport.Config{
		URL:        "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		BackoffMin: 20 * time.Millisecond,
		BackoffMax: 100 * time.Millisecond,
	}, log)

	fetcher, err := snapshot.New(api, time.Hour, log)
	require.NoError(t, err)

	sink := testutil.NewFakeSink()
	dispatcher := notify.NewDispatcher(sink, testutil.NewFakePrefs(false), notify.Config{
		ToastRate:   0.5,
		ToastBurst:  3,
		SoundMinGap: 10 * time.Millisecond,
	}, log)

	store := reconcile.NewStore(16)
	mon := monitor.New(channel, fetcher, store, dispatcher, api, "itest",
		monitor.Config{FlushInterval: 50 * time.Millisecond}, log)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); channel.Run(ctx) }()
	go func() { defer wg.Done(); fetcher.Run(ctx) }()
	go func() { defer wg.Done(); mon.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		wg.Wait()
		srv.Close()
	})

	return &harness{sim: sim, api: api, sink: sink, mon: mon}
}

// waitReady blocks until the push channel is open, the connection is
// registered with the hub, and the first snapshot has landed.
func (h *harness) waitReady(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		v := h.mon.View()
		return v.Connection == transport.StateOpen && h.sim.Hub().Count() == 1 && !v.LastSync.IsZero()
	}, waitFor, tick, "stack never became ready")
}

func TestConsoleFlow(t *testing.T) {
	h := startStack(t)
	ctx := context.Background()

	var breach alert.DTO

	t.Run("connects and syncs an empty book", func(t *testing.T) {
		h.waitReady(t)
		require.Zero(t, h.mon.View().Counts.Total)
	})

	t.Run("fired alert reaches the working set", func(t *testing.T) {
		var err error
		breach, err = h.sim.Fire(alert.DTO{
			RuleName:       "SCR coverage floor",
			Severity:       "critical",
			CurrentValue:   1.12,
			ThresholdValue: 1.50,
		})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return len(h.mon.View().Alerts) == 1
		}, waitFor, tick)

		got := h.mon.View().Alerts[0]
		require.Equal(t, breach.ID, got.ID)
		require.Equal(t, alert.StateActive, got.State)
		require.Equal(t, alert.SeverityCritical, got.Severity)
	})

	t.Run("first sighting raises a toast", func(t *testing.T) {
		require.Eventually(t, func() bool {
			return len(h.sink.Toasts()) >= 1
		}, waitFor, tick)

		toast := h.sink.Toasts()[0]
		require.Equal(t, notify.KindAlert, toast.Kind)
		require.Equal(t, breach.ID, toast.AlertID)
		require.True(t, toast.Sticky, "critical toasts stay until dismissed")
	})

	t.Run("acknowledge round trip converges", func(t *testing.T) {
		require.NoError(t, h.mon.Acknowledge(ctx, breach.ID))

		require.Eventually(t, func() bool {
			v := h.mon.View()
			return len(v.Alerts) == 1 && v.Alerts[0].State == alert.StateAcknowledged
		}, waitFor, tick)

		acked := true
		list := h.sim.ListActive("", &acked)
		require.Len(t, list, 1)
		require.Equal(t, breach.ID, list[0].ID)
	})

	t.Run("repeated acknowledge is refused locally", func(t *testing.T) {
		err := h.mon.Acknowledge(ctx, breach.ID)
		require.Error(t, err)
		require.True(t, alert.IsInvalidTransition(err))
	})

	t.Run("resolve retires the alert", func(t *testing.T) {
		require.NoError(t, h.mon.Resolve(ctx, breach.ID, "capital buffer restored"))

		// Gone from the authoritative active list right away; the next
		// snapshot poll retires it from the working set.
		require.Empty(t, h.sim.ListActive("", nil))

		h.mon.Resync()
		require.Eventually(t, func() bool {
			return h.mon.View().Counts.Total == 0
		}, waitFor, tick)
	})
}

func TestAcknowledgeRevertsWhenServerRefuses(t *testing.T) {
	h := startStack(t)
	ctx := context.Background()

	breach, err := h.sim.Fire(alert.DTO{
		RuleName:       "Liquidity coverage floor",
		Severity:       "high",
		CurrentValue:   0.96,
		ThresholdValue: 1.00,
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return h.mon.View().Counts.Total == 1
	}, waitFor, tick)

	h.api.failAck.Store(true)
	defer h.api.failAck.Store(false)

	err = h.mon.Acknowledge(ctx, breach.ID)
	require.Error(t, err)
	require.True(t, apperrors.IsLifecycleAction(err))

	// The optimistic flip must roll back to ACTIVE.
	require.Eventually(t, func() bool {
		v := h.mon.View()
		return len(v.Alerts) == 1 && v.Alerts[0].State == alert.StateActive
	}, waitFor, tick)

	// And the failure surfaces as a sticky error toast.
	require.Eventually(t, func() bool {
		for _, toast := range h.sink.Toasts() {
			if toast.Kind == notify.KindError && toast.AlertID == breach.ID {
				return true
			}
		}
		return false
	}, waitFor, tick)

	// The server never acknowledged anything.
	unacked := false
	require.Len(t, h.sim.ListActive("", &unacked), 1)
}

func TestReconnectConvergesViaResync(t *testing.T) {
	h := startStack(t)
	h.waitReady(t)
	gen := h.mon.View().Generation

	// Fire and immediately sever every push connection. The frame may or
	// may not arrive; either way the post-reconnect resync must surface
	// the record.
	breach, err := h.sim.Fire(alert.DTO{
		RuleName:       "Combined ratio ceiling",
		Severity:       "medium",
		CurrentValue:   1.08,
		ThresholdValue: 1.05,
	})
	require.NoError(t, err)
	h.sim.Hub().DropAll()

	require.Eventually(t, func() bool {
		v := h.mon.View()
		return v.Connection == transport.StateOpen && v.Generation > gen
	}, waitFor, tick, "channel never reconnected")

	require.Eventually(t, func() bool {
		v := h.mon.View()
		return v.Counts.Total == 1 && v.Alerts[0].ID == breach.ID
	}, waitFor, tick, "working set never converged after reconnect")
}

func TestHealthFramesSurfaceInView(t *testing.T) {
	h := startStack(t)
	h.waitReady(t)

	h.sim.Hub().BroadcastHealth(transport.HealthPayload{
		Status:    "degraded",
		Version:   "2.3.1",
		Timestamp: time.Now().UTC(),
		Services:  map[string]string{"rules": "degraded"},
	})

	require.Eventually(t, func() bool {
		v := h.mon.View()
		return v.Health != nil && v.Health.Status == "degraded"
	}, waitFor, tick)
}

func TestAlertStormFoldsIntoDigest(t *testing.T) {
	h := startStack(t)
	h.waitReady(t)

	for i := 0; i < 12; i++ {
		_, err := h.sim.Fire(alert.DTO{
			RuleName:       fmt.Sprintf("Lapse shock band %02d", i),
			Severity:       "low",
			CurrentValue:   float64(i),
			ThresholdValue: 0,
		})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return h.mon.View().Counts.Total == 12
	}, waitFor, tick)

	// The burst allowance shows a few toasts, the rest fold into a
	// digest released by the periodic flush.
	require.Eventually(t, func() bool {
		for _, toast := range h.sink.Toasts() {
			if toast.Kind == notify.KindDigest {
				return toast.Count > 0
			}
		}
		return false
	}, waitFor, tick, "no digest toast after an alert storm")

	var alerts int
	for _, toast := range h.sink.Toasts() {
		if toast.Kind == notify.KindAlert {
			alerts++
		}
	}
	require.Less(t, alerts, 12, "rate limiting never folded any toast")
}
