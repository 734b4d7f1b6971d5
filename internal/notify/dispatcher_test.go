package notify_test

import (
	"errors"
	"testing"
	"time"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	"github.com/cisseniang564/ProvTech-sub001/internal/notify"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
	"github.com/cisseniang564/ProvTech-sub001/internal/testutil"
)

var base = time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

func newDispatcher(sink notify.Sink, prefs notify.PreferenceSource, cfg notify.Config) *notify.Dispatcher {
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	return notify.NewDispatcher(sink, prefs, cfg, log)
}

// A zero-rate, zero-burst limiter folds every non-critical toast, which
// makes the bypass for critical alerts observable.
func TestDispatcher_CriticalBypassesLimiter(t *testing.T) {
	sink := testutil.NewFakeSink()
	d := newDispatcher(sink, testutil.NewFakePrefs(true), notify.Config{ToastRate: 0, ToastBurst: 0})

	d.Dispatch(testutil.DomainAlert("crit", alert.SeverityCritical, alert.StateActive, base))
	d.Dispatch(testutil.DomainAlert("med", alert.SeverityMedium, alert.StateActive, base))

	toasts := sink.Toasts()
	if len(toasts) != 1 {
		t.Fatalf("toasts = %d, want only the critical one", len(toasts))
	}
	if toasts[0].AlertID != "crit" || !toasts[0].Sticky || toasts[0].Kind != notify.KindAlert {
		t.Errorf("critical toast = %+v, want sticky alert toast for crit", toasts[0])
	}
	if sounds := sink.Sounds(); len(sounds) != 1 || sounds[0].Name != notify.SoundCritical {
		t.Errorf("sounds = %+v, want one critical chime", sounds)
	}
}

func TestDispatcher_BurstFoldsIntoDigest(t *testing.T) {
	sink := testutil.NewFakeSink()
	d := newDispatcher(sink, testutil.NewFakePrefs(false), notify.Config{ToastRate: 0, ToastBurst: 2})

	d.Dispatch(testutil.DomainAlert("a1", alert.SeverityMedium, alert.StateActive, base))
	d.Dispatch(testutil.DomainAlert("a2", alert.SeverityLow, alert.StateActive, base))
	d.Dispatch(testutil.DomainAlert("a3", alert.SeverityMedium, alert.StateActive, base))
	d.Dispatch(testutil.DomainAlert("a4", alert.SeverityHigh, alert.StateActive, base))
	d.Dispatch(testutil.DomainAlert("a5", alert.SeverityLow, alert.StateActive, base))

	if got := len(sink.Toasts()); got != 2 {
		t.Fatalf("toasts before flush = %d, want the burst of 2", got)
	}

	d.Flush()
	toasts := sink.Toasts()
	if len(toasts) != 3 {
		t.Fatalf("toasts after flush = %d, want burst plus one digest", len(toasts))
	}
	digest := toasts[2]
	if digest.Kind != notify.KindDigest || digest.Count != 3 {
		t.Errorf("digest = %+v, want kind digest covering 3 alerts", digest)
	}
	if digest.Severity != alert.SeverityHigh {
		t.Errorf("digest severity = %s, want the highest folded severity", digest.Severity)
	}

	// Nothing pending: a second flush emits nothing.
	d.Flush()
	if got := len(sink.Toasts()); got != 3 {
		t.Errorf("toasts after empty flush = %d, want still 3", got)
	}
}

func TestDispatcher_SoundMinimumGap(t *testing.T) {
	sink := testutil.NewFakeSink()
	d := newDispatcher(sink, testutil.NewFakePrefs(true), notify.Config{ToastRate: 1000, ToastBurst: 1000, SoundMinGap: 200 * time.Millisecond})

	d.Dispatch(testutil.DomainAlert("c1", alert.SeverityCritical, alert.StateActive, base))
	d.Dispatch(testutil.DomainAlert("c2", alert.SeverityCritical, alert.StateActive, base))
	if got := len(sink.Sounds()); got != 1 {
		t.Fatalf("sounds = %d, want back-to-back chimes collapsed to 1", got)
	}

	time.Sleep(250 * time.Millisecond)
	d.Dispatch(testutil.DomainAlert("c3", alert.SeverityCritical, alert.StateActive, base))
	if got := len(sink.Sounds()); got != 2 {
		t.Errorf("sounds = %d, want a second chime after the gap", got)
	}
}

// Muting is read per event, so flipping it mid-burst takes effect on the
// very next critical alert while toasts keep flowing.
func TestDispatcher_MuteReadAtDispatchTime(t *testing.T) {
	sink := testutil.NewFakeSink()
	prefs := testutil.NewFakePrefs(true)
	d := newDispatcher(sink, prefs, notify.Config{ToastRate: 1000, ToastBurst: 1000})

	d.Dispatch(testutil.DomainAlert("c1", alert.SeverityCritical, alert.StateActive, base))
	if got := len(sink.Sounds()); got != 1 {
		t.Fatalf("sounds = %d, want 1 while unmuted", got)
	}

	prefs.SetSound(false)
	d.Dispatch(testutil.DomainAlert("c2", alert.SeverityCritical, alert.StateActive, base))

	if got := len(sink.Sounds()); got != 1 {
		t.Errorf("sounds = %d, mute must silence the chime immediately", got)
	}
	if got := len(sink.Toasts()); got != 2 {
		t.Errorf("toasts = %d, mute must not suppress toasts", got)
	}
}

func TestDispatcher_ActionFailedBypassesLimiter(t *testing.T) {
	sink := testutil.NewFakeSink()
	d := newDispatcher(sink, testutil.NewFakePrefs(false), notify.Config{ToastRate: 0, ToastBurst: 0})

	d.ActionFailed("acknowledge", "a1", errors.New("server returned 409"))

	toasts := sink.Toasts()
	if len(toasts) != 1 {
		t.Fatalf("toasts = %d, want the error toast despite a zero limiter", len(toasts))
	}
	got := toasts[0]
	if got.Kind != notify.KindError || !got.Sticky || got.AlertID != "a1" {
		t.Errorf("error toast = %+v", got)
	}
}
