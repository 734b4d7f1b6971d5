package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/metrics"
)

// Config tunes notification delivery.
type Config struct {
	ToastRate   float64       // sustained non-critical toasts per second
	ToastBurst  int           // toasts allowed before digesting kicks in
	SoundMinGap time.Duration // minimum spacing between sounds
}

// Dispatcher delivers notifications for alerts the reconciler sees for
// the first time. Critical alerts always get through; the rest pass a
// rate limiter and fold into a digest when the console is being flooded.
// Callers guarantee at most one Dispatch per alert ID per session.
type Dispatcher struct {
	sink    Sink
	prefs   PreferenceSource
	log     *logger.Logger
	limiter *rate.Limiter
	minGap  time.Duration

	mu         sync.Mutex
	lastSound  time.Time
	pending    int
	pendingTop alert.Severity
}

// NewDispatcher creates a dispatcher delivering through sink.
func NewDispatcher(sink Sink, prefs PreferenceSource, cfg Config, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		sink:    sink,
		prefs:   prefs,
		log:     log.Component("notify"),
		limiter: rate.NewLimiter(rate.Limit(cfg.ToastRate), cfg.ToastBurst),
		minGap:  cfg.SoundMinGap,
	}
}

// Dispatch notifies the operator about a newly observed alert. Critical
// alerts bypass the limiter, show sticky, and chime; anything else shows
// a transient toast while the limiter allows and folds into the digest
// once it does not.
func (d *Dispatcher) Dispatch(a alert.Alert) {
	critical := a.Severity == alert.SeverityCritical

	if critical || d.limiter.Allow() {
		d.show(Toast{
			Kind:     KindAlert,
			AlertID:  a.ID,
			Title:    title(a),
			Body:     body(a),
			Severity: a.Severity,
			Sticky:   critical,
		})
	} else {
		d.fold(a)
	}

	if critical {
		d.chime()
	}
}

// Flush emits one digest toast covering everything folded away since the
// last flush. No-op when nothing was folded.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	n, top := d.pending, d.pendingTop
	d.pending, d.pendingTop = 0, ""
	d.mu.Unlock()

	if n == 0 {
		return
	}
	d.show(Toast{
		Kind:     KindDigest,
		Title:    fmt.Sprintf("%d more alerts", n),
		Body:     fmt.Sprintf("%d alerts arrived while notifications were rate limited, highest severity %s", n, top),
		Severity: top,
		Count:    n,
	})
}

// ActionFailed surfaces a failed acknowledge or resolve. Error toasts
// bypass the limiter: the operator just acted and needs the outcome.
func (d *Dispatcher) ActionFailed(action, alertID string, err error) {
	d.show(Toast{
		Kind:    KindError,
		AlertID: alertID,
		Title:   fmt.Sprintf("%s failed", action),
		Body:    err.Error(),
		Sticky:  true,
	})
}

func (d *Dispatcher) show(t Toast) {
	if err := d.sink.ShowToast(t); err != nil {
		d.log.WithError(err).Warn("toast delivery failed")
		return
	}
	metrics.RecordNotification(string(t.Kind))
}

func (d *Dispatcher) fold(a alert.Alert) {
	d.mu.Lock()
	d.pending++
	if d.pendingTop == "" || a.Severity.Rank() > d.pendingTop.Rank() {
		d.pendingTop = a.Severity
	}
	d.mu.Unlock()

	metrics.RecordNotificationSuppressed()
	d.log.Debugf("toast for alert %s folded into digest", a.ID)
}

// chime plays the critical sound, respecting the mute preference as it
// stands right now and the minimum gap between sounds.
func (d *Dispatcher) chime() {
	if !d.prefs.SoundEnabled() {
		return
	}

	d.mu.Lock()
	now := time.Now()
	if !d.lastSound.IsZero() && now.Sub(d.lastSound) < d.minGap {
		d.mu.Unlock()
		return
	}
	d.lastSound = now
	d.mu.Unlock()

	if err := d.sink.PlaySound(Sound{Name: SoundCritical}); err != nil {
		d.log.WithError(err).Warn("sound playback failed")
		return
	}
	metrics.RecordNotification("sound")
}

func title(a alert.Alert) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Severity)), a.RuleName)
}

func body(a alert.Alert) string {
	return fmt.Sprintf("current %.2f vs threshold %.2f (%+.1f%%)", a.CurrentValue, a.ThresholdValue, a.DeviationPercent)
}
