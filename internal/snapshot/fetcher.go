package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	apperrors "github.com/cisseniang564/ProvTech-sub001/internal/pkg/errors"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/metrics"
	"github.com/cisseniang564/ProvTech-sub001/pkg/client"
)

// AlertAPI is the slice of the REST client the fetcher needs.
type AlertAPI interface {
	ListActive(ctx context.Context, opts *client.ListActiveOptions) ([]client.Alert, error)
}

// Result is one completed snapshot poll. StartedAt is the poll-start
// timestamp the reconciler uses to decide whether the snapshot is old
// enough to be blind to a recently arrived live alert.
type Result struct {
	Alerts      []alert.Alert
	StartedAt   time.Time
	CompletedAt time.Time
}

// Fetcher polls the authoritative alert snapshot on a schedule, plus
// immediately on start and whenever a resync is requested (after the
// push channel reconnects). Polls run one at a time; a failed poll emits
// nothing so the last known good state stays in place.
type Fetcher struct {
	api AlertAPI
	log *logger.Logger

	scheduler *cron.Cron
	results   chan Result
	trigger   chan struct{}

	mu       sync.RWMutex
	lastSync time.Time
	lastErr  error
}

// New creates a fetcher polling every interval.
func New(api AlertAPI, interval time.Duration, log *logger.Logger) (*Fetcher, error) {
	f := &Fetcher{
		api:       api,
		log:       log.Component("snapshot"),
		scheduler: cron.New(),
		results:   make(chan Result, 4),
		trigger:   make(chan struct{}, 1),
	}

	if _, err := f.scheduler.AddFunc(fmt.Sprintf("@every %s", interval), f.TriggerResync); err != nil {
		return nil, fmt.Errorf("schedule snapshot poll: %w", err)
	}

	return f, nil
}

// Snapshots returns the stream of completed polls.
func (f *Fetcher) Snapshots() <-chan Result {
	return f.results
}

// TriggerResync requests an immediate poll. Requests arriving while one
// is already pending coalesce into a single poll.
func (f *Fetcher) TriggerResync() {
	select {
	case f.trigger <- struct{}{}:
	default:
	}
}

// LastSync returns the completion time of the most recent successful poll.
func (f *Fetcher) LastSync() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastSync
}

// LastError returns the error of the most recent poll, or nil after a
// successful one.
func (f *Fetcher) LastError() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

// Run polls until ctx is cancelled. The first poll happens right away so
// the working set fills without waiting out an interval.
func (f *Fetcher) Run(ctx context.Context) {
	f.log.Info("snapshot fetcher started")
	f.scheduler.Start()
	defer f.scheduler.Stop()

	f.poll(ctx)

	for {
		select {
		case <-f.trigger:
			f.poll(ctx)
		case <-ctx.Done():
			f.log.Info("snapshot fetcher stopped")
			return
		}
	}
}

// poll fetches one snapshot and emits it. Failures are recorded and
// logged, never emitted: a stale-but-consistent working set beats a wiped
// one.
func (f *Fetcher) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	started := time.Now()
	wire, err := f.api.ListActive(ctx, nil)
	completed := time.Now()

	if err != nil {
		metrics.RecordSnapshotPoll("failure", completed.Sub(started))
		f.mu.Lock()
		f.lastErr = apperrors.SnapshotFetch("snapshot poll failed", err)
		f.mu.Unlock()
		f.log.WithError(err).Warn("snapshot poll failed, keeping last known good state")
		return
	}

	alerts := make([]alert.Alert, 0, len(wire))
	for _, w := range wire {
		a, err := fromWire(w, started)
		if err != nil {
			f.log.WithError(err).With("alert_id", w.ID).Warn("dropping invalid alert from snapshot")
			continue
		}
		alerts = append(alerts, a)
	}

	metrics.RecordSnapshotPoll("success", completed.Sub(started))
	metrics.SetLastSync(completed)
	f.mu.Lock()
	f.lastSync = completed
	f.lastErr = nil
	f.mu.Unlock()

	select {
	case f.results <- Result{Alerts: alerts, StartedAt: started, CompletedAt: completed}:
	case <-ctx.Done():
	}
}

// fromWire converts a REST wire alert into the domain entity, running the
// same boundary validation push frames get.
func fromWire(w client.Alert, observedAt time.Time) (alert.Alert, error) {
	dto := alert.DTO{
		ID:               w.ID,
		RuleID:           w.RuleID,
		RuleName:         w.RuleName,
		Severity:         w.Severity,
		CurrentValue:     w.CurrentValue,
		ThresholdValue:   w.ThresholdValue,
		DeviationPercent: w.DeviationPercent,
		TriggeredAt:      w.TriggeredAt,
		LifecycleState:   w.LifecycleState,
		AcknowledgedAt:   w.AcknowledgedAt,
		AcknowledgedBy:   w.AcknowledgedBy,
		ResolvedAt:       w.ResolvedAt,
		ResolutionNotes:  w.ResolutionNotes,
	}
	return alert.FromDTO(dto, alert.OriginSnapshot, observedAt)
}
