// Package simulator implements alertsim, an in-memory stand-in for the
// ProvTech alert service. It exposes the same snapshot, lifecycle and
// push contracts the production backend serves, so the console and the
// integration tests can run against a deterministic local process
// instead of a calculation cluster.
package simulator

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	apperrors "github.com/cisseniang564/ProvTech-sub001/internal/pkg/errors"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
	"github.com/cisseniang564/ProvTech-sub001/internal/transport"
)

// Config holds the simulator configuration.
type Config struct {
	// Token, when set, is required as a bearer token on every alert
	// and push endpoint. Health and metrics stay open.
	Token string

	// HealthEvery is the cadence of system_health push frames.
	// Defaults to 15s; negative disables them.
	HealthEvery time.Duration

	// FireEvery raises a randomly generated alert at this cadence.
	// Zero disables the generator; scenarios and the /sim API still
	// inject alerts.
	FireEvery time.Duration

	// Scenario is an optional scripted timeline played once Run starts.
	Scenario *Scenario

	// Version is reported by /healthz and in health frames.
	Version string
}

// Simulator owns the fake alert inventory and the push hub. All state
// lives in memory; restarting the process starts a clean book.
type Simulator struct {
	cfg Config
	log *logger.Logger
	hub *Hub

	mu     sync.RWMutex
	alerts map[string]*alert.Alert

	rng *rand.Rand // only touched by the Run goroutine
}

// New creates a simulator from cfg.
func New(cfg Config, log *logger.Logger) *Simulator {
	if cfg.HealthEvery == 0 {
		cfg.HealthEvery = 15 * time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Simulator{
		cfg:    cfg,
		log:    log.Component("alertsim"),
		hub:    NewHub(log),
		alerts: make(map[string]*alert.Alert),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Hub exposes the push hub, mainly so tests can count connections.
func (s *Simulator) Hub() *Hub {
	return s.hub
}

// Run drives the periodic parts of the simulator: health frames, the
// random alert generator and the configured scenario. It returns when
// ctx is cancelled. Serving HTTP is the caller's job via Handler.
func (s *Simulator) Run(ctx context.Context) error {
	var health <-chan time.Time
	if s.cfg.HealthEvery > 0 {
		t := time.NewTicker(s.cfg.HealthEvery)
		defer t.Stop()
		health = t.C
	}

	var fire <-chan time.Time
	if s.cfg.FireEvery > 0 {
		t := time.NewTicker(s.cfg.FireEvery)
		defer t.Stop()
		fire = t.C
	}

	if s.cfg.Scenario != nil {
		go s.playScenario(ctx, s.cfg.Scenario)
	}

	s.log.WithFields(map[string]interface{}{
		"health_every": s.cfg.HealthEvery.String(),
		"fire_every":   s.cfg.FireEvery.String(),
		"scripted":     s.cfg.Scenario != nil,
	}).Info("Simulator running")

	for {
		select {
		case <-health:
			s.hub.BroadcastHealth(s.health())
		case <-fire:
			s.fireRandom()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Fire validates d, fills in defaults for omitted fields, stores the
// alert and pushes a realtime_alert frame. Redelivery of an existing ID
// overwrites the stored alert, the way the rule engine re-emits a
// breach with fresh readings.
func (s *Simulator) Fire(d alert.DTO) (alert.DTO, error) {
	now := time.Now().UTC()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.RuleID == "" {
		d.RuleID = "rule-" + d.ID
	}
	if d.TriggeredAt.IsZero() {
		d.TriggeredAt = now
	}
	if d.LifecycleState == "" {
		d.LifecycleState = string(alert.StateActive)
	}

	a, err := alert.FromDTO(d, alert.OriginLive, now)
	if err != nil {
		return alert.DTO{}, apperrors.ValidationError(err.Error(), nil)
	}

	s.mu.Lock()
	s.alerts[a.ID] = &a
	s.mu.Unlock()

	s.log.WithFields(map[string]interface{}{
		"alert_id": a.ID,
		"severity": string(a.Severity),
		"rule":     a.RuleName,
	}).Info("Alert fired")

	out := alert.ToDTO(a)
	s.hub.BroadcastAlert(out)
	return out, nil
}

// ListActive returns the currently relevant alerts, the snapshot the
// dashboard polls. Resolved alerts drop out of this list, which is what
// lets clients retire them on the next reconcile.
func (s *Simulator) ListActive(severity string, acknowledged *bool) []alert.DTO {
	s.mu.RLock()
	matched := make([]alert.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.State == alert.StateResolved {
			continue
		}
		if severity != "" && string(a.Severity) != severity {
			continue
		}
		if acknowledged != nil && (a.State == alert.StateAcknowledged) != *acknowledged {
			continue
		}
		matched = append(matched, a.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return alert.Compare(matched[i], matched[j]) < 0
	})

	out := make([]alert.DTO, 0, len(matched))
	for _, a := range matched {
		out = append(out, alert.ToDTO(a))
	}
	return out
}

// Acknowledge moves an alert to ACKNOWLEDGED on behalf of by. The
// domain transition rules apply: anything but ACTIVE is rejected with a
// conflict, which clients treat as "someone else got there first".
func (s *Simulator) Acknowledge(id, by string) (alert.DTO, error) {
	s.mu.Lock()
	a, ok := s.alerts[id]
	if !ok {
		s.mu.Unlock()
		return alert.DTO{}, apperrors.NotFound("alert")
	}
	if err := a.Acknowledge(by, time.Now().UTC()); err != nil {
		s.mu.Unlock()
		return alert.DTO{}, apperrors.Conflict(err.Error())
	}
	out := alert.ToDTO(*a)
	s.mu.Unlock()

	s.log.WithFields(map[string]interface{}{"alert_id": id, "by": by}).Info("Alert acknowledged")
	s.hub.BroadcastAlert(out)
	return out, nil
}

// Resolve closes an alert with the operator's notes. The record stays
// in the book as RESOLVED so the ID cannot be reused, but it leaves the
// active list immediately.
func (s *Simulator) Resolve(id, notes string) (alert.DTO, error) {
	s.mu.Lock()
	a, ok := s.alerts[id]
	if !ok {
		s.mu.Unlock()
		return alert.DTO{}, apperrors.NotFound("alert")
	}
	if err := a.Resolve(notes, time.Now().UTC()); err != nil {
		s.mu.Unlock()
		return alert.DTO{}, apperrors.Conflict(err.Error())
	}
	out := alert.ToDTO(*a)
	s.mu.Unlock()

	s.log.WithFields(map[string]interface{}{"alert_id": id}).Info("Alert resolved")
	s.hub.BroadcastAlert(out)
	return out, nil
}

func (s *Simulator) health() transport.HealthPayload {
	return transport.HealthPayload{
		Status:    "ok",
		Version:   s.cfg.Version,
		Timestamp: time.Now().UTC(),
		Services: map[string]string{
			"push":  "ok",
			"rules": "ok",
		},
	}
}

// Rule catalogue for the random generator. Names follow the solvency
// monitoring rules the real engine ships with.
var generatedRules = []struct {
	name      string
	threshold float64
}{
	{"SCR coverage floor", 1.5},
	{"MCR coverage floor", 3.0},
	{"Best estimate liability drift", 0.05},
	{"Risk margin ratio ceiling", 0.12},
	{"Contractual service margin erosion", 0.08},
	{"Onerous contract emergence", 25000},
	{"Own funds tier-1 floor", 0.5},
	{"Lapse rate deviation", 0.15},
	{"Combined ratio ceiling", 1.03},
	{"Expense overrun watch", 0.1},
}

func (s *Simulator) fireRandom() {
	rule := generatedRules[s.rng.Intn(len(generatedRules))]

	// Severity skews low: storms of criticals come from scenarios,
	// not the background generator.
	var severity string
	switch n := s.rng.Intn(10); {
	case n < 4:
		severity = string(alert.SeverityLow)
	case n < 7:
		severity = string(alert.SeverityMedium)
	case n < 9:
		severity = string(alert.SeverityHigh)
	default:
		severity = string(alert.SeverityCritical)
	}

	deviation := 5 + s.rng.Float64()*45 // 5% to 50% past threshold
	current := rule.threshold * (1 - deviation/100)

	_, err := s.Fire(alert.DTO{
		RuleID:           "rule-" + uuid.NewString()[:8],
		RuleName:         rule.name,
		Severity:         severity,
		CurrentValue:     current,
		ThresholdValue:   rule.threshold,
		DeviationPercent: -deviation,
	})
	if err != nil {
		s.log.ErrorWithErr(err, "Generated alert rejected")
	}
}
