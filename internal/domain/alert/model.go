package alert

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Severity classifies how urgent an alert is.
type Severity string

// Alert severity levels, least to most urgent
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the sort weight of a severity. Higher is more urgent;
// unknown severities rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ParseSeverity converts a string into a Severity.
func ParseSeverity(v string) (Severity, error) {
	s := Severity(strings.ToLower(v))
	if !s.Valid() {
		return "", fmt.Errorf("unknown severity: %q", v)
	}
	return s, nil
}

// LifecycleState tracks where an alert is in its lifecycle. Transitions
// only move forward; the reconciler relies on this to never regress an
// alert during merges.
type LifecycleState string

// Lifecycle states in transition order
const (
	StateActive       LifecycleState = "ACTIVE"
	StateAcknowledged LifecycleState = "ACKNOWLEDGED"
	StateResolved     LifecycleState = "RESOLVED"
)

// Rank returns the position of the state in the lifecycle. Later states
// rank higher; unknown states rank 0.
func (s LifecycleState) Rank() int {
	switch s {
	case StateActive:
		return 1
	case StateAcknowledged:
		return 2
	case StateResolved:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is a known lifecycle state.
func (s LifecycleState) Valid() bool {
	return s.Rank() > 0
}

// CanTransitionTo reports whether moving from s to next is a legal
// forward transition.
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	return s.Valid() && next.Valid() && next.Rank() > s.Rank()
}

// ParseLifecycleState converts a string into a LifecycleState.
func ParseLifecycleState(v string) (LifecycleState, error) {
	s := LifecycleState(strings.ToUpper(v))
	if !s.Valid() {
		return "", fmt.Errorf("unknown lifecycle state: %q", v)
	}
	return s, nil
}

// Origin records which source last introduced an alert to the client.
type Origin string

// Alert origins
const (
	OriginSnapshot Origin = "snapshot"
	OriginLive     Origin = "live"
)

// InvalidTransitionError reports an attempt to move an alert backward
// (or sideways) through its lifecycle.
type InvalidTransitionError struct {
	AlertID string
	From    LifecycleState
	To      LifecycleState
}

// Error implements the error interface
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("alert %s: invalid transition %s -> %s", e.AlertID, e.From, e.To)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}

// Alert is the client-side view of a threshold breach raised by the
// calculation engine. One instance exists per ID in the working set.
type Alert struct {
	ID               string
	RuleID           string
	RuleName         string
	Severity         Severity
	CurrentValue     float64
	ThresholdValue   float64
	DeviationPercent float64

	// TriggeredAt is set by the server when the rule fired and never
	// changes afterwards, whatever source re-delivers the alert.
	TriggeredAt time.Time

	State           LifecycleState
	AcknowledgedAt  *time.Time
	AcknowledgedBy  string
	ResolvedAt      *time.Time
	ResolutionNotes string

	// Origin and ObservedAt are client-side merge bookkeeping: which
	// source brought the alert in, and when it arrived. ObservedAt lets
	// the reconciler keep live alerts a slow snapshot cannot know about.
	Origin     Origin
	ObservedAt time.Time
}

// Acknowledge moves the alert to ACKNOWLEDGED, stamping who and when.
func (a *Alert) Acknowledge(by string, at time.Time) error {
	if !a.State.CanTransitionTo(StateAcknowledged) {
		return &InvalidTransitionError{AlertID: a.ID, From: a.State, To: StateAcknowledged}
	}
	a.State = StateAcknowledged
	a.AcknowledgedAt = &at
	a.AcknowledgedBy = by
	return nil
}

// Resolve moves the alert to RESOLVED with the operator's notes.
// ACTIVE alerts may resolve directly without an acknowledge step.
func (a *Alert) Resolve(notes string, at time.Time) error {
	if !a.State.CanTransitionTo(StateResolved) {
		return &InvalidTransitionError{AlertID: a.ID, From: a.State, To: StateResolved}
	}
	a.State = StateResolved
	a.ResolvedAt = &at
	a.ResolutionNotes = notes
	return nil
}

// Clone returns a deep copy. Stores hand clones out so callers can never
// mutate the working set behind the reconciler's back.
func (a *Alert) Clone() Alert {
	c := *a
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		c.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	return c
}

// Compare orders alerts for display: severity descending, then
// TriggeredAt descending (newest first), then ID ascending so the order
// is deterministic for equal timestamps.
func Compare(a, b Alert) int {
	if d := b.Severity.Rank() - a.Severity.Rank(); d != 0 {
		return d
	}
	if a.TriggeredAt.After(b.TriggeredAt) {
		return -1
	}
	if b.TriggeredAt.After(a.TriggeredAt) {
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}
