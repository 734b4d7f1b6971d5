package reconcile

import (
	"errors"
	"sort"
	"time"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/metrics"
)

// ErrNotFound is returned by lifecycle operations on alerts that are not
// in the working set.
var ErrNotFound = errors.New("alert not in working set")

// Delta describes what one merge changed. FirstSeen carries alerts whose
// IDs had never been observed this session, in display order; it drives
// the once-per-alert notification contract.
type Delta struct {
	Added     []alert.Alert
	Updated   []string
	Removed   []string
	FirstSeen []alert.Alert
}

// Counts summarizes the working set for badges and gauges.
type Counts struct {
	Total      int
	BySeverity map[alert.Severity]int
	ByState    map[alert.LifecycleState]int
}

// Store is the reconciler's working set: exactly one alert per ID, merged
// from snapshot polls and live push events, plus a session-scoped seen-ID
// set and a bounded feed of recent live arrivals.
//
// The Store is deliberately not safe for concurrent use. One goroutine,
// the monitor's event loop, owns it and serializes every mutation;
// readers get defensive copies through that same loop.
type Store struct {
	alerts map[string]*alert.Alert
	seen   map[string]struct{}

	recent    []alert.Alert // display order, capped at recentCap
	recentCap int
}

// NewStore creates an empty working set. recentCap bounds the live
// arrivals feed; the working set itself is unbounded.
func NewStore(recentCap int) *Store {
	if recentCap <= 0 {
		recentCap = 50
	}
	return &Store{
		alerts:    make(map[string]*alert.Alert),
		seen:      make(map[string]struct{}),
		recentCap: recentCap,
	}
}

// ApplySnapshot merges an authoritative poll result into the working set.
// startedAt must be the poll-start timestamp: alerts that arrived live
// after the poll began are invisible to this snapshot, so its silence
// about them proves nothing and they survive until a later poll rules.
func (s *Store) ApplySnapshot(incoming []alert.Alert, startedAt time.Time) Delta {
	var delta Delta
	inSnapshot := make(map[string]struct{}, len(incoming))

	for i := range incoming {
		in := incoming[i]
		inSnapshot[in.ID] = struct{}{}

		existing, ok := s.alerts[in.ID]
		if !ok {
			s.insert(in, alert.OriginSnapshot, startedAt, &delta)
			continue
		}
		if merge(existing, in, alert.OriginSnapshot, startedAt) {
			delta.Updated = append(delta.Updated, in.ID)
		}
	}

	// Deletions only ever come from snapshots, and only when the
	// snapshot was taken late enough to know about the alert.
	for id, a := range s.alerts {
		if _, ok := inSnapshot[id]; ok {
			continue
		}
		if a.Origin == alert.OriginLive && a.ObservedAt.After(startedAt) {
			continue
		}
		delete(s.alerts, id)
		delta.Removed = append(delta.Removed, id)
	}

	s.finish("snapshot", &delta)
	return delta
}

// ApplyLive merges one push-delivered alert. Live events insert and
// update; they never remove anything.
func (s *Store) ApplyLive(in alert.Alert) Delta {
	var delta Delta

	if existing, ok := s.alerts[in.ID]; ok {
		if merge(existing, in, alert.OriginLive, in.ObservedAt) {
			delta.Updated = append(delta.Updated, in.ID)
		}
		s.finish("live", &delta)
		return delta
	}

	s.insert(in, alert.OriginLive, in.ObservedAt, &delta)
	s.pushRecent(in)
	s.finish("live", &delta)
	return delta
}

// Acknowledge optimistically moves an alert to ACKNOWLEDGED, returning a
// clone of its previous state for a possible revert.
func (s *Store) Acknowledge(id, by string, at time.Time) (alert.Alert, error) {
	a, ok := s.alerts[id]
	if !ok {
		return alert.Alert{}, ErrNotFound
	}
	prev := a.Clone()
	if err := a.Acknowledge(by, at); err != nil {
		return alert.Alert{}, err
	}
	return prev, nil
}

// Resolve optimistically moves an alert to RESOLVED, returning a clone of
// its previous state for a possible revert.
func (s *Store) Resolve(id, notes string, at time.Time) (alert.Alert, error) {
	a, ok := s.alerts[id]
	if !ok {
		return alert.Alert{}, ErrNotFound
	}
	prev := a.Clone()
	if err := a.Resolve(notes, at); err != nil {
		return alert.Alert{}, err
	}
	return prev, nil
}

// Revert rolls back a failed optimistic transition. It only restores the
// lifecycle fields, and only while the alert still shows the optimistic
// state; if a merge moved the alert on in the meantime, that newer truth
// wins and the revert is a no-op.
func (s *Store) Revert(id string, prev alert.Alert, optimistic alert.LifecycleState) {
	a, ok := s.alerts[id]
	if !ok || a.State != optimistic {
		return
	}
	a.State = prev.State
	a.AcknowledgedAt = prev.AcknowledgedAt
	a.AcknowledgedBy = prev.AcknowledgedBy
	a.ResolvedAt = prev.ResolvedAt
	a.ResolutionNotes = prev.ResolutionNotes
}

// Get returns a copy of one alert.
func (s *Store) Get(id string) (alert.Alert, bool) {
	a, ok := s.alerts[id]
	if !ok {
		return alert.Alert{}, false
	}
	return a.Clone(), true
}

// List returns the working set in display order: severity descending,
// newest first within a severity, ID as the final tie-break.
func (s *Store) List() []alert.Alert {
	out := make([]alert.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a.Clone())
	}
	sortAlerts(out)
	return out
}

// Recent returns the bounded feed of live arrivals in display order. The
// feed is a side channel for the UI; it never feeds back into merges.
func (s *Store) Recent() []alert.Alert {
	out := make([]alert.Alert, len(s.recent))
	for i := range s.recent {
		out[i] = s.recent[i].Clone()
	}
	return out
}

// Counts tallies the working set by severity and lifecycle state.
func (s *Store) Counts() Counts {
	c := Counts{
		Total:      len(s.alerts),
		BySeverity: make(map[alert.Severity]int),
		ByState:    make(map[alert.LifecycleState]int),
	}
	for _, a := range s.alerts {
		c.BySeverity[a.Severity]++
		c.ByState[a.State]++
	}
	return c
}

// insert adds a brand new alert and does the first-seen bookkeeping.
func (s *Store) insert(in alert.Alert, origin alert.Origin, observedAt time.Time, delta *Delta) {
	a := in.Clone()
	a.Origin = origin
	a.ObservedAt = observedAt
	s.alerts[a.ID] = &a

	delta.Added = append(delta.Added, a.Clone())
	if _, seen := s.seen[a.ID]; !seen {
		s.seen[a.ID] = struct{}{}
		delta.FirstSeen = append(delta.FirstSeen, a.Clone())
	}
}

// pushRecent adds a live arrival to the feed. Once the cap is reached
// the entry with the oldest TriggeredAt goes, whatever order the wire
// delivered them in.
func (s *Store) pushRecent(in alert.Alert) {
	s.recent = append(s.recent, in.Clone())
	if len(s.recent) > s.recentCap {
		oldest := 0
		for i := 1; i < len(s.recent); i++ {
			if s.recent[i].TriggeredAt.Before(s.recent[oldest].TriggeredAt) {
				oldest = i
			}
		}
		s.recent = append(s.recent[:oldest], s.recent[oldest+1:]...)
	}
	sortAlerts(s.recent)
}

// finish sorts delta slices into canonical order and updates gauges.
func (s *Store) finish(source string, delta *Delta) {
	sortAlerts(delta.Added)
	sortAlerts(delta.FirstSeen)

	metrics.RecordMergeDelta(source, len(delta.Added), len(delta.Removed), len(delta.Updated))
	counts := s.Counts()
	for _, sev := range []alert.Severity{alert.SeverityLow, alert.SeverityMedium, alert.SeverityHigh, alert.SeverityCritical} {
		metrics.SetWorkingSetSize(string(sev), float64(counts.BySeverity[sev]))
	}
}

// merge folds an incoming report of an existing alert into the stored
// one. Reading fields always refresh from the incoming report; the
// lifecycle only ever moves forward, so an old snapshot can never undo a
// newer acknowledge or resolve. TriggeredAt keeps its first-seen value.
// Returns whether anything visible changed.
func merge(existing *alert.Alert, in alert.Alert, origin alert.Origin, observedAt time.Time) bool {
	changed := existing.RuleName != in.RuleName ||
		existing.CurrentValue != in.CurrentValue ||
		existing.ThresholdValue != in.ThresholdValue ||
		existing.DeviationPercent != in.DeviationPercent

	existing.RuleName = in.RuleName
	existing.CurrentValue = in.CurrentValue
	existing.ThresholdValue = in.ThresholdValue
	existing.DeviationPercent = in.DeviationPercent

	if in.State.Rank() > existing.State.Rank() {
		existing.State = in.State
		if in.State.Rank() >= alert.StateAcknowledged.Rank() {
			existing.AcknowledgedAt = copyTime(in.AcknowledgedAt)
			existing.AcknowledgedBy = in.AcknowledgedBy
		}
		if in.State == alert.StateResolved {
			existing.ResolvedAt = copyTime(in.ResolvedAt)
			existing.ResolutionNotes = in.ResolutionNotes
		}
		changed = true
	}

	// A fresh observation from either source re-anchors the alert in
	// time: a snapshot that saw it confirms it, a live update proves it
	// exists right now.
	existing.Origin = origin
	existing.ObservedAt = observedAt

	return changed
}

func sortAlerts(alerts []alert.Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		return alert.Compare(alerts[i], alerts[j]) < 0
	})
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
