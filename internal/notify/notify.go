// Package notify turns reconciler events into operator-facing toasts and
// sounds, with rate limiting so an alert storm does not bury the console.
package notify

import "github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"

// Kind classifies a toast for rendering and metrics.
type Kind string

const (
	// KindAlert is a toast for a newly observed alert.
	KindAlert Kind = "alert"
	// KindDigest is a rollup of alerts folded away by rate limiting.
	KindDigest Kind = "digest"
	// KindError reports a failed acknowledge or resolve.
	KindError Kind = "action_error"
)

// SoundCritical is the sound played when a critical alert appears.
const SoundCritical = "critical-alert"

// Toast is one notification card. Sticky toasts stay until dismissed;
// the rest fade on their own. Count is only set on digests.
type Toast struct {
	Kind     Kind
	AlertID  string
	Title    string
	Body     string
	Severity alert.Severity
	Sticky   bool
	Count    int
}

// Sound is an audible cue.
type Sound struct {
	Name string
}

// Sink renders notifications. Implementations must be safe for
// concurrent use.
type Sink interface {
	ShowToast(t Toast) error
	PlaySound(s Sound) error
}

// PreferenceSource exposes the operator's notification preferences. The
// dispatcher reads it on every event, so flipping a preference takes
// effect mid-burst.
type PreferenceSource interface {
	SoundEnabled() bool
}
