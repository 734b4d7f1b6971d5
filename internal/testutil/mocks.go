// Package testutil provides in-memory fakes and fixtures shared by the
// reconciler stack's tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/cisseniang564/ProvTech-sub001/internal/notify"
	"github.com/cisseniang564/ProvTech-sub001/pkg/client"
)

// ResolveCall records one Resolve invocation.
type ResolveCall struct {
	ID    string
	Notes string
}

// FakeAlertAPI is an in-memory stand-in for the dashboard's alert API.
// It satisfies both the snapshot fetcher's and the lifecycle controller's
// API surfaces. All methods are safe for concurrent use; tests mutate the
// fake while fetcher or controller goroutines call into it.
type FakeAlertAPI struct {
	mu sync.Mutex

	active []client.Alert

	listErr    error
	ackErr     error
	resolveErr error

	listCalls    int
	ackCalls     []string
	resolveCalls []ResolveCall
}

// NewFakeAlertAPI creates a fake with no active alerts.
func NewFakeAlertAPI() *FakeAlertAPI {
	return &FakeAlertAPI{}
}

// SetActive replaces the set ListActive returns.
func (f *FakeAlertAPI) SetActive(alerts []client.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = append([]client.Alert(nil), alerts...)
}

// SetListErr makes ListActive fail until cleared with nil.
func (f *FakeAlertAPI) SetListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// SetAckErr makes Acknowledge fail until cleared with nil.
func (f *FakeAlertAPI) SetAckErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ackErr = err
}

// SetResolveErr makes Resolve fail until cleared with nil.
func (f *FakeAlertAPI) SetResolveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveErr = err
}

// ListActive returns the configured set or the injected error.
func (f *FakeAlertAPI) ListActive(ctx context.Context, opts *client.ListActiveOptions) ([]client.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]client.Alert(nil), f.active...), nil
}

// Acknowledge records the call and echoes an acknowledged alert.
func (f *FakeAlertAPI) Acknowledge(ctx context.Context, id string) (*client.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ackCalls = append(f.ackCalls, id)
	if f.ackErr != nil {
		return nil, f.ackErr
	}
	now := time.Now().UTC()
	return &client.Alert{ID: id, LifecycleState: "ACKNOWLEDGED", AcknowledgedAt: &now}, nil
}

// Resolve records the call and echoes a resolved alert.
func (f *FakeAlertAPI) Resolve(ctx context.Context, id, notes string) (*client.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls = append(f.resolveCalls, ResolveCall{ID: id, Notes: notes})
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	now := time.Now().UTC()
	return &client.Alert{ID: id, LifecycleState: "RESOLVED", ResolvedAt: &now, ResolutionNotes: notes}, nil
}

// ListCalls reports how many times ListActive ran.
func (f *FakeAlertAPI) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// AckCalls returns the IDs passed to Acknowledge, in order.
func (f *FakeAlertAPI) AckCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ackCalls...)
}

// ResolveCalls returns the recorded Resolve invocations, in order.
func (f *FakeAlertAPI) ResolveCalls() []ResolveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ResolveCall(nil), f.resolveCalls...)
}

// FakeSink captures toasts and sounds instead of rendering them.
type FakeSink struct {
	mu       sync.Mutex
	toasts   []notify.Toast
	sounds   []notify.Sound
	toastErr error
	soundErr error
}

// NewFakeSink creates a sink that records everything it is shown.
func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

// ShowToast records the toast or returns the injected error.
func (f *FakeSink) ShowToast(t notify.Toast) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toastErr != nil {
		return f.toastErr
	}
	f.toasts = append(f.toasts, t)
	return nil
}

// PlaySound records the sound or returns the injected error.
func (f *FakeSink) PlaySound(s notify.Sound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.soundErr != nil {
		return f.soundErr
	}
	f.sounds = append(f.sounds, s)
	return nil
}

// SetToastErr makes ShowToast fail until cleared with nil.
func (f *FakeSink) SetToastErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toastErr = err
}

// SetSoundErr makes PlaySound fail until cleared with nil.
func (f *FakeSink) SetSoundErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.soundErr = err
}

// Toasts returns the recorded toasts, in order.
func (f *FakeSink) Toasts() []notify.Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Toast(nil), f.toasts...)
}

// Sounds returns the recorded sounds, in order.
func (f *FakeSink) Sounds() []notify.Sound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Sound(nil), f.sounds...)
}

// FakePrefs is a mutable notification preference source.
type FakePrefs struct {
	mu    sync.Mutex
	sound bool
}

// NewFakePrefs creates a preference source with the given sound setting.
func NewFakePrefs(sound bool) *FakePrefs {
	return &FakePrefs{sound: sound}
}

// SetSound flips the sound preference; dispatchers read it per event.
func (f *FakePrefs) SetSound(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sound = on
}

// SoundEnabled reports the current sound preference.
func (f *FakePrefs) SoundEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sound
}
