// Package lifecycle drives acknowledge and resolve round trips. A
// transition lands in the working set immediately so the console feels
// instant, then travels to the dashboard API; if the server refuses, the
// optimistic state is rolled back.
package lifecycle

import (
	"context"
	"time"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	apperrors "github.com/cisseniang564/ProvTech-sub001/internal/pkg/errors"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/metrics"
	"github.com/cisseniang564/ProvTech-sub001/internal/reconcile"
	"github.com/cisseniang564/ProvTech-sub001/pkg/client"
)

// AlertAPI is the slice of the dashboard API the controller calls.
type AlertAPI interface {
	Acknowledge(ctx context.Context, id string) (*client.Alert, error)
	Resolve(ctx context.Context, id, notes string) (*client.Alert, error)
}

// Executor runs a function on the goroutine that owns the working set
// and returns once it has run. The monitor's event loop implements it.
type Executor interface {
	Exec(ctx context.Context, fn func(*reconcile.Store)) error
}

// Controller coordinates optimistic lifecycle transitions.
type Controller struct {
	store Executor
	api   AlertAPI
	actor string
	log   *logger.Logger
}

// New creates a lifecycle controller. actor is recorded as the local
// acknowledger until a snapshot brings the server's authoritative record.
func New(store Executor, api AlertAPI, actor string, log *logger.Logger) *Controller {
	return &Controller{
		store: store,
		api:   api,
		actor: actor,
		log:   log.Component("lifecycle"),
	}
}

// Acknowledge moves an alert to ACKNOWLEDGED optimistically and confirms
// the transition with the server. Transitions the working set refuses
// (unknown ID, lifecycle already past ACTIVE) never reach the server.
func (c *Controller) Acknowledge(ctx context.Context, id string) error {
	var (
		prev alert.Alert
		terr error
	)
	if err := c.store.Exec(ctx, func(s *reconcile.Store) {
		prev, terr = s.Acknowledge(id, c.actor, time.Now().UTC())
	}); err != nil {
		return apperrors.LifecycleAction("acknowledge", id, err)
	}
	if terr != nil {
		return c.rejectLocal("acknowledge", id, terr)
	}

	start := time.Now()
	if _, err := c.api.Acknowledge(ctx, id); err != nil {
		c.revert(id, prev, alert.StateAcknowledged)
		metrics.RecordLifecycleAction("acknowledge", "reverted", time.Since(start))
		c.log.WithFields(map[string]interface{}{
			"alert_id": id,
		}).WithError(err).Warn("Acknowledge rejected by server, optimistic state reverted")
		return apperrors.LifecycleAction("acknowledge", id, err)
	}

	metrics.RecordLifecycleAction("acknowledge", "ok", time.Since(start))
	c.log.WithFields(map[string]interface{}{
		"alert_id": id,
		"actor":    c.actor,
	}).Info("Alert acknowledged")
	return nil
}

// Resolve moves an alert to RESOLVED optimistically and confirms the
// transition with the server.
func (c *Controller) Resolve(ctx context.Context, id, notes string) error {
	var (
		prev alert.Alert
		terr error
	)
	if err := c.store.Exec(ctx, func(s *reconcile.Store) {
		prev, terr = s.Resolve(id, notes, time.Now().UTC())
	}); err != nil {
		return apperrors.LifecycleAction("resolve", id, err)
	}
	if terr != nil {
		return c.rejectLocal("resolve", id, terr)
	}

	start := time.Now()
	if _, err := c.api.Resolve(ctx, id, notes); err != nil {
		c.revert(id, prev, alert.StateResolved)
		metrics.RecordLifecycleAction("resolve", "reverted", time.Since(start))
		c.log.WithFields(map[string]interface{}{
			"alert_id": id,
		}).WithError(err).Warn("Resolve rejected by server, optimistic state reverted")
		return apperrors.LifecycleAction("resolve", id, err)
	}

	metrics.RecordLifecycleAction("resolve", "ok", time.Since(start))
	c.log.WithFields(map[string]interface{}{
		"alert_id": id,
	}).Info("Alert resolved")
	return nil
}

// rejectLocal handles transitions the working set itself refused: no
// server call happened and there is nothing to revert. Invalid
// transitions come back unwrapped so callers can treat "already
// acknowledged" as routine rather than as a failure.
func (c *Controller) rejectLocal(action, id string, err error) error {
	metrics.RecordLifecycleRejected(action)
	if alert.IsInvalidTransition(err) {
		c.log.Debugf("%s of %s rejected locally: %v", action, id, err)
		return err
	}
	return apperrors.LifecycleAction(action, id, err)
}

// revert rolls the optimistic transition back. It runs against a fresh
// context: the rollback must happen even when the caller's context is
// already cancelled. If the working set has shut down there is nothing
// left to roll back.
func (c *Controller) revert(id string, prev alert.Alert, optimistic alert.LifecycleState) {
	if err := c.store.Exec(context.Background(), func(s *reconcile.Store) {
		s.Revert(id, prev, optimistic)
	}); err != nil {
		c.log.WithError(err).Warn("Optimistic state not reverted, working set already shut down")
	}
}
