package testutil

import (
	"time"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	"github.com/cisseniang564/ProvTech-sub001/pkg/client"
)

// WireAlert builds an alert in the wire shape the dashboard API returns.
func WireAlert(id, severity, state string, triggered time.Time) client.Alert {
	return client.Alert{
		ID:               id,
		RuleID:           "rule-" + id,
		RuleName:         "SCR coverage floor",
		Severity:         severity,
		CurrentValue:     1.12,
		ThresholdValue:   1.5,
		DeviationPercent: -25.3,
		TriggeredAt:      triggered,
		LifecycleState:   state,
	}
}

// DomainAlert builds a reconciled alert for seeding stores directly.
func DomainAlert(id string, sev alert.Severity, state alert.LifecycleState, triggered time.Time) alert.Alert {
	return alert.Alert{
		ID:               id,
		RuleID:           "rule-" + id,
		RuleName:         "SCR coverage floor",
		Severity:         sev,
		CurrentValue:     1.12,
		ThresholdValue:   1.5,
		DeviationPercent: -25.3,
		TriggeredAt:      triggered,
		State:            state,
	}
}
