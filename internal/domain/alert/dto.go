package alert

import (
	"fmt"
	"time"

	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/validator"
)

// DTO is the wire representation of an alert. The snapshot endpoint
// returns an array of these and realtime_alert push frames carry one in
// their data field.
type DTO struct {
	ID               string     `json:"id" validate:"required"`
	RuleID           string     `json:"rule_id" validate:"required"`
	RuleName         string     `json:"rule_name"`
	Severity         string     `json:"severity" validate:"required,oneof=low medium high critical"`
	CurrentValue     float64    `json:"current_value"`
	ThresholdValue   float64    `json:"threshold_value"`
	DeviationPercent float64    `json:"deviation_percent"`
	TriggeredAt      time.Time  `json:"triggered_at" validate:"required"`
	LifecycleState   string     `json:"lifecycle_state" validate:"required,oneof=ACTIVE ACKNOWLEDGED RESOLVED"`
	AcknowledgedAt   *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy   string     `json:"acknowledged_by,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes  string     `json:"resolution_notes,omitempty"`
}

var boundary = validator.New()

// FromDTO validates a wire alert and converts it into the domain entity.
// Payloads that fail validation are rejected here so nothing malformed
// ever reaches the working set.
func FromDTO(d DTO, origin Origin, observedAt time.Time) (Alert, error) {
	if err := boundary.ValidateErr(d); err != nil {
		return Alert{}, fmt.Errorf("invalid alert payload: %w", err)
	}

	a := Alert{
		ID:               d.ID,
		RuleID:           d.RuleID,
		RuleName:         d.RuleName,
		Severity:         Severity(d.Severity),
		CurrentValue:     d.CurrentValue,
		ThresholdValue:   d.ThresholdValue,
		DeviationPercent: d.DeviationPercent,
		TriggeredAt:      d.TriggeredAt,
		State:            LifecycleState(d.LifecycleState),
		AcknowledgedBy:   d.AcknowledgedBy,
		ResolutionNotes:  d.ResolutionNotes,
		Origin:           origin,
		ObservedAt:       observedAt,
	}
	if d.AcknowledgedAt != nil {
		t := *d.AcknowledgedAt
		a.AcknowledgedAt = &t
	}
	if d.ResolvedAt != nil {
		t := *d.ResolvedAt
		a.ResolvedAt = &t
	}
	return a, nil
}

// ToDTO converts the domain entity back to its wire shape.
func ToDTO(a Alert) DTO {
	d := DTO{
		ID:               a.ID,
		RuleID:           a.RuleID,
		RuleName:         a.RuleName,
		Severity:         string(a.Severity),
		CurrentValue:     a.CurrentValue,
		ThresholdValue:   a.ThresholdValue,
		DeviationPercent: a.DeviationPercent,
		TriggeredAt:      a.TriggeredAt,
		LifecycleState:   string(a.State),
		AcknowledgedBy:   a.AcknowledgedBy,
		ResolutionNotes:  a.ResolutionNotes,
	}
	if a.AcknowledgedAt != nil {
		t := *a.AcknowledgedAt
		d.AcknowledgedAt = &t
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		d.ResolvedAt = &t
	}
	return d
}
