package client

import "time"

// Alert represents a threshold-breach alert as the API returns it
type Alert struct {
	ID               string     `json:"id"`
	RuleID           string     `json:"rule_id"`
	RuleName         string     `json:"rule_name"`
	Severity         string     `json:"severity"` // low, medium, high, critical
	CurrentValue     float64    `json:"current_value"`
	ThresholdValue   float64    `json:"threshold_value"`
	DeviationPercent float64    `json:"deviation_percent"`
	TriggeredAt      time.Time  `json:"triggered_at"`
	LifecycleState   string     `json:"lifecycle_state"` // ACTIVE, ACKNOWLEDGED, RESOLVED
	AcknowledgedAt   *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy   string     `json:"acknowledged_by,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes  string     `json:"resolution_notes,omitempty"`
}

// ListActiveOptions contains filters for listing active alerts
type ListActiveOptions struct {
	Severity     string // filter to a single severity
	Acknowledged *bool  // filter by acknowledged state
}

// ResolveRequest is the body of a resolve call
type ResolveRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}
