package transport

import (
	"encoding/json"
	"time"
)

// Push frame type discriminators. Frames with any other type are ignored
// so the server can add message kinds without breaking older clients.
const (
	MessageTypeAlert  = "realtime_alert"
	MessageTypeHealth = "system_health"
)

// Envelope is the framing every push message uses on the wire.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HealthPayload is the data carried by system_health frames.
type HealthPayload struct {
	Status    string            `json:"status" validate:"required"`
	Version   string            `json:"version,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}
