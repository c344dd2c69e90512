package models

import "encoding/json"

// SignalKind distinguishes the two continuous input shapes upstream producers
// emit. Both map through the same severity threshold table.
type SignalKind string

const (
	SignalConfidence SignalKind = "confidence"
	SignalRiskScore  SignalKind = "risk_score"
)

// Signal is the normalized tuple handed over by the upstream forecasting,
// safety-event, and cognitive-flag systems. Producers are not fully trusted:
// Value is clamped to [0,100] rather than rejected.
type Signal struct {
	Source   IncidentSource `json:"source"`
	Kind     SignalKind     `json:"kind"`
	Value    float64        `json:"value"`
	Category string         `json:"category"`
	// SourceID is the originating external record id (forecast or event id);
	// optional, used for redelivery deduplication when present.
	SourceID *string `json:"source_id,omitempty"`
	// Payload carries feature key/values used only to derive the advisory
	// title, summary, and root-cause hypothesis.
	Payload json.RawMessage `json:"payload,omitempty"`
}
