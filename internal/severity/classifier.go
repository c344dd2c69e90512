// Package severity maps continuous risk signals to the ordinal incident
// severity scale. One threshold table serves both signal kinds so semantics
// stay consistent across signal sources.
package severity

import "github.com/remedyloop/remedyd/internal/models"

// Classify maps a 0–100 signal value to a severity. Out-of-range values are
// clamped rather than rejected; upstream producers are not fully trusted.
func Classify(kind models.SignalKind, value float64) models.Severity {
	_ = kind // confidence and risk_score share one table
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	switch {
	case value >= 80:
		return models.SeverityCritical
	case value >= 60:
		return models.SeverityHigh
	case value >= 40:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
