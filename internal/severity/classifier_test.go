package severity

import (
	"testing"

	"github.com/remedyloop/remedyd/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		kind  models.SignalKind
		value float64
		want  models.Severity
	}{
		{"confidence critical boundary", models.SignalConfidence, 80, models.SeverityCritical},
		{"confidence high", models.SignalConfidence, 79.9, models.SeverityHigh},
		{"confidence high boundary", models.SignalConfidence, 60, models.SeverityHigh},
		{"confidence medium", models.SignalConfidence, 45, models.SeverityMedium},
		{"confidence medium boundary", models.SignalConfidence, 40, models.SeverityMedium},
		{"confidence low", models.SignalConfidence, 39.99, models.SeverityLow},
		{"confidence zero", models.SignalConfidence, 0, models.SeverityLow},
		{"risk score uses the same table", models.SignalRiskScore, 85, models.SeverityCritical},
		{"risk score medium", models.SignalRiskScore, 45, models.SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.kind, tt.value))
		})
	}
}

func TestClassify_ClampsOutOfRange(t *testing.T) {
	assert.Equal(t, models.SeverityLow, Classify(models.SignalConfidence, -12))
	assert.Equal(t, models.SeverityCritical, Classify(models.SignalRiskScore, 250))
}
