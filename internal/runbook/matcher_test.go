package runbook

import (
	"testing"
	"time"

	"github.com/remedyloop/remedyd/internal/models"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func sevPtr(s models.Severity) *models.Severity { return &s }

func srcPtr(s models.IncidentSource) *models.IncidentSource { return &s }

func testIncident() *models.Incident {
	return &models.Incident{
		ID:       "inc-1",
		TenantID: "tenant-a",
		Source:   models.SourceForecast,
		Severity: models.SeverityHigh,
		Title:    "Forecast anomaly: churn spike in EU segment",
	}
}

func testRunbook(id string, createdAt time.Time) *models.Runbook {
	return &models.Runbook{
		ID:            id,
		TenantID:      "tenant-a",
		Name:          "rb-" + id,
		SeverityScope: models.ScopeAll,
		Enabled:       true,
		Actions:       []models.RunbookAction{{Type: "notify", Order: 1}},
		CreatedAt:     createdAt,
	}
}

func TestMatches_AbsentPredicatesAreDontCare(t *testing.T) {
	assert.True(t, Matches(models.TriggerConditions{}, testIncident()))
}

func TestMatches_Conjunction(t *testing.T) {
	inc := testIncident()

	tc := models.TriggerConditions{
		Source:       srcPtr(models.SourceForecast),
		MinSeverity:  sevPtr(models.SeverityMedium),
		TitlePattern: strPtr(`churn\s+spike`),
	}
	assert.True(t, Matches(tc, inc))

	// One failing predicate fails the conjunction.
	tc.Source = srcPtr(models.SourceSafetyEvent)
	assert.False(t, Matches(tc, inc))
}

func TestMatches_MinSeverityOrdinal(t *testing.T) {
	inc := testIncident() // high
	assert.True(t, Matches(models.TriggerConditions{MinSeverity: sevPtr(models.SeverityHigh)}, inc))
	assert.True(t, Matches(models.TriggerConditions{MinSeverity: sevPtr(models.SeverityLow)}, inc))
	assert.False(t, Matches(models.TriggerConditions{MinSeverity: sevPtr(models.SeverityCritical)}, inc))
}

func TestMatches_TitlePatternCaseInsensitiveSearch(t *testing.T) {
	inc := testIncident()
	assert.True(t, Matches(models.TriggerConditions{TitlePattern: strPtr("CHURN")}, inc))
	assert.False(t, Matches(models.TriggerConditions{TitlePattern: strPtr("^churn")}, inc))
}

func TestSelect_DeterministicOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	older := testRunbook("bbb", base)
	newer := testRunbook("aaa", base.Add(time.Hour))

	// Oldest first regardless of input order.
	got := Select(testIncident(), []*models.Runbook{newer, older})
	assert.Equal(t, "bbb", got.ID)
	got = Select(testIncident(), []*models.Runbook{older, newer})
	assert.Equal(t, "bbb", got.ID)

	// Equal timestamps: id breaks the tie.
	tie := testRunbook("aaa", base)
	got = Select(testIncident(), []*models.Runbook{older, tie})
	assert.Equal(t, "aaa", got.ID)
}

func TestSelect_SkipsDisabledAndOutOfScope(t *testing.T) {
	base := time.Now()
	disabled := testRunbook("disabled", base)
	disabled.Enabled = false

	critOnly := testRunbook("crit-only", base.Add(time.Minute))
	critOnly.SeverityScope = models.SeverityScope(models.SeverityCritical)

	match := testRunbook("match", base.Add(2*time.Minute))

	got := Select(testIncident(), []*models.Runbook{disabled, critOnly, match})
	assert.Equal(t, "match", got.ID)
}

func TestSelect_NoMatchReturnsNil(t *testing.T) {
	rb := testRunbook("rb1", time.Now())
	rb.Trigger.Source = srcPtr(models.SourceManual)
	assert.Nil(t, Select(testIncident(), []*models.Runbook{rb}))
	assert.Nil(t, Select(testIncident(), nil))
}
