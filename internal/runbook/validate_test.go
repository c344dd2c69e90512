package runbook

import (
	"testing"

	"github.com/remedyloop/remedyd/internal/models"
	"github.com/stretchr/testify/assert"
)

func validRunbook() *models.Runbook {
	return &models.Runbook{
		TenantID:      "tenant-a",
		Name:          "scale down on overload",
		SeverityScope: models.ScopeAll,
		Actions: []models.RunbookAction{
			{Type: "notify", Order: 1},
			{Type: "scale_down", Order: 2},
		},
	}
}

func allKnown(string) bool { return true }

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(validRunbook(), allKnown))
}

func TestValidate_DuplicateOrder(t *testing.T) {
	rb := validRunbook()
	rb.Actions[1].Order = 1
	err := Validate(rb, allKnown)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate order")
}

func TestValidate_UnknownActionType(t *testing.T) {
	rb := validRunbook()
	err := Validate(rb, func(at string) bool { return at == "notify" })
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no executor registered")
}

func TestValidate_ReservedActionType(t *testing.T) {
	rb := validRunbook()
	rb.Actions[0].Type = models.ActionTypeEscalate
	assert.Error(t, Validate(rb, allKnown))
}

func TestValidate_BadTitlePattern(t *testing.T) {
	rb := validRunbook()
	bad := "([unclosed"
	rb.Trigger.TitlePattern = &bad
	assert.Error(t, Validate(rb, allKnown))
}

func TestValidate_UnknownSeverityScope(t *testing.T) {
	rb := validRunbook()
	rb.SeverityScope = "urgent"
	assert.Error(t, Validate(rb, allKnown))
}

func TestValidate_EmptyActions(t *testing.T) {
	rb := validRunbook()
	rb.Actions = nil
	assert.Error(t, Validate(rb, allKnown))
}
