package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/remedyloop/remedyd/internal/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from models.IncidentStatus
		to   models.IncidentStatus
		want bool
	}{
		{"open to remediating", models.StatusOpen, models.StatusRemediating, true},
		{"open to awaiting approval", models.StatusOpen, models.StatusAwaitingApproval, true},
		{"open to resolved", models.StatusOpen, models.StatusResolved, true},
		{"open to closed", models.StatusOpen, models.StatusClosed, true},
		{"remediating to awaiting approval", models.StatusRemediating, models.StatusAwaitingApproval, true},
		{"remediating to resolved", models.StatusRemediating, models.StatusResolved, true},
		{"awaiting approval to remediating", models.StatusAwaitingApproval, models.StatusRemediating, true},
		{"awaiting approval to closed", models.StatusAwaitingApproval, models.StatusClosed, true},
		{"resolved to closed", models.StatusResolved, models.StatusClosed, true},

		{"remediating to open", models.StatusRemediating, models.StatusOpen, false},
		{"resolved to open", models.StatusResolved, models.StatusOpen, false},
		{"resolved to remediating", models.StatusResolved, models.StatusRemediating, false},
		{"closed to anything", models.StatusClosed, models.StatusOpen, false},
		{"closed to resolved", models.StatusClosed, models.StatusResolved, false},

		{"same status is allowed", models.StatusRemediating, models.StatusRemediating, true},
		{"closed to closed", models.StatusClosed, models.StatusClosed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, models.StatusResolved.Terminal())
	assert.True(t, models.StatusClosed.Terminal())
	assert.False(t, models.StatusOpen.Terminal())
	assert.False(t, models.StatusRemediating.Terminal())
	assert.False(t, models.StatusAwaitingApproval.Terminal())
}
