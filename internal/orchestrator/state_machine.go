package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/remedyloop/remedyd/internal/models"
	"github.com/remedyloop/remedyd/internal/repository"
)

// validTransitions defines allowed (from → to) status transitions.
// resolved and closed are terminal.
var validTransitions = map[models.IncidentStatus][]models.IncidentStatus{
	models.StatusOpen:             {models.StatusRemediating, models.StatusAwaitingApproval, models.StatusResolved, models.StatusClosed},
	models.StatusRemediating:      {models.StatusAwaitingApproval, models.StatusResolved, models.StatusClosed},
	models.StatusAwaitingApproval: {models.StatusRemediating, models.StatusResolved, models.StatusClosed},
	models.StatusResolved:         {models.StatusClosed},
	models.StatusClosed:           nil,
}

// CanTransition reports whether transitioning from `from` to `to` is allowed.
func CanTransition(from, to models.IncidentStatus) bool {
	if from == to {
		return true
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transition commits a status change with a compare-and-set guard: the write
// only lands if the stored status still equals `from`. A lost race returns
// false with no error; the losing writer must treat its whole operation as a
// no-op rather than corrupt action ordering. resolvedAt is stamped exactly
// when entering resolved or closed.
func transition(ctx context.Context, repo repository.IncidentRepository, tenantID, incidentID string, from, to models.IncidentStatus) (bool, error) {
	if !CanTransition(from, to) {
		return false, fmt.Errorf("invalid transition %s → %s for incident %s", from, to, incidentID)
	}
	if from == to {
		return true, nil
	}
	var resolvedAt *time.Time
	if to == models.StatusResolved || to == models.StatusClosed {
		now := time.Now().UTC()
		resolvedAt = &now
	}
	return repo.CompareAndSetStatus(ctx, tenantID, incidentID, from, to, resolvedAt)
}
