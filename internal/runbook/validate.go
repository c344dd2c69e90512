package runbook

import (
	"fmt"
	"regexp"

	"github.com/remedyloop/remedyd/internal/models"
)

// ActionTypeChecker reports whether an executor is registered for the given
// action type. The catalog rejects unknown types at write time so a malformed
// runbook is never discovered mid-execution.
type ActionTypeChecker func(actionType string) bool

// Validate checks a runbook template before it is written to the catalog.
// Configuration errors (duplicate order, unknown action type, bad regex,
// unknown severity values) are returned here and never silently accepted.
func Validate(rb *models.Runbook, knownType ActionTypeChecker) error {
	if rb.TenantID == "" {
		return fmt.Errorf("runbook validation: tenant_id is required")
	}
	if rb.Name == "" {
		return fmt.Errorf("runbook validation: name is required")
	}
	if !models.ValidSeverityScope(rb.SeverityScope) {
		return fmt.Errorf("runbook validation: unknown severity_scope %q", rb.SeverityScope)
	}
	if rb.Trigger.Source != nil && !models.ValidSource(*rb.Trigger.Source) {
		return fmt.Errorf("runbook validation: unknown trigger source %q", *rb.Trigger.Source)
	}
	if rb.Trigger.MinSeverity != nil && !models.ValidSeverity(*rb.Trigger.MinSeverity) {
		return fmt.Errorf("runbook validation: unknown min_severity %q", *rb.Trigger.MinSeverity)
	}
	if rb.Trigger.TitlePattern != nil {
		if _, err := regexp.Compile("(?i)" + *rb.Trigger.TitlePattern); err != nil {
			return fmt.Errorf("runbook validation: invalid title_pattern: %w", err)
		}
	}
	if len(rb.Actions) == 0 {
		return fmt.Errorf("runbook validation: at least one action is required")
	}
	seenOrder := make(map[int]string, len(rb.Actions))
	for _, a := range rb.Actions {
		if a.Type == "" {
			return fmt.Errorf("runbook validation: action with order %d has empty type", a.Order)
		}
		if a.Type == models.ActionTypeEscalate || a.Type == models.ActionTypeRollback {
			return fmt.Errorf("runbook validation: action type %q is reserved", a.Type)
		}
		if knownType != nil && !knownType(a.Type) {
			return fmt.Errorf("runbook validation: no executor registered for action type %q", a.Type)
		}
		if prev, dup := seenOrder[a.Order]; dup {
			return fmt.Errorf("runbook validation: duplicate order %d (actions %q and %q)", a.Order, prev, a.Type)
		}
		seenOrder[a.Order] = a.Type
	}
	return nil
}
