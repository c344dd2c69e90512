package orchestrator

import (
	"context"
	"encoding/json"
)

// Executor performs one remediation action. Implementations are supplied by
// the hosting system (notify, scale, feature-flag handlers) and interpret the
// payload for their action type; the orchestrator never looks inside it.
// Executors own their retry policy; the orchestrator never retries.
type Executor interface {
	Execute(ctx context.Context, payload json.RawMessage) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, payload json.RawMessage) error

func (f ExecutorFunc) Execute(ctx context.Context, payload json.RawMessage) error {
	return f(ctx, payload)
}

// Registry maps action types to executors and, optionally, to compensating
// executors used by the rollback engine (block → unblock, scale_down →
// scale_up). It is plain constructor-injected state: no package-level
// dispatch table exists, so tests inject fakes freely.
type Registry struct {
	executors map[string]Executor
	inverses  map[string]Executor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
		inverses:  make(map[string]Executor),
	}
}

// Register binds an executor to an action type.
func (r *Registry) Register(actionType string, ex Executor) {
	r.executors[actionType] = ex
}

// RegisterInverse binds the compensating executor for an action type. Not
// every action type has an inverse; rollback logs those as skipped.
func (r *Registry) RegisterInverse(actionType string, ex Executor) {
	r.inverses[actionType] = ex
}

// Get returns the executor for an action type, or nil.
func (r *Registry) Get(actionType string) Executor {
	return r.executors[actionType]
}

// Inverse returns the compensating executor for an action type, or nil.
func (r *Registry) Inverse(actionType string) Executor {
	return r.inverses[actionType]
}

// Known reports whether an executor is registered for the action type. The
// runbook catalog uses this to reject unknown types at write time.
func (r *Registry) Known(actionType string) bool {
	_, ok := r.executors[actionType]
	return ok
}
