package api

import (
	"errors"
	"fmt"
)

// StageBinding pairs a stage with its step implementation and retry policy.
type StageBinding struct {
	Stage Stage
	Step  Step
	Retry RetryPolicy
}

// Registry is the static, ordered mapping from stage to step implementation
// and retry policy. It is immutable after construction: there is no runtime
// registration, so the workflow graph stays fixed and auditable.
type Registry struct {
	steps    [numStages]Step
	policies [numStages]RetryPolicy
}

// NewRegistry builds a Registry from bindings. Every stage must be bound
// exactly once with a non-nil step. MaxAttempts < 1 is normalized to 1.
func NewRegistry(bindings []StageBinding) (*Registry, error) {
	r := &Registry{}
	var bound [numStages]bool

	for _, b := range bindings {
		if !b.Stage.Valid() {
			return nil, fmt.Errorf("invalid stage in binding: %d", int(b.Stage))
		}
		if bound[b.Stage] {
			return nil, fmt.Errorf("stage %s bound twice", b.Stage)
		}
		if b.Step == nil {
			return nil, fmt.Errorf("stage %s has nil step", b.Stage)
		}
		if b.Retry.MaxAttempts < 1 {
			b.Retry.MaxAttempts = 1
		}
		r.steps[b.Stage] = b.Step
		r.policies[b.Stage] = b.Retry
		bound[b.Stage] = true
	}

	for _, s := range Stages() {
		if !bound[s] {
			return nil, fmt.Errorf("stage %s is not bound", s)
		}
	}
	return r, nil
}

// Resolve returns the step and retry policy for a stage.
func (r *Registry) Resolve(stage Stage) (Step, RetryPolicy, error) {
	if r == nil {
		return nil, RetryPolicy{}, errors.New("nil registry")
	}
	if !stage.Valid() {
		return nil, RetryPolicy{}, fmt.Errorf("invalid stage: %d", int(stage))
	}
	return r.steps[stage], r.policies[stage], nil
}
