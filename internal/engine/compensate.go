package engine

import (
	"context"
	"fmt"

	"github.com/petrijr/sagaflow/pkg/api"
)

// compensate walks the completed stages in reverse order and undoes each one
// whose step implements api.Compensator. The walk is resumable: every
// compensated stage is popped off CompletedStages and committed before the
// next one runs, so a crashed worker picks up exactly where the previous one
// stopped.
func (e *engineImpl) compensate(ctx context.Context, inst *api.Instance) (*api.Instance, error) {
	for len(inst.CompletedStages) > 0 {
		idx := len(inst.CompletedStages) - 1
		stage := inst.CompletedStages[idx]

		step, _, err := e.registry.Resolve(stage)
		if err != nil {
			return nil, err
		}

		if comp, ok := step.(api.Compensator); ok {
			if err := e.runCompensation(ctx, inst, stage, comp); err != nil {
				// Budget exhausted. Record the stage for manual follow-up and
				// keep unwinding the rest.
				inst.Unresolved = append(inst.Unresolved,
					fmt.Sprintf("%s: %s", stage, err))
			}
		}

		// Stage tracks the unwind so status callers see the walk move
		// backward stage by stage.
		inst.Stage = stage
		inst.CompletedStages = inst.CompletedStages[:idx]
		if err := e.store.UpdateInstance(ctx, inst, inst.Version); err != nil {
			return nil, err
		}
	}

	inst.Status = api.StatusCompensated
	if err := e.store.UpdateInstance(ctx, inst, inst.Version); err != nil {
		return nil, err
	}
	e.observer.OnOrderCompensated(ctx, inst)
	return inst, nil
}

// runCompensation invokes a single stage's compensator with a small fixed
// retry budget and no backoff. Compensations are expected to be cheap and
// idempotent; anything that keeps failing goes to the unresolved list rather
// than blocking the unwind.
func (e *engineImpl) runCompensation(ctx context.Context, inst *api.Instance, stage api.Stage, comp api.Compensator) error {
	req := api.Request{
		Order:   inst.Order,
		Payload: clonePayload(inst.Payload),
	}

	var lastErr error
	for attempt := 0; attempt < e.opts.CompensateAttempts; attempt++ {
		err := comp.Compensate(ctx, req)
		e.observer.OnCompensation(ctx, inst, stage, err)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}
