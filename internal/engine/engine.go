package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petrijr/sagaflow/internal/persistence"
	"github.com/petrijr/sagaflow/pkg/api"
)

// Options tune the orchestrator. Zero values fall back to defaults.
type Options struct {
	// StaleAfter is how long a RUNNING instance may go without a committed
	// write before other workers treat its claim as abandoned.
	StaleAfter time.Duration

	// TickRetries bounds how often a tick restarts after losing a
	// compare-and-swap race before giving up (the instance stays runnable
	// and is picked up again on the next poll).
	TickRetries int

	// CompensateAttempts is the fixed per-stage retry budget for
	// compensations. No backoff: compensations must terminate quickly.
	CompensateAttempts int
}

const (
	defaultStaleAfter         = 30 * time.Second
	defaultTickRetries        = 3
	defaultCompensateAttempts = 3
)

func (o Options) withDefaults() Options {
	if o.StaleAfter <= 0 {
		o.StaleAfter = defaultStaleAfter
	}
	if o.TickRetries <= 0 {
		o.TickRetries = defaultTickRetries
	}
	if o.CompensateAttempts <= 0 {
		o.CompensateAttempts = defaultCompensateAttempts
	}
	return o
}

// Config describes how to construct an engine.
type Config struct {
	Store    persistence.InstanceStore
	Registry *api.Registry
	Observer api.Observer
	Options  Options
}

type engineImpl struct {
	store    persistence.InstanceStore
	registry *api.Registry
	observer api.Observer
	opts     Options
}

// New creates an Engine from the given configuration.
func New(cfg Config) (api.Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("engine: registry is required")
	}
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	return &engineImpl{
		store:    cfg.Store,
		registry: cfg.Registry,
		observer: obs,
		opts:     cfg.Options.withDefaults(),
	}, nil
}

func (e *engineImpl) Submit(ctx context.Context, order api.Order) (*api.Instance, error) {
	if order.OrderID == "" {
		return nil, errors.New("order id is required")
	}

	now := time.Now()
	inst := &api.Instance{
		OrderID:   order.OrderID,
		Order:     order,
		Stage:     api.FirstStage,
		Status:    api.StatusPending,
		Attempts:  make(map[api.Stage]int),
		Payload:   make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateInstance(ctx, inst); err != nil {
		return nil, err
	}

	e.observer.OnOrderSubmitted(ctx, inst)
	return inst, nil
}

func (e *engineImpl) Tick(ctx context.Context, orderID string) (*api.Instance, error) {
	var lastErr error
	for attempt := 0; attempt < e.opts.TickRetries; attempt++ {
		inst, err := e.tick(ctx, orderID)
		if errors.Is(err, api.ErrVersionConflict) {
			// Lost the race; re-read and try again. The winning worker has
			// already moved the instance, so no side effect is duplicated.
			lastErr = err
			continue
		}
		return inst, err
	}
	return nil, lastErr
}

// tick performs one transition: claim the instance, invoke the current
// stage's step once, and commit the outcome via compare-and-swap.
func (e *engineImpl) tick(ctx context.Context, orderID string) (*api.Instance, error) {
	inst, err := e.store.GetInstance(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if inst.Status.Terminal() {
		return inst, nil
	}

	if inst.Status == api.StatusCompensating {
		// A recent write means another worker owns the unwind; resume only
		// once its claim has gone stale.
		if time.Since(inst.UpdatedAt) < e.opts.StaleAfter {
			return inst, nil
		}
		// Claim the resumed unwind before invoking any compensator, so two
		// workers never run the same stage's compensation concurrently.
		if err := e.store.UpdateInstance(ctx, inst, inst.Version); err != nil {
			return nil, err
		}
		return e.compensate(ctx, inst)
	}

	// Another worker holds the claim. Re-claim only once the claim has gone
	// stale (no committed write within StaleAfter).
	if inst.Status == api.StatusRunning && time.Since(inst.UpdatedAt) < e.opts.StaleAfter {
		return inst, nil
	}

	// Cancellation is advisory and only observed here, between invocations.
	if inst.CancelRequested {
		failedStage := inst.Stage
		inst.Status = api.StatusCompensating
		inst.LastError = api.ReasonCancelRequested
		if err := e.store.UpdateInstance(ctx, inst, inst.Version); err != nil {
			return nil, err
		}
		e.observer.OnOrderCompensating(ctx, inst, failedStage, inst.LastError)
		return e.compensate(ctx, inst)
	}

	// Parked until its backoff window passes; not an error, just nothing to
	// do yet.
	if inst.Status == api.StatusPending && inst.RunAfter.After(time.Now()) {
		return inst, nil
	}

	stage := inst.Stage
	step, policy, err := e.registry.Resolve(stage)
	if err != nil {
		// A validated registry cannot fail resolution; if it does the
		// instance cannot make progress at all.
		inst.Status = api.StatusFailed
		inst.LastError = err.Error()
		if uerr := e.store.UpdateInstance(ctx, inst, inst.Version); uerr != nil {
			return nil, uerr
		}
		return inst, nil
	}

	// Claim: commit the RUNNING transition before invoking. A lost race
	// here means another worker owns this tick.
	inst.Status = api.StatusRunning
	if err := e.store.UpdateInstance(ctx, inst, inst.Version); err != nil {
		return nil, err
	}

	e.observer.OnStageStart(ctx, inst, stage)
	start := time.Now()
	res, invokeErr := step.Invoke(ctx, api.Request{
		Order:   inst.Order,
		Payload: clonePayload(inst.Payload),
	})
	if invokeErr != nil {
		// Infrastructure errors are always retryable; the step had no
		// chance to classify them.
		res = api.Retryable(invokeErr.Error())
	}
	e.observer.OnStageCompleted(ctx, inst, stage, res, invokeErr, time.Since(start))

	switch res.Outcome {
	case api.Success:
		return e.commitSuccess(ctx, inst, stage, res)
	case api.RetryableFailure:
		attempts := inst.Attempts[stage] + 1
		inst.Attempts[stage] = attempts
		if attempts < policy.MaxAttempts {
			return e.scheduleRetry(ctx, inst, policy, attempts, res.Reason)
		}
		// Retries exhausted: escalate to a permanent failure.
		fallthrough
	case api.PermanentFailure:
		return e.beginCompensation(ctx, inst, stage, res.Reason)
	default:
		// A step returning an outcome outside the taxonomy is a bug; surface
		// it immediately instead of leaving a stranded RUNNING claim.
		inst.Status = api.StatusFailed
		inst.LastError = fmt.Sprintf("stage %s returned invalid outcome %q", stage, res.Outcome)
		if uerr := e.store.UpdateInstance(ctx, inst, inst.Version); uerr != nil {
			return nil, uerr
		}
		return inst, nil
	}
}

func (e *engineImpl) commitSuccess(ctx context.Context, inst *api.Instance, stage api.Stage, res api.StepResult) (*api.Instance, error) {
	mergePayload(inst.Payload, res.Data)
	inst.CompletedStages = appendStage(inst.CompletedStages, stage)
	inst.LastError = ""
	inst.RunAfter = time.Time{}

	next, ok := stage.Next()
	if !ok {
		inst.Status = api.StatusSucceeded
	} else {
		inst.Stage = next
		inst.Status = api.StatusPending
		// The new stage's counter starts fresh; completed counters are
		// retained for audit.
		delete(inst.Attempts, next)
	}

	if err := e.store.UpdateInstance(ctx, inst, inst.Version); err != nil {
		return nil, err
	}
	if inst.Status == api.StatusSucceeded {
		e.observer.OnOrderSucceeded(ctx, inst)
	}
	return inst, nil
}

func (e *engineImpl) scheduleRetry(ctx context.Context, inst *api.Instance, policy api.RetryPolicy, attempts int, reason string) (*api.Instance, error) {
	inst.Status = api.StatusPending
	inst.LastError = reason
	// Delay is a pure function of the attempt count so a crashed worker
	// recomputes the same schedule.
	inst.RunAfter = time.Now().Add(policy.Delay(attempts))
	if err := e.store.UpdateInstance(ctx, inst, inst.Version); err != nil {
		return nil, err
	}
	return inst, nil
}

func (e *engineImpl) beginCompensation(ctx context.Context, inst *api.Instance, stage api.Stage, reason string) (*api.Instance, error) {
	inst.Status = api.StatusCompensating
	inst.LastError = reason
	inst.RunAfter = time.Time{}
	if err := e.store.UpdateInstance(ctx, inst, inst.Version); err != nil {
		return nil, err
	}
	e.observer.OnOrderCompensating(ctx, inst, stage, reason)
	return e.compensate(ctx, inst)
}

func (e *engineImpl) Run(ctx context.Context, orderID string) (*api.Instance, error) {
	for {
		inst, err := e.Tick(ctx, orderID)
		if errors.Is(err, api.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if inst.Status.Terminal() {
			return inst, nil
		}

		// Yield through backoff windows instead of spinning.
		wait := time.Until(inst.RunAfter)
		if (inst.Status == api.StatusRunning || inst.Status == api.StatusCompensating) && wait <= 0 {
			// Claimed by a concurrent worker; check back shortly.
			wait = 50 * time.Millisecond
		}
		if wait > 0 {
			select {
			case <-ctx.Done():
				return inst, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
}

func (e *engineImpl) Get(ctx context.Context, orderID string) (*api.Instance, error) {
	return e.store.GetInstance(ctx, orderID)
}

func (e *engineImpl) Status(ctx context.Context, orderID string) (api.StatusView, error) {
	inst, err := e.store.GetInstance(ctx, orderID)
	if err != nil {
		return api.StatusView{}, err
	}
	return api.StatusView{
		OrderID:   inst.OrderID,
		Status:    inst.Status,
		Stage:     inst.Stage,
		LastError: inst.LastError,
	}, nil
}

func (e *engineImpl) List(ctx context.Context, opts api.ListOptions) ([]*api.Instance, error) {
	return e.store.ListInstances(ctx, persistence.InstanceFilter{Status: opts.Status})
}

func (e *engineImpl) PollRunnable(ctx context.Context, limit int) ([]string, error) {
	return e.store.ListRunnable(ctx, time.Now(), e.opts.StaleAfter, limit)
}

func (e *engineImpl) RequestCancel(ctx context.Context, orderID string) error {
	for attempt := 0; attempt < e.opts.TickRetries; attempt++ {
		inst, err := e.store.GetInstance(ctx, orderID)
		if err != nil {
			return err
		}
		if inst.Status.Terminal() || inst.CancelRequested {
			return nil
		}
		inst.CancelRequested = true
		err = e.store.UpdateInstance(ctx, inst, inst.Version)
		if errors.Is(err, api.ErrVersionConflict) {
			continue
		}
		return err
	}
	return api.ErrVersionConflict
}

func (e *engineImpl) Archive(ctx context.Context, orderID string) error {
	inst, err := e.store.GetInstance(ctx, orderID)
	if err != nil {
		return err
	}
	if inst.Status != api.StatusSucceeded && inst.Status != api.StatusCompensated {
		return fmt.Errorf("cannot archive order %s in status %s", orderID, inst.Status)
	}
	return e.store.DeleteInstance(ctx, orderID)
}

// mergePayload folds step outputs into the working payload. Keys are
// write-once: the first writer wins, so a later stage can never clobber an
// earlier stage's output.
func mergePayload(dst, src map[string]any) {
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
}

func clonePayload(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func appendStage(stages []api.Stage, stage api.Stage) []api.Stage {
	for _, s := range stages {
		if s == stage {
			return stages
		}
	}
	return append(stages, stage)
}
