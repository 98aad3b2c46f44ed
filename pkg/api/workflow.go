package api

import (
	"context"
	"fmt"
	"time"
)

// Stage is one position in the fixed fulfillment workflow.
// Stages advance monotonically on success; compensation walks them backward.
type Stage int

const (
	StageValidate Stage = iota
	StagePay
	StageAdjustInventory
	StageNotify
	StageReceipt
)

// FirstStage and LastStage bound the workflow.
const (
	FirstStage = StageValidate
	LastStage  = StageReceipt
)

const numStages = int(LastStage) + 1

var stageNames = [numStages]string{
	StageValidate:        "VALIDATE",
	StagePay:             "PAY",
	StageAdjustInventory: "ADJUST_INVENTORY",
	StageNotify:          "NOTIFY",
	StageReceipt:         "RECEIPT",
}

// Stages returns all stages in workflow order.
func Stages() []Stage {
	out := make([]Stage, numStages)
	for i := range out {
		out[i] = Stage(i)
	}
	return out
}

func (s Stage) Valid() bool {
	return s >= FirstStage && s <= LastStage
}

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Next returns the following stage, or false if s is the last stage.
func (s Stage) Next() (Stage, bool) {
	if s >= LastStage {
		return s, false
	}
	return s + 1, true
}

// Prev returns the preceding stage, or false if s is the first stage.
func (s Stage) Prev() (Stage, bool) {
	if s <= FirstStage {
		return s, false
	}
	return s - 1, true
}

// ParseStage converts a stage name (e.g. "PAY") back into a Stage.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage: %q", name)
}

// Status represents the lifecycle state of a workflow instance.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusRunning      Status = "RUNNING"
	StatusSucceeded    Status = "SUCCEEDED"
	StatusFailed       Status = "FAILED"
	StatusCompensating Status = "COMPENSATING"
	StatusCompensated  Status = "COMPENSATED"
)

// Terminal reports whether the status admits no further transitions.
// StatusFailed is reserved for orchestration faults that cannot be
// compensated automatically; it is terminal but needs operator attention.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusCompensated || s == StatusFailed
}

// Outcome classifies the result of a single step invocation.
type Outcome string

const (
	Success          Outcome = "SUCCESS"
	RetryableFailure Outcome = "RETRYABLE_FAILURE"
	PermanentFailure Outcome = "PERMANENT_FAILURE"
)

// StepResult is the transient value returned by a step invocation.
// It is never persisted on its own; the orchestrator folds it into the
// workflow instance.
type StepResult struct {
	Outcome Outcome
	Data    map[string]any
	Reason  string
}

// Succeed builds a successful StepResult carrying the step's outputs.
func Succeed(data map[string]any) StepResult {
	return StepResult{Outcome: Success, Data: data}
}

// Retryable builds a StepResult for a failure expected to pass on a later
// attempt with no input change.
func Retryable(reason string) StepResult {
	return StepResult{Outcome: RetryableFailure, Reason: reason}
}

// Permanent builds a StepResult for a failure that will not pass on retry.
func Permanent(reason string) StepResult {
	return StepResult{Outcome: PermanentFailure, Reason: reason}
}

// Order holds the original order fields supplied at submission.
// Amount is in minor currency units (cents).
type Order struct {
	OrderID       string
	ProductID     string
	Quantity      int
	Amount        int64
	PaymentMethod string
	Email         string
}

// Request is the input to a step invocation: the original order fields plus
// the payload accumulated by earlier stages.
type Request struct {
	Order   Order
	Payload map[string]any
}

// Step is the uniform contract every fulfillment stage implements.
//
// Invoke must be idempotent under repeated invocation with the same input:
// the orchestrator may redeliver after a crash that happened before a
// success was persisted. A non-nil error is treated as a transient
// infrastructure failure and mapped to RetryableFailure; domain failures
// should be expressed through the StepResult outcome instead.
//
// Side effects must stay confined to the external collaborator the step
// wraps; steps never mutate orchestrator state directly.
type Step interface {
	Invoke(ctx context.Context, req Request) (StepResult, error)
}

// Compensator is implemented by steps whose effect can be semantically
// reversed. Stages without a reversible side effect (e.g. notification)
// simply don't implement it and compensate as a no-op.
//
// Compensate must be best-effort idempotent.
type Compensator interface {
	Compensate(ctx context.Context, req Request) error
}

// Instance is the persisted record of one in-flight order workflow.
//
// Invariants:
//   - Stage only advances forward, except during compensation, which walks
//     it backward.
//   - Payload keys are write-once: a key written by stage N is never
//     overwritten by a later stage.
//   - Version increments on every committed write; exactly one writer wins
//     any given version.
type Instance struct {
	OrderID string
	Order   Order

	Stage  Stage
	Status Status

	// Attempts maps each stage to its retry count so far. The counter for a
	// newly entered stage starts at zero; counters of completed stages are
	// retained for audit.
	Attempts map[Stage]int

	// Payload is the working order context: stage outputs merged in as each
	// stage succeeds, visible to all later stages.
	Payload map[string]any

	// CompletedStages lists stages that committed a success, in order. During
	// compensation it doubles as the stack of stages still to unwind.
	CompletedStages []Stage

	// Unresolved records compensations that exhausted their retries and need
	// operator follow-up. The instance still terminates as COMPENSATED.
	Unresolved []string

	LastError       string
	CancelRequested bool

	// Version is the optimistic concurrency counter bumped on every write.
	Version int64

	// RunAfter is the earliest time the instance is eligible for another
	// tick; retry backoff is expressed through it so waiting never occupies
	// a worker.
	RunAfter time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy, so stores can hand out records without
// aliasing their internal state.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	out := *i
	if i.Attempts != nil {
		out.Attempts = make(map[Stage]int, len(i.Attempts))
		for k, v := range i.Attempts {
			out.Attempts[k] = v
		}
	}
	if i.Payload != nil {
		out.Payload = make(map[string]any, len(i.Payload))
		for k, v := range i.Payload {
			out.Payload[k] = v
		}
	}
	out.CompletedStages = append([]Stage(nil), i.CompletedStages...)
	out.Unresolved = append([]string(nil), i.Unresolved...)
	return &out
}
