package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives callbacks from the orchestrator for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay workflow execution.
type Observer interface {
	// OnOrderSubmitted is called once when a new instance is created.
	OnOrderSubmitted(ctx context.Context, inst *Instance)

	// OnStageStart is called before a stage's step is invoked.
	OnStageStart(ctx context.Context, inst *Instance, stage Stage)

	// OnStageCompleted is called after a step invocation returns, for every
	// outcome. err is the raw infrastructure error, if any.
	OnStageCompleted(ctx context.Context, inst *Instance, stage Stage, res StepResult, err error, duration time.Duration)

	// OnOrderSucceeded is called when an instance reaches StatusSucceeded.
	OnOrderSucceeded(ctx context.Context, inst *Instance)

	// OnOrderCompensating is called when a permanent failure (or a cancel
	// request) puts the instance into StatusCompensating. stage is the stage
	// that failed; reason is the recorded last error.
	OnOrderCompensating(ctx context.Context, inst *Instance, stage Stage, reason string)

	// OnCompensation is called once per compensated stage with the final
	// result of its compensation (nil on success, the last error when the
	// bounded retries were exhausted).
	OnCompensation(ctx context.Context, inst *Instance, stage Stage, err error)

	// OnOrderCompensated is called when an instance reaches
	// StatusCompensated.
	OnOrderCompensated(ctx context.Context, inst *Instance)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnOrderSubmitted(ctx context.Context, inst *Instance)               {}
func (NoopObserver) OnStageStart(ctx context.Context, inst *Instance, stage Stage)      {}
func (NoopObserver) OnOrderSucceeded(ctx context.Context, inst *Instance)               {}
func (NoopObserver) OnOrderCompensated(ctx context.Context, inst *Instance)             {}
func (NoopObserver) OnCompensation(ctx context.Context, inst *Instance, s Stage, e error) {
}
func (NoopObserver) OnOrderCompensating(ctx context.Context, inst *Instance, s Stage, r string) {
}
func (NoopObserver) OnStageCompleted(ctx context.Context, inst *Instance, s Stage, res StepResult, err error, d time.Duration) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnOrderSubmitted(ctx context.Context, inst *Instance) {
	for _, o := range c.observers {
		o.OnOrderSubmitted(ctx, inst)
	}
}

func (c *CompositeObserver) OnStageStart(ctx context.Context, inst *Instance, stage Stage) {
	for _, o := range c.observers {
		o.OnStageStart(ctx, inst, stage)
	}
}

func (c *CompositeObserver) OnStageCompleted(ctx context.Context, inst *Instance, stage Stage, res StepResult, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStageCompleted(ctx, inst, stage, res, err, d)
	}
}

func (c *CompositeObserver) OnOrderSucceeded(ctx context.Context, inst *Instance) {
	for _, o := range c.observers {
		o.OnOrderSucceeded(ctx, inst)
	}
}

func (c *CompositeObserver) OnOrderCompensating(ctx context.Context, inst *Instance, stage Stage, reason string) {
	for _, o := range c.observers {
		o.OnOrderCompensating(ctx, inst, stage, reason)
	}
}

func (c *CompositeObserver) OnCompensation(ctx context.Context, inst *Instance, stage Stage, err error) {
	for _, o := range c.observers {
		o.OnCompensation(ctx, inst, stage, err)
	}
}

func (c *CompositeObserver) OnOrderCompensated(ctx context.Context, inst *Instance) {
	for _, o := range c.observers {
		o.OnOrderCompensated(ctx, inst)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs workflow / stage lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnOrderSubmitted(ctx context.Context, inst *Instance) {
	o.Logger.InfoContext(ctx, "order_submitted",
		slog.String("order_id", inst.OrderID),
	)
}

func (o *LoggingObserver) OnStageStart(ctx context.Context, inst *Instance, stage Stage) {
	o.Logger.DebugContext(ctx, "stage_start",
		slog.String("order_id", inst.OrderID),
		slog.String("stage", stage.String()),
		slog.Int("attempts", inst.Attempts[stage]),
	)
}

func (o *LoggingObserver) OnStageCompleted(ctx context.Context, inst *Instance, stage Stage, res StepResult, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil || res.Outcome != Success {
		level = slog.LevelWarn
	}
	o.Logger.Log(ctx, level, "stage_completed",
		slog.String("order_id", inst.OrderID),
		slog.String("stage", stage.String()),
		slog.String("outcome", string(res.Outcome)),
		slog.String("reason", res.Reason),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnOrderSucceeded(ctx context.Context, inst *Instance) {
	o.Logger.InfoContext(ctx, "order_succeeded",
		slog.String("order_id", inst.OrderID),
	)
}

func (o *LoggingObserver) OnOrderCompensating(ctx context.Context, inst *Instance, stage Stage, reason string) {
	o.Logger.WarnContext(ctx, "order_compensating",
		slog.String("order_id", inst.OrderID),
		slog.String("failed_stage", stage.String()),
		slog.String("reason", reason),
	)
}

func (o *LoggingObserver) OnCompensation(ctx context.Context, inst *Instance, stage Stage, err error) {
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "compensation",
		slog.String("order_id", inst.OrderID),
		slog.String("stage", stage.String()),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnOrderCompensated(ctx context.Context, inst *Instance) {
	o.Logger.InfoContext(ctx, "order_compensated",
		slog.String("order_id", inst.OrderID),
		slog.String("last_error", inst.LastError),
		slog.Int("unresolved", len(inst.Unresolved)),
	)
}

// BasicMetrics collects simple counters and aggregate stage durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	ordersSubmitted    atomic.Int64
	ordersSucceeded    atomic.Int64
	ordersCompensated  atomic.Int64
	stagesCompleted    atomic.Int64
	compensationsRun   atomic.Int64
	totalStageDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	OrdersSubmitted   int64
	OrdersSucceeded   int64
	OrdersCompensated int64
	OrdersInFlight    int64

	StagesCompleted  int64
	CompensationsRun int64
	AvgStageDuration time.Duration
}

func (m *BasicMetrics) OnOrderSubmitted(ctx context.Context, inst *Instance) {
	m.ordersSubmitted.Add(1)
}

func (m *BasicMetrics) OnOrderSucceeded(ctx context.Context, inst *Instance) {
	m.ordersSucceeded.Add(1)
}

func (m *BasicMetrics) OnOrderCompensated(ctx context.Context, inst *Instance) {
	m.ordersCompensated.Add(1)
}

func (m *BasicMetrics) OnCompensation(ctx context.Context, inst *Instance, stage Stage, err error) {
	m.compensationsRun.Add(1)
}

func (m *BasicMetrics) OnStageCompleted(ctx context.Context, inst *Instance, stage Stage, res StepResult, err error, d time.Duration) {
	// Only successful stages count toward the average duration.
	if err == nil && res.Outcome == Success {
		m.stagesCompleted.Add(1)
		m.totalStageDuration.Add(d.Nanoseconds())
	}
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	submitted := m.ordersSubmitted.Load()
	succeeded := m.ordersSucceeded.Load()
	compensated := m.ordersCompensated.Load()
	stages := m.stagesCompleted.Load()
	totalNs := m.totalStageDuration.Load()

	var avg time.Duration
	if stages > 0 {
		avg = time.Duration(totalNs / stages)
	}

	return BasicMetricsSnapshot{
		OrdersSubmitted:   submitted,
		OrdersSucceeded:   succeeded,
		OrdersCompensated: compensated,
		OrdersInFlight:    submitted - succeeded - compensated,
		StagesCompleted:   stages,
		CompensationsRun:  m.compensationsRun.Load(),
		AvgStageDuration:  avg,
	}
}
