// Package metrics exposes workflow activity as Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/petrijr/sagaflow/pkg/api"
)

// Observer is an api.Observer that records Prometheus metrics. Combine it
// with other observers via api.NewCompositeObserver.
type Observer struct {
	api.NoopObserver

	ordersSubmitted prometheus.Counter
	ordersFinished  *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	stageOutcomes   *prometheus.CounterVec
	compensations   *prometheus.CounterVec
}

// New creates an Observer registering its metrics with reg. Pass
// prometheus.DefaultRegisterer to use the default registry.
func New(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		ordersSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "orders_submitted_total",
			Help:      "Number of order workflows submitted.",
		}),
		ordersFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "orders_finished_total",
			Help:      "Number of order workflows that reached a terminal status.",
		}, []string{"status"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sagaflow",
			Name:      "stage_duration_seconds",
			Help:      "Step invocation duration per stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		stageOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "stage_outcomes_total",
			Help:      "Step invocation outcomes per stage.",
		}, []string{"stage", "outcome"}),
		compensations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sagaflow",
			Name:      "compensations_total",
			Help:      "Compensations run per stage, by result.",
		}, []string{"stage", "result"}),
	}
}

var _ api.Observer = (*Observer)(nil)

func (o *Observer) OnOrderSubmitted(ctx context.Context, inst *api.Instance) {
	o.ordersSubmitted.Inc()
}

func (o *Observer) OnStageCompleted(ctx context.Context, inst *api.Instance, stage api.Stage, res api.StepResult, err error, d time.Duration) {
	o.stageDuration.WithLabelValues(stage.String()).Observe(d.Seconds())
	o.stageOutcomes.WithLabelValues(stage.String(), string(res.Outcome)).Inc()
}

func (o *Observer) OnOrderSucceeded(ctx context.Context, inst *api.Instance) {
	o.ordersFinished.WithLabelValues(string(api.StatusSucceeded)).Inc()
}

func (o *Observer) OnOrderCompensated(ctx context.Context, inst *api.Instance) {
	o.ordersFinished.WithLabelValues(string(api.StatusCompensated)).Inc()
}

func (o *Observer) OnCompensation(ctx context.Context, inst *api.Instance, stage api.Stage, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.compensations.WithLabelValues(stage.String(), result).Inc()
}
