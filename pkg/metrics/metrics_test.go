package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/sagaflow/internal/engine"
	"github.com/petrijr/sagaflow/internal/persistence"
	"github.com/petrijr/sagaflow/pkg/api"
)

type okStep struct{}

func (okStep) Invoke(ctx context.Context, req api.Request) (api.StepResult, error) {
	return api.Succeed(nil), nil
}

func TestObserverCountsWorkflow(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := New(reg)

	bindings := make([]api.StageBinding, 0, len(api.Stages()))
	for _, stage := range api.Stages() {
		bindings = append(bindings, api.StageBinding{Stage: stage, Step: okStep{}})
	}
	registry, err := api.NewRegistry(bindings)
	require.NoError(t, err)

	eng, err := engine.New(engine.Config{
		Store:    persistence.NewInMemoryStore(),
		Registry: registry,
		Observer: obs,
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = eng.Submit(ctx, api.Order{OrderID: "order-1"})
	require.NoError(t, err)
	inst, err := eng.Run(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, api.StatusSucceeded, inst.Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.ordersSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		obs.ordersFinished.WithLabelValues(string(api.StatusSucceeded))))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		obs.stageOutcomes.WithLabelValues("PAY", string(api.Success))))
}

func TestObserverCountsCompensations(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := New(reg)
	ctx := context.Background()

	inst := &api.Instance{OrderID: "order-1"}
	obs.OnCompensation(ctx, inst, api.StagePay, nil)
	obs.OnCompensation(ctx, inst, api.StagePay, context.DeadlineExceeded)
	obs.OnOrderCompensated(ctx, inst)
	obs.OnStageCompleted(ctx, inst, api.StageValidate, api.Permanent("x"), nil, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.compensations.WithLabelValues("PAY", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.compensations.WithLabelValues("PAY", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		obs.ordersFinished.WithLabelValues(string(api.StatusCompensated))))
}
