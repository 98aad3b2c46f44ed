package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopStep struct{}

func (noopStep) Invoke(ctx context.Context, req Request) (StepResult, error) {
	return Succeed(nil), nil
}

func allBindings() []StageBinding {
	bindings := make([]StageBinding, 0, len(Stages()))
	for _, stage := range Stages() {
		bindings = append(bindings, StageBinding{
			Stage: stage,
			Step:  noopStep{},
			Retry: RetryPolicy{MaxAttempts: 3},
		})
	}
	return bindings
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(allBindings())
	require.NoError(t, err)

	step, policy, err := reg.Resolve(StagePay)
	require.NoError(t, err)
	assert.NotNil(t, step)
	assert.Equal(t, 3, policy.MaxAttempts)
}

func TestNewRegistryRejectsMissingStage(t *testing.T) {
	bindings := allBindings()[:4]
	_, err := NewRegistry(bindings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECEIPT")
}

func TestNewRegistryRejectsDuplicateStage(t *testing.T) {
	bindings := append(allBindings(), StageBinding{Stage: StagePay, Step: noopStep{}})
	_, err := NewRegistry(bindings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bound twice")
}

func TestNewRegistryRejectsNilStep(t *testing.T) {
	bindings := allBindings()
	bindings[2].Step = nil
	_, err := NewRegistry(bindings)
	require.Error(t, err)
}

func TestNewRegistryRejectsInvalidStage(t *testing.T) {
	bindings := append(allBindings(), StageBinding{Stage: Stage(99), Step: noopStep{}})
	_, err := NewRegistry(bindings)
	require.Error(t, err)
}

func TestNewRegistryNormalizesMaxAttempts(t *testing.T) {
	bindings := allBindings()
	bindings[0].Retry.MaxAttempts = 0

	reg, err := NewRegistry(bindings)
	require.NoError(t, err)

	_, policy, err := reg.Resolve(StageValidate)
	require.NoError(t, err)
	assert.Equal(t, 1, policy.MaxAttempts)
}

func TestResolveInvalidStage(t *testing.T) {
	reg, err := NewRegistry(allBindings())
	require.NoError(t, err)

	_, _, err = reg.Resolve(Stage(-1))
	require.Error(t, err)

	var nilReg *Registry
	_, _, err = nilReg.Resolve(StagePay)
	require.Error(t, err)
}
