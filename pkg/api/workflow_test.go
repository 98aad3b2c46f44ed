package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageOrdering(t *testing.T) {
	assert.Equal(t, StageValidate, FirstStage)
	assert.Equal(t, StageReceipt, LastStage)

	got := Stages()
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i])
	}
}

func TestStageNextPrev(t *testing.T) {
	next, ok := StageValidate.Next()
	require.True(t, ok)
	assert.Equal(t, StagePay, next)

	_, ok = StageReceipt.Next()
	assert.False(t, ok)

	prev, ok := StagePay.Prev()
	require.True(t, ok)
	assert.Equal(t, StageValidate, prev)

	_, ok = StageValidate.Prev()
	assert.False(t, ok)
}

func TestStageNames(t *testing.T) {
	assert.Equal(t, "VALIDATE", StageValidate.String())
	assert.Equal(t, "ADJUST_INVENTORY", StageAdjustInventory.String())
	assert.Equal(t, "Stage(42)", Stage(42).String())

	stage, err := ParseStage("PAY")
	require.NoError(t, err)
	assert.Equal(t, StagePay, stage)

	_, err = ParseStage("SHIP")
	require.Error(t, err)
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusCompensated.Terminal())
	assert.True(t, StatusFailed.Terminal())

	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.False(t, StatusCompensating.Terminal())
}

func TestStepResultConstructors(t *testing.T) {
	res := Succeed(map[string]any{"k": "v"})
	assert.Equal(t, Success, res.Outcome)
	assert.Equal(t, "v", res.Data["k"])

	res = Retryable("timeout")
	assert.Equal(t, RetryableFailure, res.Outcome)
	assert.Equal(t, "timeout", res.Reason)

	res = Permanent("rejected")
	assert.Equal(t, PermanentFailure, res.Outcome)
	assert.Equal(t, "rejected", res.Reason)
}

func TestInstanceClone(t *testing.T) {
	orig := &Instance{
		OrderID:         "order-1",
		Stage:           StagePay,
		Status:          StatusRunning,
		Attempts:        map[Stage]int{StagePay: 1},
		Payload:         map[string]any{"k": "v"},
		CompletedStages: []Stage{StageValidate},
		Unresolved:      []string{"x"},
		Version:         3,
		CreatedAt:       time.Now(),
	}

	clone := orig.Clone()
	clone.Attempts[StagePay] = 9
	clone.Payload["k"] = "mutated"
	clone.CompletedStages[0] = StageReceipt
	clone.Unresolved[0] = "mutated"

	assert.Equal(t, 1, orig.Attempts[StagePay])
	assert.Equal(t, "v", orig.Payload["k"])
	assert.Equal(t, StageValidate, orig.CompletedStages[0])
	assert.Equal(t, "x", orig.Unresolved[0])

	var nilInst *Instance
	assert.Nil(t, nilInst.Clone())
}
