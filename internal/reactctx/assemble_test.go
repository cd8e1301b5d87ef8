package reactctx

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/tarsy/internal/store"
)

func TestAssembleIteration0HasNoLastRecursion(t *testing.T) {
	task := store.Task{TaskID: "t1", Iteration: 0, MaxIteration: 30, Status: store.TaskRunning, Objective: "demo"}
	st := Assemble(task, nil, nil)
	assert.Nil(t, st.LastRecursion)
	assert.Equal(t, "t1", st.Global.TaskID)
}

func TestAssembleMergesToolResultsIntoActionOutput(t *testing.T) {
	task := store.Task{TaskID: "t1", Iteration: 1, MaxIteration: 30, Status: store.TaskRunning}
	rec := store.Recursion{
		TraceID:        "trace-1",
		IterationIndex: 0,
		ActionType:     store.ActionCallTool,
		Status:         store.RecursionDone,
		ActionOutput: map[string]any{
			"tool_calls": []any{
				map[string]any{"id": "call-1", "function": map[string]any{"name": "add"}},
			},
		},
		ToolCallResults: []store.ToolCallResultRow{
			{ToolCallID: "call-1", Name: "add", Result: 8.0, Success: true},
		},
	}
	st := Assemble(task, []store.Recursion{rec}, nil)
	require.NotNil(t, st.LastRecursion)

	output, ok := st.LastRecursion.Action.Result.Output.(map[string]any)
	require.True(t, ok)
	calls := output["tool_calls"].([]any)
	call := calls[0].(map[string]any)
	assert.Equal(t, 8.0, call["result"])
	assert.Equal(t, true, call["success"])

	require.Len(t, st.LastRecursion.ToolCallResults, 1)
	assert.Equal(t, "call-1", st.LastRecursion.ToolCallResults[0].ToolCallID)
}

func TestAssembleRoutesRecursionsToPlanSteps(t *testing.T) {
	task := store.Task{TaskID: "t1", Iteration: 2, MaxIteration: 30, Status: store.TaskRunning}
	steps := []store.PlanStep{
		{TaskID: "t1", StepID: "step-1", Description: "first", Status: store.PlanStepDone},
		{TaskID: "t1", StepID: "step-2", Description: "second", Status: store.PlanStepPending},
	}
	recursions := []store.Recursion{
		{TraceID: "r0", IterationIndex: 0, PlanStepID: "step-1", Status: store.RecursionDone, ActionType: store.ActionReflect},
		{TraceID: "r1", IterationIndex: 1, PlanStepID: "orphan-step", Status: store.RecursionDone, ActionType: store.ActionReflect},
	}
	st := Assemble(task, recursions, steps)
	require.Len(t, st.Context.Plan, 2)
	assert.Len(t, st.Context.Plan[0].Recursions, 1)
	assert.Equal(t, "r0", st.Context.Plan[0].Recursions[0].TraceID)
	// orphaned recursion (plan_step_id no longer exists) is dropped
	// from the plan array, not retroactively adopted (spec.md §4.5.5).
	assert.Empty(t, st.Context.Plan[1].Recursions)
}

// TestStateRoundTrip covers spec.md §8's round-trip law: serialising
// then deserialising State yields equal JSON after normalisation.
func TestStateRoundTrip(t *testing.T) {
	task := store.Task{TaskID: "t1", Iteration: 1, MaxIteration: 30, Status: store.TaskRunning, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	st := Assemble(task, nil, nil)

	data, err := json.Marshal(st)
	require.NoError(t, err)

	var decoded State
	require.NoError(t, json.Unmarshal(data, &decoded))

	data2, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(data2))
}
