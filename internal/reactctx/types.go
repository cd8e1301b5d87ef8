// Package reactctx is the Context Assembler (spec.md §4.4, C4): it
// rebuilds the full state-machine JSON from persisted task, recursion,
// and plan rows on every iteration. Grounded line for line on
// original_source/server/app/orchestration/react/context.py
// (ReactContext.from_task).
package reactctx

import "time"

// GlobalState is the "global" section of the state JSON (spec.md §4.4).
type GlobalState struct {
	TaskID       string    `json:"task_id"`
	Iteration    int       `json:"iteration"`
	MaxIteration int       `json:"max_iteration"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CurrentRecursion is the "current_recursion" section.
type CurrentRecursion struct {
	TraceID       string `json:"trace_id"`
	IterationIndex int   `json:"iteration_index"`
	Status        string `json:"status"`
}

// RecursionSummary is the compact per-recursion record nested inside a
// plan step's "recursions" array.
type RecursionSummary struct {
	TraceID  string `json:"trace_id"`
	Status   string `json:"status"`
	Result   any    `json:"result"`
	ErrorLog string `json:"error_log"`
}

// PlanStep is one entry of "context.plan".
type PlanStep struct {
	StepID      string             `json:"step_id"`
	Description string             `json:"description"`
	Status      string             `json:"status"`
	Recursions  []RecursionSummary `json:"recursions"`
}

// ShortTermMemoryEntry is one entry of "context.memory.short_term".
type ShortTermMemoryEntry struct {
	TraceID string `json:"trace_id"`
	Memory  string `json:"memory"`
}

// MemorySection is "context.memory".
type MemorySection struct {
	ShortTerm     []ShortTermMemoryEntry `json:"short_term"`
	LongTermRefs  []string               `json:"long_term_refs"`
}

// ContextBody is the "context" section.
type ContextBody struct {
	Objective   string         `json:"objective"`
	Constraints []string       `json:"constraints"`
	Plan        []PlanStep     `json:"plan"`
	Memory      MemorySection  `json:"memory"`
}

// ToolCallResult is one entry merged into
// last_recursion.tool_call_results (only present for CALL_TOOL).
type ToolCallResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Result     any    `json:"result"`
	Success    bool   `json:"success"`
}

// ActionResult is "last_recursion.action.result".
type ActionResult struct {
	ActionType string `json:"action_type"`
	Output     any    `json:"output"`
}

// Action wraps ActionResult per the wire shape "action":{"result":{...}}.
type Action struct {
	Result ActionResult `json:"result"`
}

// LastRecursion is the "last_recursion" section, absent only on
// iteration 0.
type LastRecursion struct {
	TraceID         string           `json:"trace_id"`
	Observe         string           `json:"observe"`
	Thought         string           `json:"thought"`
	Action          Action           `json:"action"`
	ToolCallResults []ToolCallResult `json:"tool_call_results,omitempty"`
}

// State is the complete state-machine JSON re-rendered into the
// system prompt on every recursion (spec.md §4.4/§6.3).
type State struct {
	Global           GlobalState       `json:"global"`
	CurrentRecursion CurrentRecursion  `json:"current_recursion"`
	Context          ContextBody       `json:"context"`
	LastRecursion    *LastRecursion    `json:"last_recursion,omitempty"`
}
