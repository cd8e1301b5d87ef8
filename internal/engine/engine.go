package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
	"github.com/codeready-toolchain/tarsy/internal/llm"
	"github.com/codeready-toolchain/tarsy/internal/reactctx"
	"github.com/codeready-toolchain/tarsy/internal/store"
	"github.com/codeready-toolchain/tarsy/internal/toolexec"
	"github.com/codeready-toolchain/tarsy/internal/tools"
)

// AgentConfig is the subset of spec.md §3's Agent entity the engine
// needs per run: its LLM client, its allowed tool names (the
// AgentTool allowlist, enforced at dispatch per SPEC_FULL.md §4.1),
// and a human-readable catalogue for the prompt.
type AgentConfig struct {
	LLMClient    llm.Client
	AllowedTools map[string]bool
	ToolCatalog  string
	PerCallTimeout time.Duration // default 60-120s per spec.md §5
}

// Engine is the recursion engine (C5). One Engine instance is shared
// process-wide across tasks; within a single task, Run executes
// strictly sequentially (spec.md §5).
type Engine struct {
	Repo     Repo
	Registry *tools.Registry
	Executor *toolexec.Executor
}

func New(repo Repo, registry *tools.Registry, executor *toolexec.Executor) *Engine {
	return &Engine{Repo: repo, Registry: registry, Executor: executor}
}

// Run drives task from its current state through repeated recursions
// to completed/failed/cancelled, per spec.md §4.5. ctx's cancellation
// is the engine's cancellation token (spec.md §9's design note:
// replace the cooperative boolean flag with a context handle); C7
// cancels ctx on client disconnect.
func (e *Engine) Run(ctx context.Context, taskID string, agent AgentConfig, sink Sink) error {
	task, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if task.MaxIteration == 0 && task.Iteration == 0 {
		// Boundary behaviour (spec.md §8): max_iteration=0 => task
		// immediately failed, no recursion created.
		task.Status = store.TaskFailed
		task.UpdatedAt = now()
		if err := e.Repo.UpdateTask(ctx, task); err != nil {
			return err
		}
		sink.Emit(Event{Type: EventError, TaskID: taskID, Iteration: 0, Timestamp: now(),
			Data: map[string]string{"message": "Maximum iteration reached"}})
		return nil
	}

	task.Status = store.TaskRunning
	task.UpdatedAt = now()
	if err := e.Repo.UpdateTask(ctx, task); err != nil {
		return err
	}

	for task.Iteration < task.MaxIteration {
		select {
		case <-ctx.Done():
			return e.cancel(ctx, &task, sink)
		default:
		}

		terminal, err := e.runOneRecursion(ctx, &task, agent, sink)
		if err != nil {
			return err
		}
		if terminal {
			return nil
		}

		select {
		case <-ctx.Done():
			return e.cancel(ctx, &task, sink)
		default:
		}
	}

	// iteration == max_iteration with no terminal action (spec.md §4.5.4).
	task.Status = store.TaskFailed
	task.UpdatedAt = now()
	if err := e.Repo.UpdateTask(ctx, task); err != nil {
		return err
	}
	sink.Emit(Event{Type: EventError, TaskID: taskID, Iteration: task.Iteration, Timestamp: now(),
		Data: map[string]string{"message": "Maximum iteration reached"}})
	return nil
}

func (e *Engine) cancel(ctx context.Context, task *store.Task, sink Sink) error {
	task.Status = store.TaskCancelled
	task.UpdatedAt = now()
	// A cancelled run uses a background context for the final
	// persistence write, since ctx itself is the one that was
	// cancelled (spec.md §4.5.3: "the current task is persisted as
	// cancelled").
	if err := e.Repo.UpdateTask(context.Background(), *task); err != nil {
		return err
	}
	return nil
}

// runOneRecursion executes steps 1-7 of spec.md §4.5.2 for a single
// iteration. Returns terminal=true if the task reached a terminal
// state (ANSWER/ERROR) or was paused for input (CLARIFY) during this
// recursion, i.e. whenever the loop must stop.
func (e *Engine) runOneRecursion(ctx context.Context, task *store.Task, agent AgentConfig, sink Sink) (terminal bool, err error) {
	traceID := uuid.New().String()
	iterationIndex := task.Iteration

	rec := store.Recursion{
		TraceID:        traceID,
		TaskID:         task.TaskID,
		IterationIndex: iterationIndex,
		Status:         store.RecursionRunning,
		CreatedAt:      now(),
		UpdatedAt:      now(),
	}
	if err := e.Repo.CreateRecursion(ctx, rec); err != nil {
		return false, err
	}
	sink.Emit(Event{Type: EventRecursionStart, TaskID: task.TaskID, TraceID: traceID, Iteration: iterationIndex, Timestamp: now()})

	recursions, err := e.Repo.ListRecursions(ctx, task.TaskID)
	if err != nil {
		return false, err
	}
	planSteps, err := e.Repo.ListPlanSteps(ctx, task.TaskID)
	if err != nil {
		return false, err
	}
	state := reactctx.Assemble(*task, recursions, planSteps)

	systemPrompt, err := RenderSystemPrompt(state, agent.ToolCatalog)
	if err != nil {
		return false, err
	}

	// Exactly two messages per call (spec.md §4.5.2 step 3): no
	// assistant/tool turns accumulate in the wire-level conversation.
	// The engine's only memory across turns is the state JSON itself.
	messages := []llm.Message{
		{Role: llm.RoleUser, Content: task.UserMessage},
		{Role: llm.RoleSystem, Content: systemPrompt},
	}

	timeout := agent.PerCallTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := agent.LLMClient.Chat(callCtx, messages, llm.ChatOptions{Tools: nil})
	cancel()

	if err != nil {
		return e.finishAsError(ctx, task, &rec, sink, fmt.Sprintf("LLM call failed: %v", err))
	}

	choice, ok := resp.First()
	if !ok {
		return e.finishAsError(ctx, task, &rec, sink, "LLM returned no choices")
	}
	// spec.md §4.5.2 step 4: the engine forbids native tool calling; a
	// provider that still returns tool_calls on this (tools=null) call
	// is a protocol violation.
	if len(choice.Message.ToolCalls) > 0 {
		return e.finishAsError(ctx, task, &rec, sink, "LLM returned native tool_calls on a tools=null request")
	}

	if resp.Usage != nil {
		rec.PromptTokens = resp.Usage.PromptTokens
		rec.CompletionTokens = resp.Usage.CompletionTokens
		rec.TotalTokens = resp.Usage.TotalTokens
	}

	envelope, err := ParseEnvelope(choice.Message.Content)
	if err != nil {
		return e.finishAsError(ctx, task, &rec, sink, err.Error())
	}

	rec.Observe = envelope.Observe
	rec.Thought = envelope.Thought
	sink.Emit(Event{Type: EventObserve, TaskID: task.TaskID, TraceID: traceID, Iteration: iterationIndex, Delta: envelope.Observe, Timestamp: now()})
	sink.Emit(Event{Type: EventThought, TaskID: task.TaskID, TraceID: traceID, Iteration: iterationIndex, Delta: envelope.Thought, Timestamp: now()})

	return e.dispatch(ctx, task, &rec, envelope, agent, sink)
}

func (e *Engine) finishAsError(ctx context.Context, task *store.Task, rec *store.Recursion, sink Sink, message string) (bool, error) {
	rec.Status = store.RecursionError
	rec.ActionType = store.ActionError
	rec.ErrorLog = message
	rec.UpdatedAt = now()
	if err := e.Repo.UpdateRecursion(ctx, *rec); err != nil {
		return false, err
	}

	task.Iteration++
	task.TotalTokens += rec.TotalTokens
	task.Status = store.TaskFailed
	task.UpdatedAt = now()
	if err := e.Repo.UpdateTask(ctx, *task); err != nil {
		return false, err
	}

	sink.Emit(Event{Type: EventError, TaskID: task.TaskID, TraceID: rec.TraceID, Iteration: rec.IterationIndex, Timestamp: now(),
		Data: map[string]string{"message": message}})
	return true, nil
}

// dispatch implements spec.md §4.5.2 step 6.
func (e *Engine) dispatch(ctx context.Context, task *store.Task, rec *store.Recursion, envelope Envelope, agent AgentConfig, sink Sink) (bool, error) {
	actionType := store.ActionType(envelope.Action.Result.ActionType)

	switch actionType {
	case store.ActionCallTool:
		return e.dispatchCallTool(ctx, task, rec, envelope, agent, sink)
	case store.ActionRePlan:
		return e.dispatchRePlan(ctx, task, rec, envelope, sink)
	case store.ActionAnswer:
		return e.dispatchAnswer(ctx, task, rec, envelope, sink)
	case store.ActionClarify:
		return e.dispatchClarify(ctx, task, rec, envelope, sink)
	case store.ActionReflect:
		return e.dispatchReflect(ctx, task, rec, envelope, sink)
	default:
		return e.finishAsError(ctx, task, rec, sink, fmt.Sprintf("unknown action_type %q", envelope.Action.Result.ActionType))
	}
}

type toolCallOutput struct {
	ToolCalls []struct {
		ID       string `json:"id"`
		Function struct {
			Name      string `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

func (e *Engine) dispatchCallTool(ctx context.Context, task *store.Task, rec *store.Recursion, envelope Envelope, agent AgentConfig, sink Sink) (bool, error) {
	var output toolCallOutput
	if err := json.Unmarshal(envelope.Action.Result.Output, &output); err != nil {
		return e.finishAsError(ctx, task, rec, sink, "malformed CALL_TOOL output: "+err.Error())
	}

	var results []store.ToolCallResultRow
	toolCallMaps := make([]any, 0, len(output.ToolCalls))
	for _, call := range output.ToolCalls {
		id := call.ID
		if id == "" {
			id = "json-call-" + uuid.New().String()
		}
		args := parseArguments(call.Function.Arguments)

		result := e.Executor.ExecuteAllowed(ctx, call.Function.Name, args, nil, agent.AllowedTools)
		results = append(results, store.ToolCallResultRow{
			ToolCallID: id,
			Name:       call.Function.Name,
			Arguments:  args,
			Result:     result.Value,
			Success:    result.Success,
			Error:      result.Error,
		})
		toolCallMaps = append(toolCallMaps, map[string]any{
			"id": id,
			"function": map[string]any{
				"name":      call.Function.Name,
				"arguments": args,
			},
		})
		sink.Emit(Event{Type: EventToolCall, TaskID: task.TaskID, TraceID: rec.TraceID, Iteration: rec.IterationIndex, Timestamp: now(),
			Data: map[string]any{"tool_calls": toolCallMaps, "tool_results": results}})
	}

	rec.ActionType = store.ActionCallTool
	rec.ActionOutput = map[string]any{"tool_calls": toolCallMaps}
	rec.ToolCallResults = results
	rec.Status = store.RecursionDone
	rec.UpdatedAt = now()
	if err := e.Repo.UpdateRecursion(ctx, *rec); err != nil {
		return false, err
	}

	task.Iteration++
	task.TotalTokens += rec.TotalTokens
	task.UpdatedAt = now()
	if err := e.Repo.UpdateTask(ctx, *task); err != nil {
		return false, err
	}
	return false, nil
}

func parseArguments(raw json.RawMessage) map[string]any {
	// arguments may be an object or a JSON-string-encoded object
	// (spec.md §4.5.2 step 6).
	var direct map[string]any
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		var nested map[string]any
		if err := json.Unmarshal([]byte(asString), &nested); err == nil {
			return nested
		}
	}
	return map[string]any{}
}

func toAnySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

type rePlanOutput struct {
	Plan []struct {
		StepID      string `json:"step_id"`
		Description string `json:"description"`
		Status      string `json:"status"`
	} `json:"plan"`
	Notes string `json:"notes"`
}

func (e *Engine) dispatchRePlan(ctx context.Context, task *store.Task, rec *store.Recursion, envelope Envelope, sink Sink) (bool, error) {
	var output rePlanOutput
	if err := json.Unmarshal(envelope.Action.Result.Output, &output); err != nil {
		return e.finishAsError(ctx, task, rec, sink, "malformed RE_PLAN output: "+err.Error())
	}

	steps := make([]store.PlanStep, 0, len(output.Plan))
	for _, p := range output.Plan {
		steps = append(steps, store.PlanStep{TaskID: task.TaskID, StepID: p.StepID, Description: p.Description, Status: store.PlanStepPending})
	}
	if err := e.Repo.ReplacePlanSteps(ctx, task.TaskID, steps); err != nil {
		return false, err
	}

	rec.ActionType = store.ActionRePlan
	rec.ActionOutput = map[string]any{"plan": toAnySlice(output.Plan), "notes": output.Notes}
	rec.Status = store.RecursionDone
	rec.UpdatedAt = now()
	if err := e.Repo.UpdateRecursion(ctx, *rec); err != nil {
		return false, err
	}

	sink.Emit(Event{Type: EventPlanUpdate, TaskID: task.TaskID, TraceID: rec.TraceID, Iteration: rec.IterationIndex, Timestamp: now(), Data: steps})

	task.Iteration++
	task.TotalTokens += rec.TotalTokens
	task.UpdatedAt = now()
	return false, e.Repo.UpdateTask(ctx, *task)
}

type answerOutput struct {
	Answer string `json:"answer"`
}

func (e *Engine) dispatchAnswer(ctx context.Context, task *store.Task, rec *store.Recursion, envelope Envelope, sink Sink) (bool, error) {
	var output answerOutput
	if err := json.Unmarshal(envelope.Action.Result.Output, &output); err != nil {
		return e.finishAsError(ctx, task, rec, sink, "malformed ANSWER output: "+err.Error())
	}

	rec.ActionType = store.ActionAnswer
	rec.ActionOutput = map[string]any{"answer": output.Answer}
	rec.Status = store.RecursionDone
	rec.UpdatedAt = now()
	if err := e.Repo.UpdateRecursion(ctx, *rec); err != nil {
		return false, err
	}

	task.Iteration++
	task.TotalTokens += rec.TotalTokens
	task.Status = store.TaskCompleted
	task.UpdatedAt = now()
	if err := e.Repo.UpdateTask(ctx, *task); err != nil {
		return false, err
	}

	sink.Emit(Event{Type: EventAnswer, TaskID: task.TaskID, TraceID: rec.TraceID, Iteration: rec.IterationIndex, Timestamp: now(), Data: output.Answer})
	sink.Emit(Event{Type: EventTaskComplete, TaskID: task.TaskID, Iteration: task.Iteration, Timestamp: now()})
	return true, nil
}

type clarifyOutput struct {
	Question string `json:"question"`
}

func (e *Engine) dispatchClarify(ctx context.Context, task *store.Task, rec *store.Recursion, envelope Envelope, sink Sink) (bool, error) {
	var output clarifyOutput
	if err := json.Unmarshal(envelope.Action.Result.Output, &output); err != nil {
		return e.finishAsError(ctx, task, rec, sink, "malformed CLARIFY output: "+err.Error())
	}

	rec.ActionType = store.ActionClarify
	rec.ActionOutput = map[string]any{"question": output.Question}
	rec.Status = store.RecursionRunning // stays running; resumed by a subsequent client request
	rec.UpdatedAt = now()
	if err := e.Repo.UpdateRecursion(ctx, *rec); err != nil {
		return false, err
	}

	task.Status = store.TaskWaitingInput
	task.UpdatedAt = now()
	if err := e.Repo.UpdateTask(ctx, *task); err != nil {
		return false, err
	}

	sink.Emit(Event{Type: EventAction, TaskID: task.TaskID, TraceID: rec.TraceID, Iteration: rec.IterationIndex, Timestamp: now(), Data: output})
	return true, nil
}

type reflectOutput struct {
	Note string `json:"note"`
}

func (e *Engine) dispatchReflect(ctx context.Context, task *store.Task, rec *store.Recursion, envelope Envelope, sink Sink) (bool, error) {
	var output reflectOutput
	if err := json.Unmarshal(envelope.Action.Result.Output, &output); err != nil {
		return e.finishAsError(ctx, task, rec, sink, "malformed REFLECT output: "+err.Error())
	}

	rec.ActionType = store.ActionReflect
	rec.ActionOutput = map[string]any{"note": output.Note}
	rec.ShortTermMemory = output.Note
	rec.Status = store.RecursionDone
	rec.UpdatedAt = now()
	if err := e.Repo.UpdateRecursion(ctx, *rec); err != nil {
		return false, err
	}

	task.Iteration++
	task.TotalTokens += rec.TotalTokens
	task.UpdatedAt = now()
	return false, e.Repo.UpdateTask(ctx, *task)
}

// Resume implements spec.md §4.5.1's resume contract: a client POSTs
// the same task_id with the reply; the last CLARIFY recursion's
// action_output.reply is set and the task flips back to running.
func (e *Engine) Resume(ctx context.Context, taskID, reply string) error {
	task, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != store.TaskWaitingInput {
		return apperr.Validation("task %s is not waiting for input", taskID)
	}

	recursions, err := e.Repo.ListRecursions(ctx, taskID)
	if err != nil {
		return err
	}
	var last *store.Recursion
	for i := range recursions {
		if recursions[i].ActionType == store.ActionClarify && recursions[i].Status == store.RecursionRunning {
			last = &recursions[i]
		}
	}
	if last == nil {
		return apperr.Validation("task %s has no pending CLARIFY recursion", taskID)
	}

	if last.ActionOutput == nil {
		last.ActionOutput = map[string]any{}
	}
	last.ActionOutput["reply"] = reply
	last.Status = store.RecursionDone
	last.UpdatedAt = now()
	if err := e.Repo.UpdateRecursion(ctx, *last); err != nil {
		return err
	}

	task.Iteration++
	task.Status = store.TaskRunning
	task.UpdatedAt = now()
	return e.Repo.UpdateTask(ctx, task)
}

func now() time.Time { return time.Now().UTC() }
