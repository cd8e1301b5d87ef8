package reactctx

import (
	"sort"

	"github.com/codeready-toolchain/tarsy/internal/store"
)

// Assemble rebuilds the state JSON for task, given its recursions (any
// order; this function sorts by IterationIndex) and plan steps (any
// order; sorted by StepID), per spec.md §4.4.
//
// Routing rule: a recursion whose PlanStepID names an existing step is
// pushed into that step's Recursions. Any other recursion (empty
// PlanStepID, or a step deleted by a later RE_PLAN) is placed nowhere
// in "context.plan" (spec.md §4.4 only nests recursions under plan
// steps) and is not kept in any other list; it still feeds
// short_term_memory and last_recursion, matching original_source's
// context.py behaviour of building recursions_list but not serialising
// it at the top level.
func Assemble(task store.Task, recursions []store.Recursion, planSteps []store.PlanStep) State {
	sortedRecursions := append([]store.Recursion(nil), recursions...)
	sort.Slice(sortedRecursions, func(i, j int) bool {
		return sortedRecursions[i].IterationIndex < sortedRecursions[j].IterationIndex
	})

	sortedSteps := append([]store.PlanStep(nil), planSteps...)
	sort.Slice(sortedSteps, func(i, j int) bool { return sortedSteps[i].StepID < sortedSteps[j].StepID })

	plan := make([]PlanStep, 0, len(sortedSteps))
	stepIndex := make(map[string]int, len(sortedSteps))
	for i, s := range sortedSteps {
		plan = append(plan, PlanStep{
			StepID:      s.StepID,
			Description: s.Description,
			Status:      string(s.Status),
			Recursions:  []RecursionSummary{},
		})
		stepIndex[s.StepID] = i
	}

	var shortTerm []ShortTermMemoryEntry
	var lastDone *store.Recursion

	for i := range sortedRecursions {
		r := &sortedRecursions[i]

		// Short-term memory is built from ALL recursions regardless of
		// status (original_source/context.py).
		if r.ShortTermMemory != "" {
			shortTerm = append(shortTerm, ShortTermMemoryEntry{TraceID: r.TraceID, Memory: r.ShortTermMemory})
		}

		// Only done/error recursions (or a running CLARIFY, which
		// blocks the task pending client resume) are routed into the
		// compact recursion summaries.
		include := r.Status == store.RecursionDone || r.Status == store.RecursionError ||
			(r.Status == store.RecursionRunning && r.ActionType == store.ActionClarify)
		if include {
			summary := RecursionSummary{
				TraceID:  r.TraceID,
				Status:   string(r.Status),
				Result:   mergeToolResults(r),
				ErrorLog: r.ErrorLog,
			}
			if r.PlanStepID != "" {
				if idx, ok := stepIndex[r.PlanStepID]; ok {
					plan[idx].Recursions = append(plan[idx].Recursions, summary)
				}
				// PlanStepID set but step no longer exists (deleted by
				// a later RE_PLAN): per spec.md §4.5.5, it is orphaned
				// forever and not retroactively adopted; dropped from
				// the wire schema (no top-level array to hold it).
			}
		}

		if r.Status == store.RecursionDone {
			lastDone = r
		}
	}

	ctxBody := ContextBody{
		Objective:   task.Objective,
		Constraints: []string{},
		Plan:        plan,
		Memory: MemorySection{
			ShortTerm:    orEmpty(shortTerm),
			LongTermRefs: []string{},
		},
	}

	st := State{
		Global: GlobalState{
			TaskID:       task.TaskID,
			Iteration:    task.Iteration,
			MaxIteration: task.MaxIteration,
			Status:       string(task.Status),
			CreatedAt:    task.CreatedAt,
			UpdatedAt:    task.UpdatedAt,
		},
		Context: ctxBody,
	}

	if len(sortedRecursions) > 0 {
		current := sortedRecursions[len(sortedRecursions)-1]
		st.CurrentRecursion = CurrentRecursion{
			TraceID:        current.TraceID,
			IterationIndex: current.IterationIndex,
			Status:         string(current.Status),
		}
	}

	// last_recursion is absent only on iteration 0 (spec.md §4.4).
	if lastDone != nil {
		st.LastRecursion = &LastRecursion{
			TraceID: lastDone.TraceID,
			Observe: lastDone.Observe,
			Thought: lastDone.Thought,
			Action: Action{Result: ActionResult{
				ActionType: string(lastDone.ActionType),
				Output:     mergeToolResults(lastDone),
			}},
		}
		if lastDone.ActionType == store.ActionCallTool {
			st.LastRecursion.ToolCallResults = toolCallResultsJSON(lastDone.ToolCallResults)
		}
	}

	return st
}

// mergeToolResults enriches action_output.tool_calls[i] in place with
// the matching result/success from tool_call_results, keyed by
// tool_call_id (spec.md §4.4 "Merging tool results into action
// output"). For non-CALL_TOOL recursions it returns ActionOutput
// unchanged.
func mergeToolResults(r *store.Recursion) map[string]any {
	if r.ActionType != store.ActionCallTool || r.ActionOutput == nil {
		return r.ActionOutput
	}
	output := cloneMap(r.ActionOutput)
	rawCalls, ok := output["tool_calls"].([]any)
	if !ok {
		return output
	}
	byID := make(map[string]store.ToolCallResultRow, len(r.ToolCallResults))
	for _, tcr := range r.ToolCallResults {
		byID[tcr.ToolCallID] = tcr
	}
	for i, raw := range rawCalls {
		call, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := call["id"].(string)
		if tcr, ok := byID[id]; ok {
			call["result"] = tcr.Result
			call["success"] = tcr.Success
		}
		rawCalls[i] = call
	}
	output["tool_calls"] = rawCalls
	return output
}

func toolCallResultsJSON(rows []store.ToolCallResultRow) []ToolCallResult {
	out := make([]ToolCallResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, ToolCallResult{ToolCallID: r.ToolCallID, Name: r.Name, Result: r.Result, Success: r.Success})
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func orEmpty(s []ShortTermMemoryEntry) []ShortTermMemoryEntry {
	if s == nil {
		return []ShortTermMemoryEntry{}
	}
	return s
}
