package engine

import (
	"encoding/json"
	"strings"

	"github.com/codeready-toolchain/tarsy/internal/reactctx"
)

// systemPromptTemplate is the fixed-text preamble (spec.md §6.4),
// written in English and structurally — not textually — grounded on
// original_source/server/app/orchestration/react/prompt_template.py's
// REACT_SYSTEM_PROMPT: agent-identity preamble, ReAct paradigm
// description, the legal action_type schemas (CLARIFY included as a
// first-class action per SPEC_FULL.md §4.5's Open Question 1
// resolution), and the state-machine schema with a single
// {{current_state}} placeholder.
const systemPromptTemplate = `You are a single-step executor operating inside a Reason-Act loop.
On every turn you are given the complete current state of the task as
a JSON object. You must not assume any memory beyond what that JSON
contains — it is rebuilt fresh from durable storage on every call.

Respond with exactly one JSON object of this shape:

{
  "trace_id": "<ignored by the caller, may be left blank>",
  "observe": "<what you notice in the current state>",
  "thought": "<your reasoning about what to do next>",
  "action": { "result": { "action_type": "<ACTION>", "output": { ... } } }
}

Legal action_type values and their output schemas:

  CALL_TOOL  — output.tool_calls[i] = { "function": { "name": string, "arguments": object } }
  RE_PLAN    — output.plan[i] = { "step_id": string, "description": string, "status": string }, optional output.notes
  ANSWER     — output.answer = string (ends the task)
  CLARIFY    — output.question = string (pauses the task until the user replies)
  REFLECT    — output.note = string (attaches a short-term memory note, then continues)

Only emit tool calls for tools that actually appear in the tool catalogue
below. Never invent a tool name.

Tool catalogue:
{{tool_catalog}}

Current state:
{{current_state}}
`

// RenderSystemPrompt interpolates the assembled state JSON and tool
// catalogue into the fixed template.
func RenderSystemPrompt(state reactctx.State, toolCatalog string) (string, error) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", err
	}
	out := strings.ReplaceAll(systemPromptTemplate, "{{current_state}}", string(data))
	out = strings.ReplaceAll(out, "{{tool_catalog}}", toolCatalog)
	return out, nil
}
