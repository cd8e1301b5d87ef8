package builder

import "strings"

// systemPromptTemplate seeds history on the first Build call only. It
// is written in English and names its own placeholder instead of
// reading a sibling build.md file (SPEC_FULL.md §4.9), but is
// structurally identical to build.md: the target schema plus one
// worked example, followed by the {{existing_agent}} context when
// modifying rather than creating.
const systemPromptTemplate = `You help build and modify conversational agents, each described as a
graph of scenes. Every scene has subscenes, and subscenes connect to
other subscenes under a natural-language condition describing when the
conversation should transition.

Respond with exactly one JSON object of this shape:

{
  "response": "<a short message to show the user>",
  "reason": "<why you made these changes>",
  "agent": {
    "name": "<agent name>",
    "description": "<one sentence describing the agent>",
    "scenes": [
      {
        "name": "<scene name>",
        "state": "active | inactive | done",
        "subscenes": [
          { "name": "<subscene name>", "state": "active | inactive | done" }
        ]
      }
    ]
  }
}

Worked example, for a customer-support agent:

{
  "response": "I've set up a support agent with a greeting scene and an order-lookup scene.",
  "reason": "The user asked for a basic support flow, so I started with a greeting that hands off to order lookup.",
  "agent": {
    "name": "Support Assistant",
    "description": "Helps customers check order status and resolve basic issues",
    "scenes": [
      {
        "name": "greeting",
        "state": "active",
        "subscenes": [
          { "name": "welcome", "state": "active" }
        ]
      },
      {
        "name": "order_lookup",
        "state": "inactive",
        "subscenes": [
          { "name": "ask_order_number", "state": "inactive" },
          { "name": "report_status", "state": "inactive" }
        ]
      }
    ]
  }
}
{{existing_agent}}
`

// renderSystemPrompt interpolates the existing-agent context block
// (builder.py only adds this block when an agent_dict is already
// being modified; on a from-scratch build it is the empty string).
func renderSystemPrompt(existingAgentJSON string) string {
	block := ""
	if existingAgentJSON != "" {
		block = "\nThe agent already has this configuration; modify it rather than starting over:\n```json\n" + existingAgentJSON + "\n```\n"
	}
	return strings.Replace(systemPromptTemplate, "{{existing_agent}}", block, 1)
}
