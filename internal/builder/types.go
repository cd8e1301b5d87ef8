// Package builder is the Agent Builder (spec.md §4.9, C9): a small
// multi-turn LLM helper that turns natural-language requirements into
// an agent configuration JSON blob. Grounded line for line on
// original_source/server/app/orchestration/builder.py's AgentBuilder.
package builder

import "github.com/codeready-toolchain/tarsy/internal/scenechat"

// AgentConfig is the {name, description, scenes[]} shape the LLM is
// asked to emit under the "agent" key of its reply.
type AgentConfig struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Scenes      []scenechat.Scene `json:"scenes"`
}

// Result is what one Build call returns: the parsed agent
// configuration plus the LLM's human-readable response and reasoning.
type Result struct {
	Agent    AgentConfig
	Response string
	Reason   string
}

// envelope is the exact wire shape the builder's reply must parse
// into: {response, reason, agent:{name, description, scenes[]}}.
type envelope struct {
	Response string      `json:"response"`
	Reason   string      `json:"reason"`
	Agent    AgentConfig `json:"agent"`
}
