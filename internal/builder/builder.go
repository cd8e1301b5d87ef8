package builder

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
	"github.com/codeready-toolchain/tarsy/internal/llm"
)

// Builder is the multi-turn agent-configuration helper (spec.md
// §4.9). It owns a rolling history across calls, so callers construct
// one Builder per build conversation and keep calling Build on it —
// never a package-level instance (spec.md §9).
type Builder struct {
	client  llm.Client
	history []llm.Message
}

func New(client llm.Client) *Builder {
	return &Builder{client: client}
}

// Build asks the LLM to produce or revise an agent configuration.
// existingAgent, when non-nil, is marshalled and appended to the user
// message as context and, on the very first call, into the seeded
// system prompt as well (builder.py's AgentBuilder.build).
func (b *Builder) Build(ctx context.Context, requirement string, existingAgent *AgentConfig) (Result, error) {
	var existingJSON string
	if existingAgent != nil {
		raw, err := json.MarshalIndent(existingAgent, "", "  ")
		if err != nil {
			return Result{}, apperr.Validation("failed to marshal existing agent: %v", err)
		}
		existingJSON = string(raw)
	}

	if len(b.history) == 0 {
		b.history = append(b.history, llm.Message{Role: llm.RoleSystem, Content: renderSystemPrompt(existingJSON)})
	}

	userContent := requirement
	if existingAgent != nil && len(b.history) > 0 {
		userContent += "\n\n(Context: Current Agent Configuration)\n```json\n" + existingJSON + "\n```"
	}
	userMsg := llm.Message{Role: llm.RoleUser, Content: userContent}

	messages := make([]llm.Message, 0, len(b.history)+1)
	messages = append(messages, b.history...)
	messages = append(messages, userMsg)

	resp, err := b.client.Chat(ctx, messages, llm.ChatOptions{})
	if err != nil {
		return Result{}, apperr.LLM("", 0, "agent build call failed: %v", err)
	}
	choice, ok := resp.First()
	if !ok {
		return Result{}, apperr.LLM("", 0, "agent build call returned no choices")
	}
	content := choice.Message.Content

	b.history = append(b.history, userMsg, llm.Message{Role: llm.RoleAssistant, Content: content})

	env, err := parseEnvelope(content)
	if err != nil {
		return Result{}, apperr.Parse("failed to parse agent build output: %v", err)
	}

	return Result{Agent: env.Agent, Response: env.Response, Reason: env.Reason}, nil
}

// ClearHistory resets the rolling conversation, starting a fresh build
// from scratch on the next call.
func (b *Builder) ClearHistory() {
	b.history = nil
}

// parseEnvelope accepts either a raw JSON object or one wrapped in
// ```json / ``` fences, matching AgentBuilder.build's stripping logic
// exactly (```json fence preferred over a bare ``` fence).
func parseEnvelope(content string) (envelope, error) {
	clean := content
	if strings.Contains(content, "```json") {
		parts := strings.SplitN(content, "```json", 2)
		clean = strings.SplitN(parts[1], "```", 2)[0]
	} else if strings.Contains(content, "```") {
		parts := strings.SplitN(content, "```", 2)
		clean = strings.SplitN(parts[1], "```", 2)[0]
	}
	clean = strings.TrimSpace(clean)

	var env envelope
	if err := json.Unmarshal([]byte(clean), &env); err != nil {
		return envelope{}, err
	}
	return env, nil
}
