package builder

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/codeready-toolchain/tarsy/internal/llm"
)

// scriptedLLM returns one canned Response per Chat call, in order.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	calls   int
	seen    [][]llm.Message
}

func (s *scriptedLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, messages)
	idx := s.calls
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	s.calls++
	return &llm.Response{
		Choices: []llm.Choice{{Message: llm.Message{Role: llm.RoleAssistant, Content: s.replies[idx]}, FinishReason: llm.FinishStop}},
	}, nil
}

func (s *scriptedLLM) ChatStream(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (<-chan llm.StreamChunk, error) {
	panic("not used by the builder")
}

const fencedReply = "Here you go:\n```json\n" + `{
  "response": "Created a greeting agent.",
  "reason": "You asked for a simple greeter.",
  "agent": {
    "name": "Greeter",
    "description": "Says hello",
    "scenes": [
      {"name": "greeting", "state": "active", "subscenes": [{"name": "welcome", "state": "active"}]}
    ]
  }
}` + "\n```\n"

const bareReply = `{
  "response": "Added an order-lookup scene.",
  "reason": "You asked for order tracking.",
  "agent": {
    "name": "Greeter",
    "description": "Says hello and tracks orders",
    "scenes": []
  }
}`

func TestBuildParsesFencedJSONReply(t *testing.T) {
	llmClient := &scriptedLLM{replies: []string{fencedReply}}
	b := New(llmClient)

	result, err := b.Build(context.Background(), "Build me a greeter agent", nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if result.Agent.Name != "Greeter" {
		t.Fatalf("agent name = %q", result.Agent.Name)
	}
	if len(result.Agent.Scenes) != 1 || result.Agent.Scenes[0].Name != "greeting" {
		t.Fatalf("unexpected scenes: %+v", result.Agent.Scenes)
	}
	if result.Response != "Created a greeting agent." {
		t.Fatalf("response = %q", result.Response)
	}
}

func TestBuildParsesBareJSONReply(t *testing.T) {
	llmClient := &scriptedLLM{replies: []string{bareReply}}
	b := New(llmClient)

	result, err := b.Build(context.Background(), "Add order lookup", nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if result.Agent.Name != "Greeter" {
		t.Fatalf("agent name = %q", result.Agent.Name)
	}
}

func TestBuildReturnsBuildErrorOnUnparsableReply(t *testing.T) {
	llmClient := &scriptedLLM{replies: []string{"I can't help with that, sorry."}}
	b := New(llmClient)

	_, err := b.Build(context.Background(), "Build me something", nil)
	if err == nil {
		t.Fatalf("expected a parse error, got nil")
	}
}

func TestBuildSeedsSystemPromptOnlyOnFirstCall(t *testing.T) {
	llmClient := &scriptedLLM{replies: []string{fencedReply, bareReply}}
	b := New(llmClient)

	if _, err := b.Build(context.Background(), "first requirement", nil); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	if _, err := b.Build(context.Background(), "second requirement", nil); err != nil {
		t.Fatalf("second Build failed: %v", err)
	}

	firstCallSystemCount := countRole(llmClient.seen[0], llm.RoleSystem)
	secondCallSystemCount := countRole(llmClient.seen[1], llm.RoleSystem)
	if firstCallSystemCount != 1 {
		t.Fatalf("expected exactly one system message on the first call, got %d", firstCallSystemCount)
	}
	if secondCallSystemCount != 1 {
		t.Fatalf("expected the system message to still be present (from history) on the second call, got %d", secondCallSystemCount)
	}
}

func TestBuildIncludesExistingAgentContextWhenModifying(t *testing.T) {
	llmClient := &scriptedLLM{replies: []string{bareReply}}
	b := New(llmClient)

	existing := &AgentConfig{Name: "Greeter", Description: "Says hello"}
	if _, err := b.Build(context.Background(), "Add order lookup", existing); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	last := llmClient.seen[0]
	userMsg := last[len(last)-1]
	if !strings.Contains(userMsg.Content, "Current Agent Configuration") {
		t.Fatalf("expected existing agent context in the user message, got: %q", userMsg.Content)
	}
}

func TestBuildHistoryAccumulatesAcrossCalls(t *testing.T) {
	llmClient := &scriptedLLM{replies: []string{fencedReply, bareReply}}
	b := New(llmClient)

	if _, err := b.Build(context.Background(), "first", nil); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	if _, err := b.Build(context.Background(), "second", nil); err != nil {
		t.Fatalf("second Build failed: %v", err)
	}

	// second call should see: system, user1, assistant1, user2
	if len(llmClient.seen[1]) != 4 {
		t.Fatalf("expected 4 messages on the second call, got %d: %+v", len(llmClient.seen[1]), llmClient.seen[1])
	}
}

func TestClearHistoryResetsRollingConversation(t *testing.T) {
	llmClient := &scriptedLLM{replies: []string{fencedReply, bareReply}}
	b := New(llmClient)

	if _, err := b.Build(context.Background(), "first", nil); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	b.ClearHistory()
	if _, err := b.Build(context.Background(), "second", nil); err != nil {
		t.Fatalf("second Build failed: %v", err)
	}

	if countRole(llmClient.seen[1], llm.RoleSystem) != 1 {
		t.Fatalf("expected a fresh system seed after ClearHistory")
	}
	if len(llmClient.seen[1]) != 2 {
		t.Fatalf("expected only [system, user] after a cleared history, got %d", len(llmClient.seen[1]))
	}
}

func countRole(messages []llm.Message, role llm.Role) int {
	count := 0
	for _, m := range messages {
		if m.Role == role {
			count++
		}
	}
	return count
}
