package engine

import (
	"context"
	"sync"

	"github.com/codeready-toolchain/tarsy/internal/llm"
	"github.com/codeready-toolchain/tarsy/internal/store"
)

// fakeRepo is an in-memory Repo for engine tests. Not safe beyond the
// single-goroutine-per-task usage the engine itself guarantees
// (spec.md §5).
type fakeRepo struct {
	mu         sync.Mutex
	task       store.Task
	recursions []store.Recursion
	planSteps  []store.PlanStep
}

func newFakeRepo(task store.Task) *fakeRepo {
	return &fakeRepo{task: task}
}

func (f *fakeRepo) GetTask(ctx context.Context, taskID string) (store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.task, nil
}

func (f *fakeRepo) UpdateTask(ctx context.Context, task store.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.task = task
	return nil
}

func (f *fakeRepo) CreateRecursion(ctx context.Context, rec store.Recursion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recursions = append(f.recursions, rec)
	return nil
}

func (f *fakeRepo) UpdateRecursion(ctx context.Context, rec store.Recursion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.recursions {
		if f.recursions[i].TraceID == rec.TraceID {
			f.recursions[i] = rec
			return nil
		}
	}
	f.recursions = append(f.recursions, rec)
	return nil
}

func (f *fakeRepo) ListRecursions(ctx context.Context, taskID string) ([]store.Recursion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.Recursion, len(f.recursions))
	copy(out, f.recursions)
	return out, nil
}

func (f *fakeRepo) ReplacePlanSteps(ctx context.Context, taskID string, steps []store.PlanStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planSteps = steps
	return nil
}

func (f *fakeRepo) ListPlanSteps(ctx context.Context, taskID string) ([]store.PlanStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]store.PlanStep, len(f.planSteps))
	copy(out, f.planSteps)
	return out, nil
}

// scriptedLLM returns one canned Response per Chat call, in order,
// looping on the last entry if exhausted.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	calls    int
}

func (s *scriptedLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	s.calls++
	content := s.replies[idx]
	return &llm.Response{
		ID:      "resp",
		Model:   "fake",
		Choices: []llm.Choice{{Message: llm.Message{Role: llm.RoleAssistant, Content: content}, FinishReason: llm.FinishStop}},
		Usage:   &llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (s *scriptedLLM) ChatStream(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (<-chan llm.StreamChunk, error) {
	panic("not used by the engine")
}

// nativeToolCallLLM always returns a tool_calls response, simulating a
// provider that ignores opts.Tools == nil.
type nativeToolCallLLM struct{}

func (n *nativeToolCallLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (*llm.Response, error) {
	return &llm.Response{
		ID:    "resp",
		Model: "fake",
		Choices: []llm.Choice{{Message: llm.Message{
			Role:      llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{ID: "c1", Type: "function"}},
		}, FinishReason: llm.FinishToolCalls}},
	}, nil
}

func (n *nativeToolCallLLM) ChatStream(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (<-chan llm.StreamChunk, error) {
	panic("not used by the engine")
}

// recordingSink collects emitted events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}
