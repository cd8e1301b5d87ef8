package scenechat

import (
	"context"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
	"github.com/codeready-toolchain/tarsy/internal/llm"
)

// HistoryEntry is one turn of the peer runtime's rolling chat history.
type HistoryEntry struct {
	Role    string
	Content string
}

// Runtime is the scene-graph-aware peer chat runtime (spec.md §4.8),
// grounded line for line on runtime.py's AgentRuntime: it owns the
// in-memory scene graph and feeds it, plus the user's message and
// history, into the LLM on every call.
type Runtime struct {
	Name         string
	Description  string
	Client       llm.Client
	SystemPrompt string

	history    []HistoryEntry
	scenes     []Scene
	current    *Scene
	currentSub *Subscene
}

func New(name, description string, client llm.Client, systemPrompt string, scenes []Scene) *Runtime {
	return &Runtime{Name: name, Description: description, Client: client, SystemPrompt: systemPrompt, scenes: scenes}
}

func (r *Runtime) Scenes() []Scene { return append([]Scene(nil), r.scenes...) }

func (r *Runtime) buildMessages(userMessage string) []llm.Message {
	messages := make([]llm.Message, 0, len(r.history)+2)
	if r.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: r.SystemPrompt})
	}
	for _, h := range r.history {
		messages = append(messages, llm.Message{Role: llm.Role(h.Role), Content: h.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})
	return messages
}

// Chat is the non-streaming call: one LLM round trip, parsed in full
// (runtime.py's AgentRuntime.chat).
func (r *Runtime) Chat(ctx context.Context, userMessage string) (OutputMessage, error) {
	resp, err := r.Client.Chat(ctx, r.buildMessages(userMessage), llm.ChatOptions{})
	if err != nil {
		return OutputMessage{}, apperr.LLM("", 0, "scene chat call failed: %v", err)
	}
	choice, ok := resp.First()
	if !ok {
		return OutputMessage{Response: "No response from LLM"}, nil
	}

	output := ParseOutput(choice.Message.Content)
	if len(output.UpdatedScenes) > 0 {
		r.applyScenes(output.UpdatedScenes)
	}
	r.history = append(r.history, HistoryEntry{Role: "user", Content: userMessage}, HistoryEntry{Role: "assistant", Content: choice.Message.Content})
	return output, nil
}

// ChatStream is the streaming call: deltas flow through a StreamState,
// and the final OutputMessage's scene updates are applied once the
// upstream stream closes (runtime.py's AgentRuntime.chat_stream).
func (r *Runtime) ChatStream(ctx context.Context, userMessage string) (<-chan Chunk, error) {
	upstream, err := r.Client.ChatStream(ctx, r.buildMessages(userMessage), llm.ChatOptions{})
	if err != nil {
		return nil, apperr.LLM("", 0, "scene chat stream failed: %v", err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		state := NewStreamState()
		var assistantContent string

		for sc := range upstream {
			switch sc.Kind {
			case llm.ChunkError:
				out <- Chunk{Type: SectionError, Err: sc.Err}
				return
			case llm.ChunkText:
				assistantContent += sc.Delta
				for _, c := range state.Feed(sc.Delta, "") {
					out <- c
				}
			case llm.ChunkDone:
				final, output := state.Finish()
				for _, c := range final {
					out <- c
				}
				if len(output.UpdatedScenes) > 0 {
					r.applyScenes(output.UpdatedScenes)
				}
				r.history = append(r.history, HistoryEntry{Role: "user", Content: userMessage}, HistoryEntry{Role: "assistant", Content: assistantContent})
				return
			}
		}
	}()

	return out, nil
}

// applyScenes replaces the scene graph wholesale and re-derives the
// active scene/subscene pointers (runtime.py's
// AgentRuntime._update_scenes_from_output).
func (r *Runtime) applyScenes(scenes []Scene) {
	r.scenes = scenes
	r.current = nil
	r.currentSub = nil

	for i := range r.scenes {
		scene := &r.scenes[i]
		if scene.State != SceneActive {
			continue
		}
		r.current = scene
		for j := range scene.Subscenes {
			if scene.Subscenes[j].State == SceneActive {
				r.currentSub = &scene.Subscenes[j]
				break
			}
		}
		break
	}
}
