package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
)

// OpenAIClient is the OpenAI-compatible binding (spec.md §4.3): POST
// …/chat/completions with bearer auth, SSE streaming terminated by
// "data: [DONE]". Built on the real SDK client rather than a
// hand-rolled HTTP layer, per SPEC_FULL.md §11.
type OpenAIClient struct {
	sdk   openai.Client
	model string
}

// NewOpenAIClient constructs a binding against an OpenAI-compatible
// endpoint (vendor base URL + API key come from the Agent's
// LLMConfiguration, spec.md §3).
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{sdk: openai.NewClient(opts...), model: model}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (*Response, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: toOpenAIMessages(messages),
	}
	// tools is never set on the wire (spec.md §4.5.2 step 4): neither
	// binding reads opts.Tools.
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, apperr.LLM("chat.completions", 0, "openai chat failed: %v", err)
	}
	return convertOpenAIResponse(resp), nil
}

func convertOpenAIResponse(resp *openai.ChatCompletion) *Response {
	out := &Response{
		ID:      resp.ID,
		Object:  string(resp.Object),
		Created: resp.Created,
		Model:   resp.Model,
	}
	for i, rc := range resp.Choices {
		msg := Message{
			Role:    RoleAssistant,
			Content: rc.Message.Content,
		}
		for _, tc := range rc.Message.ToolCalls {
			var call ToolCall
			call.ID = tc.ID
			call.Type = "function"
			call.Function.Name = tc.Function.Name
			call.Function.Arguments = tc.Function.Arguments
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
		out.Choices = append(out.Choices, Choice{
			Index:        i,
			Message:      msg,
			FinishReason: FinishReason(rc.FinishReason),
		})
	}
	if u := resp.Usage; u.TotalTokens != 0 || u.PromptTokens != 0 || u.CompletionTokens != 0 {
		out.Usage = &Usage{
			PromptTokens:     int(u.PromptTokens),
			CompletionTokens: int(u.CompletionTokens),
			TotalTokens:      int(u.TotalTokens),
		}
	}
	return out
}

func (c *OpenAIClient) ChatStream(ctx context.Context, messages []Message, opts ChatOptions) (<-chan StreamChunk, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: toOpenAIMessages(messages),
	}

	stream := c.sdk.Chat.Completions.NewStreaming(ctx, params)
	out := make(chan StreamChunk, 16)

	go func() {
		defer close(out)
		var usage *Usage
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) > 0 {
				delta := chunk.Choices[0].Delta.Content
				if delta != "" {
					out <- StreamChunk{Kind: ChunkText, Delta: delta}
				}
			}
			if chunk.Usage.TotalTokens != 0 {
				usage = &Usage{
					PromptTokens:     int(chunk.Usage.PromptTokens),
					CompletionTokens: int(chunk.Usage.CompletionTokens),
					TotalTokens:      int(chunk.Usage.TotalTokens),
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- StreamChunk{Kind: ChunkError, Err: apperr.LLM("chat.completions.stream", 0, "%v", err)}
			return
		}
		// spec.md §9 Open Question 2: usage is required on the final
		// chunk; its absence is a documented undercount, not
		// reconstructed from accumulated deltas.
		if usage != nil {
			out <- StreamChunk{Kind: ChunkUsage, Usage: usage}
		}
		out <- StreamChunk{Kind: ChunkDone}
	}()

	return out, nil
}

var _ Client = (*OpenAIClient)(nil)
