package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
)

// AnthropicClient is the Anthropic-compatible binding (spec.md §4.3):
// POST …/messages with the system message lifted into a dedicated
// field, and streaming via content_block_delta events. An adapter maps
// both back into the common Response/StreamChunk shape so the engine
// sees one protocol regardless of provider.
type AnthropicClient struct {
	sdk   anthropic.Client
	model string
}

func NewAnthropicClient(baseURL, apiKey, model string) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{sdk: anthropic.NewClient(opts...), model: model}
}

// splitSystem pulls the (at most one, per spec.md §4.3) system message
// out of the wire-level messages list into Anthropic's dedicated field.
func splitSystem(messages []Message) (system string, rest []Message) {
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

func toAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	return out
}

func (c *AnthropicClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (*Response, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	system, rest := splitSystem(messages)
	maxTokens := int64(opts.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  toAnthropicMessages(rest),
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, apperr.LLM("messages", 0, "anthropic chat failed: %v", err)
	}
	return convertAnthropicResponse(resp), nil
}

func convertAnthropicResponse(resp *anthropic.Message) *Response {
	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	finish := FinishStop
	switch resp.StopReason {
	case "max_tokens":
		finish = FinishLength
	case "tool_use":
		finish = FinishToolCalls
	}
	return &Response{
		ID:      resp.ID,
		Model:   string(resp.Model),
		Object:  "chat.completion",
		Choices: []Choice{{Index: 0, Message: Message{Role: RoleAssistant, Content: content}, FinishReason: finish}},
		Usage: &Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}

func (c *AnthropicClient) ChatStream(ctx context.Context, messages []Message, opts ChatOptions) (<-chan StreamChunk, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	system, rest := splitSystem(messages)
	maxTokens := int64(opts.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  toAnthropicMessages(rest),
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := c.sdk.Messages.NewStreaming(ctx, params)
	out := make(chan StreamChunk, 16)

	go func() {
		defer close(out)
		var inputTokens, outputTokens int64
		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "content_block_delta":
				delta := event.Delta
				if delta.Type == "text_delta" && delta.Text != "" {
					out <- StreamChunk{Kind: ChunkText, Delta: delta.Text}
				}
				// input_json_delta (partial tool-call JSON) is not
				// surfaced to C5: the engine forbids native tool
				// calling on the wire (spec.md §4.5.2 step 4).
			case "message_start":
				inputTokens = event.Message.Usage.InputTokens
			case "message_delta":
				outputTokens = event.Usage.OutputTokens
			}
		}
		if err := stream.Err(); err != nil {
			out <- StreamChunk{Kind: ChunkError, Err: apperr.LLM("messages.stream", 0, "%v", err)}
			return
		}
		out <- StreamChunk{Kind: ChunkUsage, Usage: &Usage{
			PromptTokens:     int(inputTokens),
			CompletionTokens: int(outputTokens),
			TotalTokens:      int(inputTokens + outputTokens),
		}}
		out <- StreamChunk{Kind: ChunkDone}
	}()

	return out, nil
}

var _ Client = (*AnthropicClient)(nil)
