package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResponseRoundTrip covers spec.md §8's OpenAI round-trip law:
// parsing a response into the common Response then re-serialising
// preserves id/model/choices[*].message.role/content/finish_reason/usage.
func TestResponseRoundTrip(t *testing.T) {
	original := &Response{
		ID:      "chatcmpl-123",
		Model:   "gpt-4o",
		Created: 1700000000,
		Choices: []Choice{
			{Index: 0, Message: Message{Role: RoleAssistant, Content: "hello"}, FinishReason: FinishStop},
		},
		Usage: &Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var roundTripped Response
	require.NoError(t, json.Unmarshal(data, &roundTripped))

	assert.Equal(t, original.ID, roundTripped.ID)
	assert.Equal(t, original.Model, roundTripped.Model)
	require.Len(t, roundTripped.Choices, 1)
	assert.Equal(t, original.Choices[0].Message.Role, roundTripped.Choices[0].Message.Role)
	assert.Equal(t, original.Choices[0].Message.Content, roundTripped.Choices[0].Message.Content)
	assert.Equal(t, original.Choices[0].FinishReason, roundTripped.Choices[0].FinishReason)
	require.NotNil(t, roundTripped.Usage)
	assert.Equal(t, *original.Usage, *roundTripped.Usage)
}

func TestResponseFirst(t *testing.T) {
	r := &Response{}
	_, ok := r.First()
	assert.False(t, ok)

	r.Choices = []Choice{{Index: 0, Message: Message{Content: "x"}}}
	c, ok := r.First()
	assert.True(t, ok)
	assert.Equal(t, "x", c.Message.Content)
}

func TestNewClientUnknownProtocol(t *testing.T) {
	_, err := NewClient(Config{Protocol: "bogus"})
	require.Error(t, err)
}

func TestNewClientSelectsBinding(t *testing.T) {
	openaiClient, err := NewClient(Config{Protocol: ProtocolOpenAICompatible, APIKey: "k"})
	require.NoError(t, err)
	_, ok := openaiClient.(*OpenAIClient)
	assert.True(t, ok)

	anthropicClient, err := NewClient(Config{Protocol: ProtocolAnthropicCompatible, APIKey: "k"})
	require.NoError(t, err)
	_, ok = anthropicClient.(*AnthropicClient)
	assert.True(t, ok)
}
