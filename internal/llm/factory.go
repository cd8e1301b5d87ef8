package llm

import "github.com/codeready-toolchain/tarsy/internal/apperr"

// Protocol selects which wire binding an LLMConfiguration uses
// (spec.md §3's Protocol field, spec.md §4.3).
type Protocol string

const (
	ProtocolOpenAICompatible    Protocol = "openai_compatible"
	ProtocolAnthropicCompatible Protocol = "anthropic_compatible"
)

// Config mirrors the subset of the Agent/LLMConfiguration entity
// (spec.md §3) needed to build a Client.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Protocol Protocol
}

// NewClient builds the concrete binding for a Config's Protocol.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Protocol {
	case ProtocolOpenAICompatible:
		return NewOpenAIClient(cfg.Endpoint, cfg.APIKey, cfg.Model), nil
	case ProtocolAnthropicCompatible:
		return NewAnthropicClient(cfg.Endpoint, cfg.APIKey, cfg.Model), nil
	default:
		return nil, apperr.Config("unknown LLM protocol %q", cfg.Protocol)
	}
}
