// Package config is the runtime's environment-variable-driven
// configuration surface (spec.md §6.1), grounded on
// codeready-toolchain-tarsy/pkg/config's idiom: typed getters over a
// value built once at startup, validated eagerly so a bad config fails
// fast (cmd/*/main.go exits 1) rather than surfacing halfway through a
// request.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
)

// ToolExecutionMode is spec.md §6.1's TOOL_EXECUTION_MODE enum.
type ToolExecutionMode string

const (
	ToolExecutionLocal         ToolExecutionMode = "local"
	ToolExecutionPodmanSidecar ToolExecutionMode = "podman_sidecar"
)

// Config is the fully-loaded, validated runtime configuration.
// Immutable after Load returns: callers pass it by value or via a
// `*Config` receiver held by a single owner, never a package-level
// singleton (spec.md §9).
type Config struct {
	HTTPAddr string

	DatabaseURL string
	SecretKey   string

	ToolExecutionMode  ToolExecutionMode
	PodmanHost         string
	ToolSidecarTimeout time.Duration
	ToolSidecarNetwork string
	ToolSidecarImage   string

	LLM LLMConfig
}

// LLMConfig is the LLM binding selection (internal/llm's OpenAI- and
// Anthropic-compatible clients), grounded on pkg/config/llm.go's
// LLMProviderConfig shape, trimmed to what C3 actually needs.
type LLMConfig struct {
	Provider string // "openai" or "anthropic"
	Model    string
	APIKey   string
	BaseURL  string
}

// Load reads and validates configuration from the process environment
// (cmd/agentrt/main.go calls godotenv.Load() before this, so .env-file
// values are already in os.Environ() by the time Load runs).
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:    getEnvOrDefault("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SecretKey:   os.Getenv("SECRET_KEY"),

		ToolExecutionMode:  ToolExecutionMode(getEnvOrDefault("TOOL_EXECUTION_MODE", string(ToolExecutionLocal))),
		PodmanHost:         os.Getenv("PODMAN_HOST"),
		ToolSidecarNetwork: os.Getenv("TOOL_SIDECAR_NETWORK"),
		ToolSidecarImage:   os.Getenv("TOOL_SIDECAR_IMAGE"),

		LLM: LLMConfig{
			Provider: getEnvOrDefault("LLM_PROVIDER", "openai"),
			Model:    getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
			APIKey:   os.Getenv("LLM_API_KEY"),
			BaseURL:  os.Getenv("LLM_BASE_URL"),
		},
	}

	timeoutSeconds, err := strconv.Atoi(getEnvOrDefault("TOOL_SIDECAR_TIMEOUT_SECONDS", "30"))
	if err != nil {
		return Config{}, apperr.Config("invalid TOOL_SIDECAR_TIMEOUT_SECONDS: %v", err)
	}
	cfg.ToolSidecarTimeout = time.Duration(timeoutSeconds) * time.Second

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.SecretKey == "" {
		return apperr.Config("SECRET_KEY is required")
	}
	switch c.ToolExecutionMode {
	case ToolExecutionLocal, ToolExecutionPodmanSidecar:
	default:
		return apperr.Config("TOOL_EXECUTION_MODE must be %q or %q, got %q",
			ToolExecutionLocal, ToolExecutionPodmanSidecar, c.ToolExecutionMode)
	}
	if c.ToolExecutionMode == ToolExecutionPodmanSidecar && c.PodmanHost == "" {
		return apperr.Config("PODMAN_HOST is required when TOOL_EXECUTION_MODE=podman_sidecar")
	}
	if c.ToolSidecarTimeout <= 0 {
		return apperr.Config("TOOL_SIDECAR_TIMEOUT_SECONDS must be positive")
	}
	if c.LLM.Provider != "openai" && c.LLM.Provider != "anthropic" {
		return apperr.Config("LLM_PROVIDER must be %q or %q, got %q", "openai", "anthropic", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return apperr.Config("LLM_API_KEY is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
