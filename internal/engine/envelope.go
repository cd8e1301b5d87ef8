// Package engine is the Recursion Engine (spec.md §4.5, C5) — the
// observe-think-act driver. Grounded on
// original_source/server/app/orchestration/react/engine.py::ReactEngine
// for algorithm and
// codeready-toolchain-tarsy/pkg/agent/controller/react.go::ReActController.Run
// for Go idiom (iteration loop shape, per-iteration timeout, timeline
// events, forced-conclusion-on-max-iteration).
package engine

import (
	"encoding/json"
	"strings"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
)

// Envelope is the LLM's expected JSON reply (spec.md §4.5.2 step 5 /
// §6.3).
type Envelope struct {
	TraceID string        `json:"trace_id"` // echoed by the LLM; the engine ignores it and uses its own
	Observe string        `json:"observe"`
	Thought string        `json:"thought"`
	Action  ActionEnvelope `json:"action"`
}

type ActionEnvelope struct {
	Result ActionResultEnvelope `json:"result"`
}

type ActionResultEnvelope struct {
	ActionType string `json:"action_type"`
	Output     json.RawMessage `json:"output"`
}

// ParseEnvelope applies the tolerant parse-fallback chain of spec.md
// §4.5.2 step 5: (a) direct json.Unmarshal, (b) extract from a fenced
// ```json block, (c) extract the maximal span from the first '{' to
// the last '}' and re-parse. The fenced-block variant wins tie-breaks
// over a bare parse when both exist (spec.md §4.5.5) because models
// often prepend prose before the JSON block — so fenced extraction is
// tried FIRST, not last, despite being listed second in spec.md's
// numbered fallback order; the numbering there describes fallback
// preference under failure, while §4.5.5 governs the tie-break when
// multiple candidates parse successfully.
func ParseEnvelope(content string) (Envelope, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Envelope{}, apperr.Parse("empty LLM response")
	}

	if fenced, ok := extractFencedJSON(content); ok {
		if env, err := parseJSON(fenced); err == nil {
			if env.Action.Result.ActionType == "" {
				return Envelope{}, apperr.Parse("action_type is empty")
			}
			return env, nil
		}
	}

	if env, err := parseJSON(content); err == nil {
		if env.Action.Result.ActionType == "" {
			return Envelope{}, apperr.Parse("action_type is empty")
		}
		return env, nil
	}

	if braced, ok := extractBracedJSON(content); ok {
		if env, err := parseJSON(braced); err == nil {
			if env.Action.Result.ActionType == "" {
				return Envelope{}, apperr.Parse("action_type is empty")
			}
			return env, nil
		}
	}

	return Envelope{}, apperr.Parse("could not parse JSON envelope from LLM response")
}

func parseJSON(s string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func extractFencedJSON(s string) (string, bool) {
	const openTag = "```json"
	start := strings.Index(s, openTag)
	if start < 0 {
		// Also accept a bare ``` fence (spec.md §4.9's parsing note
		// applies the same tolerance to the builder; the engine is
		// lenient in the same way).
		start = strings.Index(s, "```")
		if start < 0 {
			return "", false
		}
		start += len("```")
	} else {
		start += len(openTag)
	}
	rest := s[start:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func extractBracedJSON(s string) (string, bool) {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first < 0 || last < 0 || last <= first {
		return "", false
	}
	return s[first : last+1], true
}
