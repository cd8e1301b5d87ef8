package tools

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
)

// RegisterBuiltins registers the small arithmetic tool set used by the
// scenario suite (spec.md §8 S1/S2/S6: add, multiply, divide) into r.
// Each call is a static registration, the Go analogue of the Python
// original's @tool-decorated module-level function (spec.md §9's
// "Decorator-based tool registration" note).
func RegisterBuiltins(r *Registry) error {
	builtins := []Metadata{
		{
			Name:        "add",
			Description: "Add two numbers.",
			Parameters: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{"a": map[string]any{"type": "number"}, "b": map[string]any{"type": "number"}},
				"required":             []any{"a", "b"},
				"additionalProperties": false,
			},
			Func: func(_ context.Context, args map[string]any) (any, error) {
				a, b, err := twoNumbers(args)
				if err != nil {
					return nil, err
				}
				return a + b, nil
			},
		},
		{
			Name:        "multiply",
			Description: "Multiply two numbers.",
			Parameters: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{"a": map[string]any{"type": "number"}, "b": map[string]any{"type": "number"}},
				"required":             []any{"a", "b"},
				"additionalProperties": false,
			},
			Func: func(_ context.Context, args map[string]any) (any, error) {
				a, b, err := twoNumbers(args)
				if err != nil {
					return nil, err
				}
				return a * b, nil
			},
		},
		{
			Name:        "divide",
			Description: "Divide a by b. Raises on b == 0 (spec.md §8 S2).",
			Parameters: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{"a": map[string]any{"type": "number"}, "b": map[string]any{"type": "number"}},
				"required":             []any{"a", "b"},
				"additionalProperties": false,
			},
			Func: func(_ context.Context, args map[string]any) (any, error) {
				a, b, err := twoNumbers(args)
				if err != nil {
					return nil, err
				}
				if b == 0 {
					return nil, fmt.Errorf("division by zero")
				}
				return a / b, nil
			},
		},
	}
	for _, m := range builtins {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

func twoNumbers(args map[string]any) (float64, float64, error) {
	a, ok := toFloat(args["a"])
	if !ok {
		return 0, 0, apperr.Validation("argument %q must be a number", "a")
	}
	b, ok := toFloat(args["b"])
	if !ok {
		return 0, 0, apperr.Validation("argument %q must be a number", "b")
	}
	return a, b, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
