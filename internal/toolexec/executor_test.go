package toolexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/tarsy/internal/tools"
)

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	require.NoError(t, tools.RegisterBuiltins(r))
	return r
}

func TestExecuteLocalSuccess(t *testing.T) {
	r := newTestRegistry(t)
	e := New(ModeLocal, r, nil)
	res := e.Execute(context.Background(), "add", map[string]any{"a": 3.0, "b": 5.0}, nil)
	assert.True(t, res.Success)
	assert.Equal(t, 8.0, res.Value)
}

func TestExecuteUnknownTool(t *testing.T) {
	r := newTestRegistry(t)
	e := New(ModeLocal, r, nil)
	res := e.Execute(context.Background(), "nope", nil, nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown tool")
}

func TestExecuteToolError(t *testing.T) {
	r := newTestRegistry(t)
	e := New(ModeLocal, r, nil)
	res := e.Execute(context.Background(), "divide", map[string]any{"a": 10.0, "b": 0.0}, nil)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

// TestExecuteAllowedEnforcesAllowlist covers the AgentTool-allowlist
// resolution of spec.md §9 Open Question 3: an unassigned tool behaves
// exactly like an unknown one.
func TestExecuteAllowedEnforcesAllowlist(t *testing.T) {
	r := newTestRegistry(t)
	e := New(ModeLocal, r, nil)
	res := e.ExecuteAllowed(context.Background(), "add", map[string]any{"a": 1.0, "b": 1.0}, nil, map[string]bool{"multiply": true})
	assert.False(t, res.Success)
	assert.Equal(t, "tool not assigned to agent", res.Error)

	res = e.ExecuteAllowed(context.Background(), "add", map[string]any{"a": 1.0, "b": 1.0}, nil, map[string]bool{"add": true})
	assert.True(t, res.Success)
}
