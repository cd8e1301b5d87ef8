// Package toolexec is the tool executor (spec.md §4.2, C2): a uniform
// Execute(name, kwargs) -> result with isolation-mode selection between
// in-process ("local") and sidecar (isolated ephemeral container).
// Grounded on
// original_source/server/app/orchestration/tool/manager.py's execute()
// mode branch and
// original_source/server/app/orchestration/tool/podman_sidecar_executor.py
// for the sidecar command sequence.
package toolexec

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/tarsy/internal/tools"
)

// Mode selects the isolation strategy.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeSidecar Mode = "podman_sidecar"
)

// Result is the uniform outcome of one tool call, success or failure,
// ready to be folded into a ReactRecursion's tool_call_results.
type Result struct {
	Success bool
	Value   any
	Error   string
}

// Executor dispatches by configured Mode. One Executor instance is
// shared process-wide (spec.md §5: registry/executor are injected
// values, not module state).
type Executor struct {
	mode    Mode
	sidecar *SidecarExecutor // nil unless mode == ModeSidecar
	reg     *tools.Registry
}

func New(mode Mode, reg *tools.Registry, sidecar *SidecarExecutor) *Executor {
	return &Executor{mode: mode, reg: reg, sidecar: sidecar}
}

// Execute runs tool `name` with kwargs. pivotContext is the opaque
// __pivot_context carry value (spec.md §4.2 "Context carry"): stripped
// before execution, logged only.
func (e *Executor) Execute(ctx context.Context, name string, kwargs map[string]any, pivotContext map[string]any) Result {
	meta, ok := e.reg.Get(name)
	if !ok {
		return Result{Success: false, Error: "unknown tool: " + name}
	}

	start := time.Now()
	slog.Info("tool_execute_start", "mode", e.mode, "tool", name, "context", pivotContext)

	var (
		value any
		err   error
	)
	switch e.mode {
	case ModeSidecar:
		value, err = e.sidecar.Execute(ctx, name, kwargs, pivotContext)
	default:
		value, err = meta.Func(ctx, kwargs)
	}

	elapsed := time.Since(start)
	if err != nil {
		slog.Error("tool_execute_error", "mode", e.mode, "tool", name, "elapsed_ms", elapsed.Milliseconds(), "error", err)
		return Result{Success: false, Error: err.Error()}
	}
	slog.Info("tool_execute_end", "mode", e.mode, "tool", name, "elapsed_ms", elapsed.Milliseconds())
	return Result{Success: true, Value: value}
}

// ExecuteAllowed is Execute, but first checks name against an
// AgentTool allowlist (spec.md §9 Open Question 3 resolution: an
// unassigned tool behaves exactly like an unknown one).
func (e *Executor) ExecuteAllowed(ctx context.Context, name string, kwargs map[string]any, pivotContext map[string]any, allow map[string]bool) Result {
	if !allow[name] {
		return Result{Success: false, Error: "tool not assigned to agent"}
	}
	return e.Execute(ctx, name, kwargs, pivotContext)
}
