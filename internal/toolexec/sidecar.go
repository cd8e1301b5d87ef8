package toolexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
)

// SidecarConfig configures the podman-based isolated executor
// (spec.md §4.2, grounded on
// original_source/.../podman_sidecar_executor.py::PodmanSidecarConfig).
type SidecarConfig struct {
	PodmanHost     string // unix:// socket
	TimeoutSeconds int
	Network        string // "" = isolated default ("none"), "host", or a named network
	Image          string
}

// SidecarExecutor spawns one ephemeral container per tool call, pipes
// JSON kwargs on stdin, reads one JSON object from stdout, and always
// force-removes the container regardless of outcome.
type SidecarExecutor struct {
	cfg SidecarConfig
}

func NewSidecarExecutor(cfg SidecarConfig) *SidecarExecutor {
	return &SidecarExecutor{cfg: cfg}
}

type sidecarResult struct {
	Success     bool   `json:"success"`
	Result      any    `json:"result"`
	Error       string `json:"error"`
	Diagnostics string `json:"diagnostics"`
}

// Execute runs tool `name` in an isolated container. Positional args
// are never supported in sidecar mode (spec.md §4.2: "kwargs only").
func (s *SidecarExecutor) Execute(ctx context.Context, name string, kwargs map[string]any, pivotContext map[string]any) (any, error) {
	timeout := time.Duration(s.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	containerID, err := s.createContainer(ctx, name)
	if err != nil {
		return nil, apperr.ToolExecution(name, fmt.Errorf("podman create: %w", err))
	}

	// Always force-remove, on every exit path (spec.md §4.2).
	defer func() {
		rmCtx, rmCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer rmCancel()
		_ = exec.CommandContext(rmCtx, "podman", s.hostArg(), "rm", "-f", containerID).Run()
	}()

	payload, err := json.Marshal(kwargs)
	if err != nil {
		return nil, apperr.ToolExecution(name, fmt.Errorf("marshal kwargs: %w", err))
	}

	var stdout, stderr bytes.Buffer
	startArgs := []string{s.hostArg(), "start", "-a", "-i", containerID}
	cmd := exec.CommandContext(ctx, "podman", startArgs...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, apperr.ToolExecution(name, fmt.Errorf("timeout"))
	}
	if runErr != nil {
		return nil, apperr.ToolExecution(name, fmt.Errorf("podman start: %w: %s", runErr, stderr.String()))
	}

	line := lastNonEmptyLine(stdout.String())
	var result sidecarResult
	if err := json.Unmarshal([]byte(line), &result); err != nil {
		return nil, apperr.ToolExecution(name, fmt.Errorf("invalid JSON from sidecar: %w: stderr=%s", err, stderr.String()))
	}
	if !result.Success {
		return nil, apperr.ToolExecution(name, fmt.Errorf("%s: stderr=%s", result.Error, stderr.String()))
	}
	return result.Result, nil
}

func (s *SidecarExecutor) createContainer(ctx context.Context, toolName string) (string, error) {
	selfRef, err := currentContainerRef()
	if err != nil {
		return "", err
	}
	args := []string{
		s.hostArg(), "create",
		"--pull=never", "-i",
		"--userns", "keep-id",
		"--volumes-from", selfRef,
		"--workdir", "/app",
		"--label", "tarsy.tool=" + toolName,
	}
	network := s.cfg.Network
	if network == "" {
		network = "none"
	}
	args = append(args, "--network", network)
	args = append(args, s.image())

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "podman", args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (s *SidecarExecutor) hostArg() string {
	if s.cfg.PodmanHost == "" {
		return "--remote=false"
	}
	return "--url=" + s.cfg.PodmanHost
}

func (s *SidecarExecutor) image() string {
	if s.cfg.Image != "" {
		return s.cfg.Image
	}
	ref, err := currentContainerRef()
	if err == nil {
		return ref
	}
	return "scratch"
}

// currentContainerRef resolves the identifier of the container this
// process is running in, via $HOSTNAME (set by the container runtime
// to the container ID) falling back to /etc/hostname, matching
// original_source/.../podman_sidecar_executor.py's resolution order.
func currentContainerRef() (string, error) {
	if h := os.Getenv("HOSTNAME"); h != "" {
		return h, nil
	}
	data, err := os.ReadFile("/etc/hostname")
	if err != nil {
		return "", fmt.Errorf("resolve current container reference: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}
