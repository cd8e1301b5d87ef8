// Package tools is the tool registry (spec.md §4.1, C1): a
// name-indexed map of tool metadata with a JSON-Schema parameter
// catalogue. Grounded on
// original_source/server/app/orchestration/tool/manager.py's
// registration/lookup surface, adapted to Go's static-registration
// idiom (spec.md §9's "Decorator-based tool registration" guidance) in
// place of Python's dynamic module import.
package tools

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/codeready-toolchain/tarsy/internal/apperr"
)

var nameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Func is the in-process implementation of a tool (C2's "local" mode
// calls this directly; the sidecar executor never calls it at all).
type Func func(ctx context.Context, args map[string]any) (any, error)

// Metadata is one registry entry (spec.md §3's Tool entity).
type Metadata struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-Schema object: properties, required, additionalProperties:false
	Func        Func
}

func (m Metadata) validate() error {
	if !nameRE.MatchString(m.Name) || len(m.Name) > 100 {
		return apperr.Validation("tool name %q must match [A-Za-z_][A-Za-z0-9_]* and be <=100 chars", m.Name)
	}
	if m.Parameters != nil {
		schemaBytes, err := marshalSchema(m.Parameters)
		if err != nil {
			return apperr.Validation("tool %q: invalid parameters schema: %v", m.Name, err)
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(m.Name+".json", strings.NewReader(schemaBytes)); err != nil {
			return apperr.Validation("tool %q: parameters schema rejected: %v", m.Name, err)
		}
		if _, err := compiler.Compile(m.Name + ".json"); err != nil {
			return apperr.Validation("tool %q: parameters schema does not compile: %v", m.Name, err)
		}
	}
	return nil
}

// Registry is the name -> Metadata map. Writers (Register/Remove)
// must not run concurrently with readers mid-mutation (spec.md §5); a
// RWMutex gives readers (Get/List/ToOpenAITools/ToTextCatalog) a
// consistent snapshot without blocking each other. Tools enter only
// through Register; there is no directory discovery.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Metadata
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Metadata)}
}

// Register adds a tool, failing with DuplicateName (ValidationError)
// if the name is already taken.
func (r *Registry) Register(m Metadata) error {
	if err := m.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[m.Name]; exists {
		return apperr.Validation("tool %q is already registered", m.Name)
	}
	r.entries[m.Name] = m
	return nil
}

func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; !exists {
		return apperr.NotFound("tool %q not found", name)
	}
	delete(r.entries, name)
	return nil
}

func (r *Registry) Get(name string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.entries[name]
	return m, ok
}

// List returns all entries sorted by name for deterministic output.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.entries))
	for _, m := range r.entries {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ToTextCatalog is a deterministic human-readable dump, one tool per
// section, for embedding in non-native-tool-calling prompts.
func (r *Registry) ToTextCatalog() string {
	entries := r.List()
	if len(entries) == 0 {
		return "No tools available."
	}
	var b strings.Builder
	for i, m := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n%s\nParameters: %v", m.Name, m.Description, m.Parameters)
	}
	return b.String()
}

// OpenAITool is the canonical {type:"function", function:{...}} shape
// (spec.md §4.1); the engine never sends this on the wire (spec.md
// §4.5.2 step 4 forbids native tool calling) but other callers (C9, or
// external documentation tooling) may want it.
type OpenAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Parameters  any    `json:"parameters"`
		Strict      bool   `json:"strict"`
	} `json:"function"`
}

func (r *Registry) ToOpenAITools() []OpenAITool {
	entries := r.List()
	out := make([]OpenAITool, 0, len(entries))
	for _, m := range entries {
		var t OpenAITool
		t.Type = "function"
		t.Function.Name = m.Name
		t.Function.Description = m.Description
		t.Function.Parameters = m.Parameters
		t.Function.Strict = true
		out = append(out, t)
	}
	return out
}

// AllowedFor filters the registry down to the names in allow, used by
// the recursion engine to enforce the AgentTool allowlist at dispatch
// time (spec.md §9 Open Question 3, resolved in SPEC_FULL.md §4.1).
func (r *Registry) AllowedFor(allow map[string]bool) []Metadata {
	all := r.List()
	out := make([]Metadata, 0, len(all))
	for _, m := range all {
		if allow[m.Name] {
			out = append(out, m)
		}
	}
	return out
}

// ToTextCatalogFor renders the same deterministic catalog as
// ToTextCatalog, restricted to an agent's tool allowlist -- what
// internal/api wires into engine.AgentConfig.ToolCatalog so the
// system prompt only advertises tools the agent may actually call.
func (r *Registry) ToTextCatalogFor(allow map[string]bool) string {
	entries := r.AllowedFor(allow)
	if len(entries) == 0 {
		return "No tools available."
	}
	var b strings.Builder
	for i, m := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n%s\nParameters: %v", m.Name, m.Description, m.Parameters)
	}
	return b.String()
}
