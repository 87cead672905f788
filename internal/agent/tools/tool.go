// Package tools implements the agent's tool catalogue (spec §4.6: C6):
// code_search, read_file, find_references, explain_code. Tool
// polymorphism follows the teacher's plugins.Registry lookup-by-name
// pattern (internal/plugins/registry.go), generalized from
// source/target-language plugins to callable agent tools.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sourcelens/coderag/internal/llm"
)

// Tool is a callable agent action. Arguments arrive as a JSON string
// matching Schema(); on malformed input or execution error, Execute
// returns a string beginning with "Error:" rather than an error value —
// tool failures are conversational content the model reads back, not
// exceptions that unwind the orchestrator loop (spec §4.6).
type Tool interface {
	Name() string
	Description() string
	Schema() []byte // JSON schema for the arguments object
	Execute(ctx context.Context, argumentsJSON, repositoryID string) string
}

// Registry looks tools up by name, mirroring the teacher's
// plugins.Registry.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t to the registry, keyed by t.Name().
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns every registered tool, sorted by name for deterministic
// iteration (e.g. when building a tool catalogue for the model).
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ToolDefs converts the registry into the llm.ToolDef catalogue passed to
// C1.chat.
func (r *Registry) ToolDefs() []llm.ToolDef {
	all := r.All()
	defs := make([]llm.ToolDef, len(all))
	for i, t := range all {
		defs[i] = llm.ToolDef{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()}
	}
	return defs
}

// Execute looks up name in the registry and runs it, synthesizing an
// Error: result for an unknown tool rather than propagating a Go error
// (spec §4.7: "unknown → synthesize an Error: tool result").
func (r *Registry) Execute(ctx context.Context, name, argumentsJSON, repositoryID string) string {
	t, ok := r.Get(name)
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", name)
	}
	return t.Execute(ctx, argumentsJSON, repositoryID)
}
