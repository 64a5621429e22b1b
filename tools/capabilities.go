// Package tools exposes the memory workflow to host runtimes.
//
// Hosts read a CapabilityTable once at startup: it lists the prompt
// injection hooks and the tools an agent may call, each with its schema.
package tools

import (
	"context"
	"sort"

	"github.com/becomeliminal/nim-recall/core"
)

// HookParams is what a host passes to an injection hook before a reply.
type HookParams struct {
	UserID   string
	Messages []core.Message
}

// HookFunc returns text to append to the system prompt, or "" for none.
type HookFunc func(ctx context.Context, params *HookParams) string

// Hook is a named prompt injection point.
type Hook struct {
	Name        string
	Description string
	Inject      HookFunc
}

// CapabilityTable is the static list of hooks and tools offered to a host.
type CapabilityTable struct {
	hooks map[string]Hook
	tools map[string]core.Tool
}

// NewCapabilityTable builds a table. Later entries replace earlier ones
// with the same name.
func NewCapabilityTable(hooks []Hook, tools []core.Tool) *CapabilityTable {
	t := &CapabilityTable{
		hooks: make(map[string]Hook, len(hooks)),
		tools: make(map[string]core.Tool, len(tools)),
	}
	for _, h := range hooks {
		t.hooks[h.Name] = h
	}
	for _, tool := range tools {
		t.tools[tool.Name()] = tool
	}
	return t
}

// Hook returns the hook registered under name.
func (t *CapabilityTable) Hook(name string) (Hook, bool) {
	h, ok := t.hooks[name]
	return h, ok
}

// Tool returns the tool registered under name.
func (t *CapabilityTable) Tool(name string) (core.Tool, bool) {
	tool, ok := t.tools[name]
	return tool, ok
}

// Hooks returns all hooks sorted by name.
func (t *CapabilityTable) Hooks() []Hook {
	out := make([]Hook, 0, len(t.hooks))
	for _, h := range t.hooks {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tools returns all tools sorted by name.
func (t *CapabilityTable) Tools() []core.Tool {
	out := make([]core.Tool, 0, len(t.tools))
	for _, tool := range t.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// InjectAll runs every hook in name order and returns the non-empty results.
func (t *CapabilityTable) InjectAll(ctx context.Context, params *HookParams) []string {
	var out []string
	for _, h := range t.Hooks() {
		if text := h.Inject(ctx, params); text != "" {
			out = append(out, text)
		}
	}
	return out
}
