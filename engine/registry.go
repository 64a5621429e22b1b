package engine

import (
	"sort"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/tools"
)

// ToolRegistry holds the tools the engine may dispatch to.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]core.Tool
}

// NewToolRegistry creates a registry containing tools.
func NewToolRegistry(ts ...core.Tool) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]core.Tool, len(ts))}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// RegistryFromCapabilities registers every tool of a capability table.
func RegistryFromCapabilities(table *tools.CapabilityTable) *ToolRegistry {
	return NewToolRegistry(table.Tools()...)
}

// Register adds or replaces a tool.
func (r *ToolRegistry) Register(t core.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name.
func (r *ToolRegistry) Get(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToAPITools converts the registry to Claude tool definitions.
func (r *ToolRegistry) ToAPITools() []anthropic.ToolUnionParam {
	names := r.Names()
	out := make([]anthropic.ToolUnionParam, 0, len(names))
	for _, name := range names {
		t, _ := r.Get(name)
		schema := t.Schema()
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name(),
			Description: anthropic.String(t.Description()),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
				Required:   tools.RequiredFields(schema),
			},
		}})
	}
	return out
}
