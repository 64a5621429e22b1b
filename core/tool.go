package core

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes a callable tool exposed to an agent.
type ToolDefinition struct {
	ToolName        string
	ToolDescription string
	InputSchema     map[string]interface{}
}

// ToolParams is the invocation payload handed to a tool.
type ToolParams struct {
	UserID    string          // Passed through to the memory service as the user scope
	UserName  string          // Optional display name stored with new memories
	Input     json.RawMessage // Raw JSON arguments produced by the agent
	RequestID string
}

// ToolResult is the outcome of a tool invocation.
// Memory tools always report Success with a string Data, since the host
// expects a plain string result and never an error.
type ToolResult struct {
	Success bool
	Data    interface{}
	Error   string
}

// Tool is a named operation the host can invoke.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]interface{}
	Execute(ctx context.Context, params *ToolParams) (*ToolResult, error)
}

// ToolFunc implements a tool body.
type ToolFunc func(ctx context.Context, params *ToolParams) (*ToolResult, error)

type funcTool struct {
	def ToolDefinition
	fn  ToolFunc
}

// NewTool binds a definition to its implementation.
func NewTool(def ToolDefinition, fn ToolFunc) Tool {
	return &funcTool{def: def, fn: fn}
}

func (t *funcTool) Name() string                   { return t.def.ToolName }
func (t *funcTool) Description() string            { return t.def.ToolDescription }
func (t *funcTool) Schema() map[string]interface{} { return t.def.InputSchema }

func (t *funcTool) Execute(ctx context.Context, params *ToolParams) (*ToolResult, error) {
	return t.fn(ctx, params)
}

// TextResult wraps a plain string as a successful tool result.
func TextResult(text string) *ToolResult {
	return &ToolResult{Success: true, Data: text}
}
