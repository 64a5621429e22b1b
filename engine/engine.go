// Package engine is a small agent host built on the Claude API. Before each
// reply it runs the prompt injection hooks of a capability table, then
// dispatches the tool calls Claude makes until a final answer is produced.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/tools"
)

// Defaults applied when Input leaves a field empty.
const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4096
	DefaultMaxTurns  = 10

	DefaultSystemPrompt = "You are Nim, a helpful assistant with long-term memory. " +
		"Use record_memory when the user shares something worth remembering, " +
		"and recall_information when an answer may depend on an earlier conversation."
)

// Engine is the agent runner that executes tools and manages Claude API interactions.
type Engine struct {
	client       *anthropic.Client
	registry     *ToolRegistry
	capabilities *tools.CapabilityTable
	logger       logrus.FieldLogger
}

// Option configures the engine.
type Option func(*Engine)

// WithCapabilities registers the hooks and tools of table. Hooks run in
// PHASE 0 of every Run.
func WithCapabilities(table *tools.CapabilityTable) Option {
	return func(e *Engine) {
		e.capabilities = table
		for _, t := range table.Tools() {
			e.registry.Register(t)
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates a new engine with the given Anthropic client and registry.
// A nil registry starts empty.
func NewEngine(client *anthropic.Client, registry *ToolRegistry, opts ...Option) *Engine {
	if registry == nil {
		registry = NewToolRegistry()
	}
	e := &Engine{
		client:   client,
		registry: registry,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithField("component", "engine")
	return e
}

// Registry returns the engine's tool registry.
func (e *Engine) Registry() *ToolRegistry {
	return e.registry
}

// Input represents the input to an agent run.
type Input struct {
	// UserMessage is the user's message to process.
	UserMessage string

	// UserID scopes memories; it is passed through to hooks and tools.
	UserID string

	// UserName is the display name stored with memories the agent records.
	UserName string

	// History contains previous messages in the conversation.
	History []core.Message

	// SystemPrompt is the system prompt to use.
	SystemPrompt string

	// Model is the Claude model to use.
	Model string

	// MaxTokens is the maximum response tokens.
	MaxTokens int64

	// MaxTurns bounds the number of Claude calls in one run.
	MaxTurns int

	// StreamCallback is an optional callback for streaming responses.
	StreamCallback func(chunk string, done bool)
}

// ToolExecution records one tool call made during a run.
type ToolExecution struct {
	ID     string
	Name   string
	Input  json.RawMessage
	Result string
	Error  bool
}

// Output represents the output from an agent run.
type Output struct {
	// Text is the agent's final text response.
	Text string

	// Injected is the text the hooks appended to the system prompt.
	Injected string

	// ToolsUsed records all tools invoked during this run.
	ToolsUsed []ToolExecution

	InputTokens  int64
	OutputTokens int64
}

// Run executes the agent loop until Claude stops calling tools.
func (e *Engine) Run(ctx context.Context, input *Input) (*Output, error) {
	runID := uuid.New().String()
	log := e.logger.WithField("run_id", runID)

	conversation := make([]core.Message, 0, len(input.History)+1)
	conversation = append(conversation, input.History...)
	if input.UserMessage != "" {
		conversation = append(conversation, core.Message{Role: core.RoleUser, Content: input.UserMessage})
	}
	if len(conversation) == 0 {
		return nil, fmt.Errorf("run: empty conversation")
	}

	// === PHASE 0: INJECT MEMORIES ===
	var injected string
	if e.capabilities != nil {
		parts := e.capabilities.InjectAll(ctx, &tools.HookParams{
			UserID:   input.UserID,
			Messages: conversation,
		})
		injected = strings.Join(parts, "\n\n")
		if injected != "" {
			log.Debugf("hooks injected %d block(s)", len(parts))
		}
	}

	// Apply defaults
	model := input.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := input.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	maxTurns := input.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	systemPrompt := input.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	// === PHASE 1: ENRICH SYSTEM PROMPT ===
	if injected != "" {
		systemPrompt += "\n\n" + injected
	}

	messages := toAPIMessages(conversation)
	apiTools := e.registry.ToAPITools()
	out := &Output{Injected: injected}

	for turn := 0; turn < maxTurns; turn++ {
		if ctx.Err() != nil {
			return out, fmt.Errorf("run: %w", ctx.Err())
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(model),
			MaxTokens: maxTokens,
			Messages:  messages,
			System: []anthropic.TextBlockParam{
				{Text: systemPrompt},
			},
		}
		if len(apiTools) > 0 {
			params.Tools = apiTools
		}

		var (
			resp *anthropic.Message
			err  error
		)
		if input.StreamCallback != nil {
			resp, err = e.createMessageStreaming(ctx, params, input.StreamCallback)
		} else {
			resp, err = e.client.Messages.New(ctx, params)
		}
		if err != nil {
			return out, fmt.Errorf("claude API error: %w", err)
		}

		out.InputTokens += resp.Usage.InputTokens
		out.OutputTokens += resp.Usage.OutputTokens

		var (
			text        strings.Builder
			toolResults []anthropic.ContentBlockParamUnion
		)
		for _, block := range resp.Content {
			switch v := block.AsAny().(type) {
			case anthropic.TextBlock:
				text.WriteString(v.Text)
			case anthropic.ToolUseBlock:
				exec := e.executeTool(ctx, input, v.ID, v.Name, json.RawMessage(v.JSON.Input.Raw()))
				log.WithFields(logrus.Fields{"tool": exec.Name, "error": exec.Error}).Info("tool executed")
				out.ToolsUsed = append(out.ToolsUsed, exec)
				toolResults = append(toolResults, anthropic.NewToolResultBlock(exec.ID, exec.Result, exec.Error))
			}
		}

		// If no tool calls, we're done
		if len(toolResults) == 0 {
			out.Text = text.String()
			if input.StreamCallback != nil {
				input.StreamCallback("", true)
			}
			return out, nil
		}

		// Continue loop with tool results
		messages = append(messages, resp.ToParam(), anthropic.NewUserMessage(toolResults...))
	}

	return out, fmt.Errorf("exceeded maximum turns (%d)", maxTurns)
}

// ExecuteTool runs a registered tool outside of a Claude turn.
func (e *Engine) ExecuteTool(ctx context.Context, userID, toolName string, input json.RawMessage) (*core.ToolResult, error) {
	tool, ok := e.registry.Get(toolName)
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}
	return tool.Execute(ctx, &core.ToolParams{
		UserID:    userID,
		Input:     input,
		RequestID: uuid.New().String(),
	})
}

func (e *Engine) executeTool(ctx context.Context, run *Input, id, name string, input json.RawMessage) ToolExecution {
	exec := ToolExecution{ID: id, Name: name, Input: input}

	var base core.BaseInput
	if err := json.Unmarshal(input, &base); err != nil {
		exec.Result = fmt.Sprintf("invalid tool input JSON: %s", err.Error())
		exec.Error = true
		return exec
	}
	if thought := strings.TrimSpace(base.Thought); thought != "" {
		e.logger.WithField("tool", name).Debugf("thought: %s", thought)
	}

	tool, ok := e.registry.Get(name)
	if !ok {
		exec.Result = fmt.Sprintf("unknown tool: %s", name)
		exec.Error = true
		return exec
	}

	result, err := tool.Execute(ctx, &core.ToolParams{
		UserID:    run.UserID,
		UserName:  run.UserName,
		Input:     input,
		RequestID: id,
	})
	exec.Result = formatObservation(result, err)
	exec.Error = err != nil || result == nil || !result.Success
	return exec
}

// createMessageStreaming handles streaming API calls.
func (e *Engine) createMessageStreaming(ctx context.Context, params anthropic.MessageNewParams, callback func(string, bool)) (*anthropic.Message, error) {
	stream := e.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, fmt.Errorf("accumulate stream: %w", err)
		}

		if evt, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if delta, ok := evt.Delta.AsAny().(anthropic.TextDelta); ok {
				callback(delta.Text, false)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return &message, nil
}

// toAPIMessages converts conversation turns to Claude messages.
// System turns are dropped; the system prompt carries that role.
func toAPIMessages(msgs []core.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		switch m.Role {
		case core.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case core.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return out
}

// formatObservation renders a tool outcome as tool_result content.
func formatObservation(result *core.ToolResult, err error) string {
	if err != nil {
		return fmt.Sprintf("Error: %s", err.Error())
	}
	if result == nil {
		return "No result returned"
	}
	if !result.Success {
		return fmt.Sprintf("Failed: %s", result.Error)
	}

	switch v := result.Data.(type) {
	case string:
		return v
	case nil:
		return "Success"
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("Success: %v", v)
		}
		return string(bytes)
	}
}
