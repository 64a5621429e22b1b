package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/memory"
)

// Capability names.
const (
	HookRelevantMemories  = "relevant_memories"
	ToolRecordMemory      = "record_memory"
	ToolRecallInformation = "recall_information"
)

// MemoryToolDefinitions returns the definitions of the memory tools.
func MemoryToolDefinitions() []core.ToolDefinition {
	return []core.ToolDefinition{
		{
			ToolName: ToolRecordMemory,
			ToolDescription: "Save an important fact, preference or event about the user to long-term memory. " +
				"Use it when the user shares something worth remembering in future conversations.",
			InputSchema: BuildSchemaWithThought(map[string]interface{}{
				"content":    StringProperty("The fact to remember, written as a standalone sentence."),
				"agent_id":   StringProperty("Optional: agent under which the memory is stored"),
				"agent_name": StringProperty("Optional: display name of that agent"),
				"metadata":   StringMapProperty("Optional: string labels stored with the memory"),
			}, false, "content"),
		},
		{
			ToolName: ToolRecallInformation,
			ToolDescription: "Search long-term memory for information relevant to a question. " +
				"Use it when the answer may depend on something the user said in an earlier conversation.",
			InputSchema: BuildSchemaWithThought(map[string]interface{}{
				"query": StringProperty("What to look for, in natural language"),
				"top_k": IntegerProperty("Optional: maximum number of memories to return (default: 3)", 1),
			}, false, "query"),
		},
	}
}

type recordMemoryInput struct {
	core.BaseInput
	Content   string            `json:"content"`
	AgentID   string            `json:"agent_id,omitempty"`
	AgentName string            `json:"agent_name,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type recallInformationInput struct {
	core.BaseInput
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Capabilities returns the capability table backed by m: the
// relevant_memories hook and the record_memory and recall_information tools.
// Tool bodies always succeed with a one-line string; failures are described
// in the text.
func Capabilities(m memory.Manager) *CapabilityTable {
	defs := make(map[string]core.ToolDefinition)
	for _, def := range MemoryToolDefinitions() {
		defs[def.ToolName] = def
	}

	hook := Hook{
		Name:        HookRelevantMemories,
		Description: "Memories related to the latest turns, appended to the system prompt.",
		Inject: func(ctx context.Context, params *HookParams) string {
			return m.AutoRecall(ctx, memory.Turn{
				History: params.Messages,
				UserID:  params.UserID,
			})
		},
	}

	record := core.NewTool(defs[ToolRecordMemory], func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
		var in recordMemoryInput
		if err := decodeInput(params.Input, &in); err != nil {
			return core.TextResult(fmt.Sprintf("Cannot record memory: %v", err)), nil
		}
		return core.TextResult(m.RecordMemory(ctx, memory.WriteOptions{
			Content:  in.Content,
			Metadata: in.Metadata,
			Agent:    memory.Agent{ID: in.AgentID, Name: in.AgentName},
			UserID:   params.UserID,
			UserName: params.UserName,
		})), nil
	})

	recall := core.NewTool(defs[ToolRecallInformation], func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
		var in recallInformationInput
		if err := decodeInput(params.Input, &in); err != nil {
			return core.TextResult(fmt.Sprintf("Cannot recall: %v", err)), nil
		}
		return core.TextResult(m.ExplicitRecall(ctx, memory.RecallOptions{
			Query:  in.Query,
			TopK:   in.TopK,
			UserID: params.UserID,
		})), nil
	})

	return NewCapabilityTable([]Hook{hook}, []core.Tool{record, recall})
}

func decodeInput(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}
