package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithThought(t *testing.T) {
	base := ObjectSchema(map[string]interface{}{"query": StringProperty("q")}, "query")

	optional := WithThought(base, false)
	assert.Contains(t, optional["properties"], "thought")
	assert.Equal(t, []string{"query"}, RequiredFields(optional))
	assert.NotContains(t, base["properties"], "thought", "input schema must not be mutated")

	required := WithThought(base, true)
	assert.Equal(t, []string{"query", "thought"}, RequiredFields(required))
	assert.Equal(t, []string{"query"}, RequiredFields(base))
}

func TestMemoryToolDefinitions(t *testing.T) {
	defs := MemoryToolDefinitions()
	byName := map[string][]string{}
	for _, d := range defs {
		byName[d.ToolName] = RequiredFields(d.InputSchema)
	}
	assert.Equal(t, []string{"content"}, byName[ToolRecordMemory])
	assert.Equal(t, []string{"query"}, byName[ToolRecallInformation])
}
