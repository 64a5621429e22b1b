package tools

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/memory"
	"github.com/becomeliminal/nim-recall/memory/store/memu"
	"github.com/becomeliminal/nim-recall/memory/store/memutest"
)

type fakeManager struct {
	turns   []memory.Turn
	recalls []memory.RecallOptions
	writes  []memory.WriteOptions
}

func (f *fakeManager) AutoRecall(ctx context.Context, turn memory.Turn) string {
	f.turns = append(f.turns, turn)
	return "injected"
}

func (f *fakeManager) ExplicitRecall(ctx context.Context, opts memory.RecallOptions) string {
	f.recalls = append(f.recalls, opts)
	return "recalled"
}

func (f *fakeManager) RecordMemory(ctx context.Context, opts memory.WriteOptions) string {
	f.writes = append(f.writes, opts)
	return "recorded"
}

func execute(t *testing.T, table *CapabilityTable, name, userID, input string) string {
	t.Helper()
	tool, ok := table.Tool(name)
	require.True(t, ok, "tool %s not registered", name)
	res, err := tool.Execute(context.Background(), &core.ToolParams{UserID: userID, Input: json.RawMessage(input)})
	require.NoError(t, err)
	require.True(t, res.Success)
	text, ok := res.Data.(string)
	require.True(t, ok)
	return text
}

func TestCapabilities_Listing(t *testing.T) {
	table := Capabilities(&fakeManager{})

	hooks := table.Hooks()
	require.Len(t, hooks, 1)
	assert.Equal(t, HookRelevantMemories, hooks[0].Name)

	var names []string
	for _, tool := range table.Tools() {
		names = append(names, tool.Name())
		assert.NotEmpty(t, tool.Description())
		assert.Equal(t, "object", tool.Schema()["type"])
	}
	assert.Equal(t, []string{ToolRecallInformation, ToolRecordMemory}, names)

	_, ok := table.Tool("send_money")
	assert.False(t, ok)
}

func TestCapabilities_RecordMemoryInput(t *testing.T) {
	m := &fakeManager{}
	table := Capabilities(m)

	tool, ok := table.Tool(ToolRecordMemory)
	require.True(t, ok)
	res, err := tool.Execute(context.Background(), &core.ToolParams{
		UserID:   "chat-1",
		UserName: "general",
		Input:    json.RawMessage(`{"content":"User's birthday is May 3rd","agent_id":"A1","agent_name":"Alice","metadata":{"source":"chat"},"thought":"worth keeping"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "recorded", res.Data)

	require.Len(t, m.writes, 1)
	assert.Equal(t, memory.WriteOptions{
		Content:  "User's birthday is May 3rd",
		Metadata: map[string]string{"source": "chat"},
		Agent:    memory.Agent{ID: "A1", Name: "Alice"},
		UserID:   "chat-1",
		UserName: "general",
	}, m.writes[0])
}

func TestCapabilities_RecallInformationInput(t *testing.T) {
	m := &fakeManager{}
	table := Capabilities(m)

	assert.Equal(t, "recalled", execute(t, table, ToolRecallInformation, "u", `{"query":"tea","top_k":5}`))
	assert.Equal(t, "recalled", execute(t, table, ToolRecallInformation, "u", `{"query":"tea"}`))
	require.Len(t, m.recalls, 2)
	assert.Equal(t, 5, m.recalls[0].TopK)
	assert.Equal(t, 0, m.recalls[1].TopK)
	assert.Equal(t, "u", m.recalls[1].UserID)
}

func TestCapabilities_InvalidInput(t *testing.T) {
	m := &fakeManager{}
	table := Capabilities(m)

	got := execute(t, table, ToolRecordMemory, "", `{"content": 42}`)
	assert.Contains(t, got, "Cannot record memory: invalid input")
	got = execute(t, table, ToolRecallInformation, "", `not json`)
	assert.Contains(t, got, "Cannot recall: invalid input")
	assert.Empty(t, m.writes)
	assert.Empty(t, m.recalls)
}

func TestCapabilities_Hook(t *testing.T) {
	m := &fakeManager{}
	table := Capabilities(m)

	msgs := []core.Message{{Role: core.RoleUser, Content: "hello"}}
	out := table.InjectAll(context.Background(), &HookParams{UserID: "u1", Messages: msgs})
	assert.Equal(t, []string{"injected"}, out)
	require.Len(t, m.turns, 1)
	assert.Equal(t, msgs, m.turns[0].History)
	assert.Equal(t, "u1", m.turns[0].UserID)
}

func TestCapabilities_EndToEnd(t *testing.T) {
	fake := memutest.New("key")
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cfg := memory.DefaultConfig()
	cfg.APIKey = "key"
	cfg.BaseURL = srv.URL
	client, err := memu.New(cfg)
	require.NoError(t, err)
	logger, _ := logtest.NewNullLogger()
	table := Capabilities(memory.NewWorkflow(client, cfg, memory.WithLogger(logger)))

	got := execute(t, table, ToolRecordMemory, "u1", `{"content":"User likes green tea"}`)
	assert.Regexp(t, `^Nim Assistant will remember that \(record [0-9a-f-]{36}\)\.$`, got)

	got = execute(t, table, ToolRecallInformation, "u1", `{"query":"green tea"}`)
	assert.Equal(t, memory.RecallHeader+"\n1. User likes green tea", got)

	hook, ok := table.Hook(HookRelevantMemories)
	require.True(t, ok)
	injected := hook.Inject(context.Background(), &HookParams{
		UserID:   "u1",
		Messages: []core.Message{{Role: core.RoleUser, Content: "what tea do I like?"}},
	})
	assert.Equal(t, memory.InjectionHeader+"\n- User likes green tea", injected)

	fake.FailWith(503)
	got = execute(t, table, ToolRecallInformation, "u1", `{"query":"tea"}`)
	assert.Equal(t, "Failed to reach memory service: service responded with HTTP 503", got)
}
