package memory_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-recall/core"
	"github.com/becomeliminal/nim-recall/memory"
)

// fakeClient is an in-memory memory.Client that records every call.
type fakeClient struct {
	mu       sync.Mutex
	records  []memory.Record
	storeID  string
	err      error
	searches []memory.RecallRequest
	stores   []memory.WriteRequest
}

func (f *fakeClient) Search(ctx context.Context, req memory.RecallRequest) ([]memory.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeClient) Store(ctx context.Context, req memory.WriteRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores = append(f.stores, req)
	if f.err != nil {
		return "", f.err
	}
	return f.storeID, nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches) + len(f.stores)
}

func testConfig() *memory.Config {
	cfg := memory.DefaultConfig()
	cfg.APIKey = "test-key"
	return cfg
}

func newWorkflow(client memory.Client, cfg *memory.Config) (*memory.Workflow, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return memory.NewWorkflow(client, cfg, memory.WithLogger(logger)), hook
}

func history(lines ...string) []core.Message {
	msgs := make([]core.Message, len(lines))
	for i, l := range lines {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		msgs[i] = core.Message{Role: role, Content: l}
	}
	return msgs
}

func TestWorkflow_AutoRecallDisabled(t *testing.T) {
	client := &fakeClient{records: []memory.Record{{ID: "1", Content: "likes tea", Score: 0.9}}}
	cfg := testConfig()
	cfg.RecallTopK = 0
	wf, _ := newWorkflow(client, cfg)

	for _, h := range [][]core.Message{nil, history("hi"), history("user likes tea", "noted", "what else?")} {
		got := wf.AutoRecall(context.Background(), memory.Turn{History: h})
		assert.Empty(t, got)
	}
	assert.Equal(t, 0, client.calls(), "disabled recall must not reach the service")
}

func TestWorkflow_AutoRecallTeaScenario(t *testing.T) {
	now := time.Now()
	client := &fakeClient{records: []memory.Record{
		{ID: "low", Content: "User dislikes coffee", Score: 0.3, CreatedAt: now},
		{ID: "high", Content: "User likes green tea", Score: 0.8, CreatedAt: now},
	}}
	cfg := testConfig()
	cfg.RecallTopK = 3
	wf, _ := newWorkflow(client, cfg)

	got := wf.AutoRecall(context.Background(), memory.Turn{
		History: []core.Message{{Role: core.RoleUser, Content: "user likes tea"}},
		UserID:  "chat-1",
	})

	require.NotEmpty(t, got)
	assert.True(t, strings.HasPrefix(got, memory.InjectionHeader))
	high := strings.Index(got, "User likes green tea")
	low := strings.Index(got, "User dislikes coffee")
	require.NotEqual(t, -1, high)
	require.NotEqual(t, -1, low)
	assert.Less(t, high, low, "higher-score record must come first")

	require.Len(t, client.searches, 1)
	req := client.searches[0]
	assert.Equal(t, "user: user likes tea", req.Query)
	assert.Equal(t, 3, req.TopK)
	assert.Equal(t, "nim_agent", req.AgentID)
	assert.Equal(t, "chat-1", req.UserID)
}

func TestWorkflow_AutoRecallEmptyResult(t *testing.T) {
	client := &fakeClient{}
	wf, _ := newWorkflow(client, testConfig())

	got := wf.AutoRecall(context.Background(), memory.Turn{History: history("anything new?")})
	assert.Empty(t, got, "no records means no injection")
	assert.Equal(t, 1, client.calls())
}

func TestWorkflow_AutoRecallEmptyHistorySkipsSearch(t *testing.T) {
	client := &fakeClient{}
	wf, _ := newWorkflow(client, testConfig())

	got := wf.AutoRecall(context.Background(), memory.Turn{History: history("   ")})
	assert.Empty(t, got)
	assert.Equal(t, 0, client.calls())
}

func TestWorkflow_AutoRecallDegradesOnRemoteFailure(t *testing.T) {
	client := &fakeClient{err: &memory.RemoteServiceError{Op: "search", Kind: memory.FailureStatus, StatusCode: 503}}
	wf, hook := newWorkflow(client, testConfig())

	got := wf.AutoRecall(context.Background(), memory.Turn{History: history("user likes tea")})
	assert.Empty(t, got)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
			assert.Contains(t, e.Data[logrus.ErrorKey].(error).Error(), "HTTP 503")
		}
	}
	assert.True(t, warned, "failure must surface as a warning")
}

func TestWorkflow_AutoRecallKeepsTopK(t *testing.T) {
	client := &fakeClient{records: []memory.Record{
		{Content: "a", Score: 0.1},
		{Content: "b", Score: 0.9},
		{Content: "c", Score: 0.5},
	}}
	cfg := testConfig()
	cfg.RecallTopK = 2
	wf, _ := newWorkflow(client, cfg)

	got := wf.AutoRecall(context.Background(), memory.Turn{History: history("letters")})
	assert.Equal(t, memory.InjectionHeader+"\n- b\n- c", got)
}

func TestWorkflow_AutoRecallAgentOverride(t *testing.T) {
	client := &fakeClient{}
	wf, _ := newWorkflow(client, testConfig())

	wf.AutoRecall(context.Background(), memory.Turn{
		History: history("hello"),
		Agent:   memory.Agent{ID: "A1", Name: "Alice"},
	})
	require.Len(t, client.searches, 1)
	assert.Equal(t, "A1", client.searches[0].AgentID)
	assert.Equal(t, "Alice", client.searches[0].AgentName)
}

func TestWorkflow_ExplicitRecall(t *testing.T) {
	client := &fakeClient{records: []memory.Record{
		{Content: "Favourite colour is blue", Score: 0.7},
	}}
	wf, _ := newWorkflow(client, testConfig())

	got := wf.ExplicitRecall(context.Background(), memory.RecallOptions{Query: "favourite colour"})
	assert.Equal(t, memory.RecallHeader+"\n1. Favourite colour is blue", got)
	require.Len(t, client.searches, 1)
	assert.Equal(t, 3, client.searches[0].TopK, "missing top_k falls back to ExplicitTopK")

	wf.ExplicitRecall(context.Background(), memory.RecallOptions{Query: "colour", TopK: 7})
	assert.Equal(t, 7, client.searches[1].TopK)
}

func TestWorkflow_ExplicitRecallNothingFound(t *testing.T) {
	wf, _ := newWorkflow(&fakeClient{}, testConfig())
	got := wf.ExplicitRecall(context.Background(), memory.RecallOptions{Query: "birthday"})
	assert.Equal(t, memory.NothingFoundMessage, got)
}

func TestWorkflow_ExplicitRecallEmptyQuery(t *testing.T) {
	client := &fakeClient{}
	wf, _ := newWorkflow(client, testConfig())

	got := wf.ExplicitRecall(context.Background(), memory.RecallOptions{Query: "  "})
	assert.Equal(t, "Cannot recall: query must not be empty", got)
	assert.Equal(t, 0, client.calls())
}

func TestWorkflow_ExplicitRecallUnreachable(t *testing.T) {
	client := &fakeClient{err: &memory.RemoteServiceError{
		Op:   "search",
		Kind: memory.FailureNetwork,
		Err:  errors.New("dial tcp 127.0.0.1:1: connect: connection refused"),
	}}
	wf, _ := newWorkflow(client, testConfig())

	got := wf.ExplicitRecall(context.Background(), memory.RecallOptions{Query: "tea"})
	assert.Equal(t, "Failed to reach memory service: dial tcp 127.0.0.1:1: connect: connection refused", got)
}

func TestWorkflow_RecordMemoryEmptyContent(t *testing.T) {
	client := &fakeClient{storeID: "should-not-be-used"}
	wf, _ := newWorkflow(client, testConfig())

	_, err := wf.Remember(context.Background(), memory.WriteRequest{AgentID: "A1", Content: ""})
	var validation *memory.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "content", validation.Field)

	got := wf.RecordMemory(context.Background(), memory.WriteOptions{Content: "\n\t "})
	assert.Equal(t, "Cannot record memory: content must not be empty", got)
	assert.Equal(t, 0, client.calls(), "validation must happen before any network call")
}

func TestWorkflow_RecordMemoryBirthdayScenario(t *testing.T) {
	client := &fakeClient{storeID: "task-42"}
	wf, _ := newWorkflow(client, testConfig())

	got := wf.RecordMemory(context.Background(), memory.WriteOptions{
		Content: "User's birthday is May 3rd",
		Agent:   memory.Agent{ID: "A1"},
	})

	assert.Equal(t, "Nim Assistant will remember that (record task-42).", got)
	require.Len(t, client.stores, 1)
	assert.Equal(t, "A1", client.stores[0].AgentID)
	assert.Equal(t, "User's birthday is May 3rd", client.stores[0].Content)
	assert.Nil(t, client.stores[0].Metadata)
}

func TestWorkflow_RecordMemoryFailure(t *testing.T) {
	client := &fakeClient{err: &memory.RemoteServiceError{Op: "store", Kind: memory.FailureTimeout}}
	wf, _ := newWorkflow(client, testConfig())

	got := wf.RecordMemory(context.Background(), memory.WriteOptions{Content: "remember me"})
	assert.Equal(t, "Failed to reach memory service: request timed out", got)

	_, err := wf.Remember(context.Background(), memory.WriteRequest{Content: "remember me"})
	var remote *memory.RemoteServiceError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, memory.FailureTimeout, remote.Kind)
}

func TestWorkflow_RecallZeroTopKSkipsSearch(t *testing.T) {
	client := &fakeClient{}
	wf, _ := newWorkflow(client, testConfig())

	records, err := wf.Recall(context.Background(), memory.RecallRequest{Query: "tea", TopK: 0})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 0, client.calls())

	_, err = wf.Recall(context.Background(), memory.RecallRequest{Query: "tea", TopK: -1})
	var validation *memory.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestWorkflow_ConcurrentTurns(t *testing.T) {
	client := &fakeClient{records: []memory.Record{{Content: "shared fact", Score: 0.5}}}
	wf, _ := newWorkflow(client, testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got := wf.AutoRecall(context.Background(), memory.Turn{
				History: history("hello"),
				Agent:   memory.Agent{ID: string(rune('a' + i))},
			})
			assert.Contains(t, got, "shared fact")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, client.calls())
}

func TestWorkflow_EmptyQueryRejectedEvenWithZeroTopK(t *testing.T) {
	client := &fakeClient{records: []memory.Record{{Content: "anything", Score: 0.9}}}
	cfg := testConfig()
	cfg.ExplicitTopK = 0
	wf, _ := newWorkflow(client, cfg)

	got := wf.ExplicitRecall(context.Background(), memory.RecallOptions{Query: ""})
	assert.Equal(t, "Cannot recall: query must not be empty", got)

	_, err := wf.Recall(context.Background(), memory.RecallRequest{Query: " ", TopK: 0})
	var validation *memory.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "query", validation.Field)
	assert.Equal(t, 0, client.calls())
}
