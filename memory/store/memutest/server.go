// Package memutest provides an in-process fake of the memU HTTP contract.
//
// The fake keeps memories in a chromem-go database, one collection per
// agent, and ranks them with a deterministic word-hash embedding. It exists
// for tests and local development; it is not a storage backend.
package memutest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/nim-recall/memory/store/memu"
)

// Call is a request received by the fake, kept for assertions.
type Call struct {
	Path   string
	Header http.Header
	Body   map[string]interface{}
}

// Server implements the memU retrieve and memorize endpoints.
type Server struct {
	apiKey string
	db     *chromem.DB

	mu          sync.Mutex
	collections map[string]*chromem.Collection // Per-agent collections
	calls       []Call
	failStatus  int
	delay       time.Duration
	now         func() time.Time
}

// New creates a fake that accepts apiKey as its bearer credential.
func New(apiKey string) *Server {
	return &Server{
		apiKey:      apiKey,
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		now:         time.Now,
	}
}

// FailWith makes every subsequent request answer with status.
// Zero restores normal behaviour.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
}

// Delay holds every subsequent response for d, to exercise client timeouts.
func (s *Server) Delay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls returns the requests received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Seed stores a memory directly, bypassing HTTP. It returns the memory id.
func (s *Server) Seed(ctx context.Context, agentID, userID, content string) (string, error) {
	return s.add(ctx, agentID, userID, content)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)

	s.mu.Lock()
	s.calls = append(s.calls, Call{Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
	failStatus, delay := s.failStatus, s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if r.Header.Get("Authorization") != "Bearer "+s.apiKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid API key"})
		return
	}
	if failStatus != 0 {
		writeJSON(w, failStatus, map[string]string{"detail": http.StatusText(failStatus)})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "method not allowed"})
		return
	}

	switch r.URL.Path {
	case memu.MemorizePath:
		s.handleMemorize(w, r, raw)
	case memu.RetrievePath:
		s.handleRetrieve(w, r, raw)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
	}
}

func (s *Server) handleMemorize(w http.ResponseWriter, r *http.Request, raw []byte) {
	var req struct {
		Conversation []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"conversation"`
		UserID  string `json:"user_id"`
		AgentID string `json:"agent_id"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid JSON body"})
		return
	}

	var parts []string
	for _, msg := range req.Conversation {
		if strings.TrimSpace(msg.Content) != "" {
			parts = append(parts, msg.Content)
		}
	}
	if len(parts) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "conversation is empty"})
		return
	}

	id, err := s.add(r.Context(), req.AgentID, req.UserID, strings.Join(parts, "\n"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": "SUCCESS"})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request, raw []byte) {
	var req struct {
		UserID  string `json:"user_id"`
		AgentID string `json:"agent_id"`
		Query   string `json:"query"`
		TopK    int    `json:"top_k"`
	}
	if err := json.Unmarshal(raw, &req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "query is required"})
		return
	}

	related, err := s.query(r.Context(), req.AgentID, req.UserID, req.Query, req.TopK)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"related_memories": related,
		"total_found":      len(related),
	})
}

// getOrCreateCollection returns the collection for an agent.
func (s *Server) getOrCreateCollection(agentID string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[agentID]; ok {
		return col, nil
	}

	name := "agent_" + agentID
	if agentID == "" {
		name = "global"
	}
	col, err := s.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[agentID] = col
	return col, nil
}

func (s *Server) add(ctx context.Context, agentID, userID, content string) (string, error) {
	col, err := s.getOrCreateCollection(agentID)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	err = col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: embed(content),
		Metadata: map[string]string{
			"agent_id":   agentID,
			"user_id":    userID,
			"created_at": s.now().UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}
	return id, nil
}

func (s *Server) query(ctx context.Context, agentID, userID, query string, topK int) ([]map[string]interface{}, error) {
	col, err := s.getOrCreateCollection(agentID)
	if err != nil {
		return nil, err
	}
	if topK > col.Count() {
		topK = col.Count()
	}
	if topK <= 0 {
		return []map[string]interface{}{}, nil
	}

	var where map[string]string
	if userID != "" {
		where = map[string]string{"user_id": userID}
	}

	// chromem-go requires nResults <= matching documents; shrink until it fits.
	var results []chromem.Result
	for limit := topK; limit >= 1; limit-- {
		results, err = col.QueryEmbedding(ctx, embed(query), limit, where, nil)
		if err == nil {
			break
		}
		if !isInsufficientDocsError(err) {
			return nil, fmt.Errorf("chromem query: %w", err)
		}
		results = nil
	}

	related := make([]map[string]interface{}, 0, len(results))
	for _, res := range results {
		score := float64(res.Similarity)
		if score < 0 {
			score = 0
		}
		related = append(related, map[string]interface{}{
			"memory": map[string]interface{}{
				"memory_id":  res.ID,
				"content":    res.Content,
				"created_at": res.Metadata["created_at"],
			},
			"user_id":          res.Metadata["user_id"],
			"agent_id":         res.Metadata["agent_id"],
			"similarity_score": score,
		})
	}
	return related, nil
}

// isInsufficientDocsError checks if error is due to insufficient documents.
func isInsufficientDocsError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
