package memory

import (
	"time"
)

// Record is a memory returned by the remote service.
// Records are values: the workflow reads them and never mutates them.
type Record struct {
	ID        string
	Content   string
	AgentID   string
	UserID    string
	CreatedAt time.Time
	Score     float64 // Relevance in [0.0-1.0], higher is more relevant
}

// Agent identifies the persona under which memories are scoped.
type Agent struct {
	ID   string
	Name string
}

// RecallRequest is a semantic search against the memory service.
// TopK of zero disables recall; no remote call is made.
type RecallRequest struct {
	AgentID   string
	AgentName string
	UserID    string
	Query     string
	TopK      int
}

// Validate rejects requests that must never reach the network.
func (r RecallRequest) Validate() error {
	if r.TopK < 0 {
		return &ValidationError{Field: "top_k", Reason: "must not be negative"}
	}
	if isBlank(r.Query) {
		return &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	return nil
}

// WriteRequest stores a new memory.
type WriteRequest struct {
	AgentID   string
	AgentName string
	UserID    string
	UserName  string // Optional display name of the user or channel
	Content   string
	Metadata  map[string]string // Optional
}

// Validate rejects requests that must never reach the network.
func (r WriteRequest) Validate() error {
	if isBlank(r.Content) {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	return nil
}
