package memory

import (
	"context"

	"github.com/becomeliminal/nim-recall/core"
)

// Manager is the surface a host runtime uses. The host decides WHEN memory
// is consulted (before each reply, or on an explicit tool call); the Manager
// decides HOW: query shape, result count and rendering.
//
// Every method returns a string because hosts surface strings to the agent,
// never errors. Implementations must not block the reply pipeline on an
// unavailable memory service.
type Manager interface {
	// AutoRecall returns a block ready for prompt injection, or "" when
	// recall is disabled, nothing matched or the service failed.
	AutoRecall(ctx context.Context, turn Turn) string

	// ExplicitRecall answers the "recall information" tool.
	ExplicitRecall(ctx context.Context, opts RecallOptions) string

	// RecordMemory answers the "record memory" tool with a confirmation
	// or a one-line error message.
	RecordMemory(ctx context.Context, opts WriteOptions) string
}

// Client is the transport to the remote memory service.
// Implementations: memu.Client (HTTP).
type Client interface {
	// Search returns records related to the query, at most req.TopK of them.
	Search(ctx context.Context, req RecallRequest) ([]Record, error)

	// Store saves a memory and returns the identifier assigned by the service.
	Store(ctx context.Context, req WriteRequest) (string, error)
}

// Turn is the input to automatic recall.
type Turn struct {
	History []core.Message // Conversation so far, oldest first
	Agent   Agent          // Optional override of the configured agent
	UserID  string         // Optional user scope passed through to the service
}

// RecallOptions configures an explicit recall.
type RecallOptions struct {
	Query  string
	TopK   int // <= 0 uses Config.ExplicitTopK
	Agent  Agent
	UserID string
}

// WriteOptions configures an explicit memory write.
type WriteOptions struct {
	Content  string
	Metadata map[string]string
	Agent    Agent
	UserID   string
	UserName string
}
