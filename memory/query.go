package memory

import (
	"fmt"
	"strings"

	"github.com/becomeliminal/nim-recall/core"
)

// QueryBuilder turns the tail of a conversation into a RecallRequest.
// It is deterministic and has no side effects.
type QueryBuilder struct {
	turns  int // Trailing turns considered
	maxLen int // Query cap in runes; <= 0 disables the cap
}

// NewQueryBuilder creates a QueryBuilder from configuration.
func NewQueryBuilder(config *Config) *QueryBuilder {
	if config == nil {
		config = DefaultConfig()
	}
	return &QueryBuilder{
		turns:  config.HistoryTurns,
		maxLen: config.MaxQueryLength,
	}
}

// Build renders the last turns as "role: content" lines and wraps them in a
// request for topK results. When the text exceeds the cap the oldest runes
// are dropped, keeping the most recent context.
func (b *QueryBuilder) Build(tail []core.Message, agent Agent, topK int) RecallRequest {
	var lines []string
	for _, msg := range core.Tail(tail, b.turns) {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Role, content))
	}

	return RecallRequest{
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Query:     keepTail(strings.Join(lines, "\n"), b.maxLen),
		TopK:      topK,
	}
}

// keepTail returns the last maxLen runes of s.
func keepTail(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[len(runes)-maxLen:])
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
