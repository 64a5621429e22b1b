// Package core holds the types shared between the memory workflow and the
// hosts that drive it: conversation turns and the tool contract.
package core

// Role values used in conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single conversation turn as seen by the host runtime.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tail returns the last n messages of history. A non-positive n returns nil.
func Tail(history []Message, n int) []Message {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
