package core

// BaseInput provides common fields for all tool inputs.
// Tools embed this struct to accept an optional reasoning note from the agent.
type BaseInput struct {
	// Thought contains the agent's reasoning about why it's using this tool.
	// It is logged alongside the call and never forwarded to the memory service.
	Thought string `json:"thought,omitempty"`
}
