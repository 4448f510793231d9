package interfaces

import "context"

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role    string
	Content string
}

// LLMService generates completions. Implementations wrap a cloud provider.
type LLMService interface {
	// Chat returns the assistant reply for the conversation
	Chat(ctx context.Context, messages []Message) (string, error)
	// Name identifies the provider and model for logs
	Name() string
}
