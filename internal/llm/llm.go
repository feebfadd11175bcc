// Package llm abstracts the text-generation and embedding providers the
// assistant talks to. The pipeline depends on these interfaces instead of a
// concrete client, so tests can substitute stubs and deployments can switch
// between a hosted provider (OpenAI) and a local one (Ollama).
package llm

import "context"

// Message is a single chat message in provider-neutral form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionOptions bound a single completion call.
type CompletionOptions struct {
	Temperature float32
	MaxTokens   int
}

// Generator produces one chat completion for the given messages.
type Generator interface {
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (string, error)
}

// EmbeddingClient turns text into a fixed-dimension dense vector.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider is a backend offering both generation and embeddings.
type Provider interface {
	Generator
	EmbeddingClient

	// Name identifies the backend ("openai", "ollama") for logs and status output.
	Name() string
}
