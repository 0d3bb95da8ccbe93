package llm

import "context"

// Chat roles shared by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model specifies the model to use. If empty, the client's default model is used.
	Model string

	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, no limit is applied.
	MaxTokens int

	// Temperature controls the randomness of the output.
	// If nil, the client's configured temperature is used.
	Temperature *float32
}

// Generator produces a completion for an ordered list of messages.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Embedder turns texts into fixed-size vectors, one per input.
// EmbedTexts embeds stored documents; EmbedQuery embeds a search question.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
