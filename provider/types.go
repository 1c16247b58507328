package provider

// Role identifies the message sender.
type Role string

// Standard message roles shared across all provider families.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a conversation turn.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// ModelParams holds the sampling configuration for one model identifier.
// Loaded once at startup and read-only thereafter.
type ModelParams struct {
	// Temperature controls response randomness (0.0 = deterministic).
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature"`

	// TopP is the nucleus-sampling probability mass.
	TopP float64 `json:"top_p" yaml:"top_p" toml:"top_p"`

	// Extra holds provider-specific parameters not covered above.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty" toml:"extra"`
}

// Request is the provider-agnostic shape of one chat call.
type Request struct {
	// Model is the model identifier as it appears in the family's
	// configuration table.
	Model string `json:"model"`

	// Messages is the ordered turn sequence to send.
	Messages []Message `json:"messages"`

	// MaxTokens limits the response length. Zero means provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Response is the normalized output of a non-streaming call.
type Response struct {
	// Content is the full response text.
	Content string `json:"content"`

	// Model is the model that produced the response.
	Model string `json:"model"`
}

// StreamChunk is one incremental unit of a streamed response: either a
// text delta or a terminal error. Consumed exactly once per stream.
type StreamChunk struct {
	// Content is the text delta carried by this chunk.
	Content string `json:"content,omitempty"`

	// Done indicates this is the final chunk.
	Done bool `json:"done"`

	// Error is non-nil if streaming failed; it terminates the sequence.
	Error error `json:"-"`
}
