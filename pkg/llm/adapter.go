package llm

import "context"

// Role marks who produced a history entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one entry of a conversation history.
type Message struct {
	Role Role
	Text string
}

// Request is a single completion call.
type Request struct {
	System  string
	Prompt  string
	History []Message
	// MaxTokens caps the reply length when the provider supports it; zero leaves the default.
	MaxTokens int
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Adapter is the language-model facade. Errors carry an errorsx reason.
type Adapter interface {
	Name() string
	Generate(ctx context.Context, req Request, credential string) (Response, error)
}

// Exchange returns the two history entries recorded for a successful turn.
func Exchange(prompt, reply string) []Message {
	return []Message{
		{Role: RoleUser, Text: prompt},
		{Role: RoleModel, Text: reply},
	}
}
