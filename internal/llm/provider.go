package llm

import (
	"context"
	"errors"
	"fmt"
)

// Default provider settings.
const (
	DefaultBaseURL     = "https://api.perplexity.ai"
	DefaultModel       = "llama-3.1-sonar-large-128k-online"
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 4000
)

var (
	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("llm: provider not configured")
	// ErrMalformedResponse reports a 2xx reply without a usable choice.
	ErrMalformedResponse = errors.New("llm: malformed provider response")
)

// Provider turns a prompt into a completion.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	Model() string
	Configured() bool
}

// Message is one chat message sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest carries the caller supplied part of a completion call.
type CompletionRequest struct {
	System string
	Prompt string
	Tools  []Tool
}

// ToolCall is a structured tool invocation proposed by the provider.
// Arguments stay as the provider's JSON encoded string.
type ToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the selected tool.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the normalized provider reply.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// UpstreamError is a non-2xx provider response.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion provider error: %d", e.StatusCode)
}
