// Package llm defines the interface for large language model providers used
// for spelling feedback and word generation.
package llm

import "context"

// Request is a single-turn completion request.
type Request struct {
	// System is an optional system prompt establishing the model's role.
	System string
	// Prompt is the user message.
	Prompt string
	// JSONMode instructs the model to emit a single JSON object. Callers
	// that set it must still validate the decoded payload.
	JSONMode bool
	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
	// Temperature controls sampling randomness. Zero means provider default.
	Temperature float64
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the result of a completion.
type Response struct {
	Content string
	Usage   Usage
}

// Provider is a request/response LLM backend.
type Provider interface {
	// Complete runs a single completion and returns the full response.
	Complete(ctx context.Context, req Request) (*Response, error)
}
