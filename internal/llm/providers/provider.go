// File path: internal/llm/providers/provider.go
package providers

import (
	"context"
	"time"
)

// Prompt is a composed system/user instruction pair ready for a model call.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// Usage captures billing-relevant metadata from a completion. Providers that
// do not report usage leave the zero value in place.
type Usage struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// Completion is the settled result of one model call.
type Completion struct {
	Content  string
	Model    string
	Provider string
	Usage    Usage
	Duration time.Duration
}

// Provider abstracts the LLM backend. GenerateJSON decodes the model output
// into out and fails on malformed or schema-breaking responses so callers can
// run their fallback chain.
type Provider interface {
	Name() string
	RateLimited() bool
	GenerateText(ctx context.Context, prompt Prompt) (*Completion, error)
	GenerateJSON(ctx context.Context, prompt Prompt, out any) (*Completion, error)
}
