// File path: internal/llm/providers/local.go
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrStructuredUnsupported signals that the provider cannot honor a
// schema-shaped request; callers route it into their fallback chain.
var ErrStructuredUnsupported = errors.New("structured output not supported")

// LocalProvider is a deterministic offline stand-in used when no API key is
// configured. Text calls echo the request; structured calls fail so the
// sectioned and static fallbacks stay exercised during development.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Name() string { return "local" }

func (l *LocalProvider) RateLimited() bool { return false }

func (l *LocalProvider) GenerateText(ctx context.Context, prompt Prompt) (*Completion, error) {
	if strings.TrimSpace(prompt.User) == "" {
		return nil, fmt.Errorf("empty prompt")
	}
	started := time.Now()
	return &Completion{
		Content:  "[local-stub] " + strings.TrimSpace(prompt.User),
		Model:    "local-stub",
		Provider: l.Name(),
		Duration: time.Since(started),
	}, nil
}

func (l *LocalProvider) GenerateJSON(ctx context.Context, prompt Prompt, out any) (*Completion, error) {
	return nil, ErrStructuredUnsupported
}
