// File path: internal/llm/llm.go
package llm

import (
	"os"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/planforge/planforge/internal/common"
	"github.com/planforge/planforge/internal/llm/providers"
)

type Prompt = providers.Prompt

type Usage = providers.Usage

type Completion = providers.Completion

type Provider = providers.Provider

// NewProvider selects the backend. The OpenAI provider requires
// OPENAI_API_KEY; anything else falls back to the deterministic local stub.
func NewProvider(name, model string, rateLimited bool) Provider {
	logger := common.Logger()
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if strings.EqualFold(strings.TrimSpace(name), "openai") && apiKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(apiKey)}
		if timeoutStr := strings.TrimSpace(os.Getenv("OPENAI_HTTP_TIMEOUT")); timeoutStr != "" {
			timeout, err := time.ParseDuration(timeoutStr)
			if err != nil {
				logger.Warn("llm: invalid OPENAI_HTTP_TIMEOUT, using default", "value", timeoutStr, "error", err)
			} else {
				logger.Info("llm: configuring OpenAI client with custom HTTP timeout", "timeout", timeout)
				opts = append(opts, option.WithRequestTimeout(timeout))
			}
		}
		if endpoint := strings.TrimSpace(os.Getenv("OPENAI_ENDPOINT")); endpoint != "" {
			logger.Info("llm: configuring OpenAI client with custom endpoint", "endpoint", endpoint)
			opts = append(opts, option.WithBaseURL(endpoint))
		} else {
			logger.Debug("llm: using default OpenAI endpoint")
		}
		client := openai.NewClient(opts...)
		logger.Info("llm: OpenAI provider selected")
		return providers.NewOpenAIProvider(client, model, rateLimited)
	}
	if strings.EqualFold(strings.TrimSpace(name), "openai") {
		logger.Warn("llm: OPENAI_API_KEY not set; falling back to local provider")
	} else {
		logger.Info("llm: local provider selected", "requested", name)
	}
	return providers.NewLocalProvider()
}
