// File path: internal/llm/providers/openai_client.go
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/shared"

	"github.com/planforge/planforge/internal/common"
)

// Cost per million tokens, used when the API reports usage without pricing.
var openAIRates = map[string]struct{ in, out float64 }{
	"gpt-4o":      {2.50, 10.00},
	"gpt-4o-mini": {0.15, 0.60},
	"gpt-4.1":     {2.00, 8.00},
}

type OpenAIProvider struct {
	client      openai.Client
	model       string
	rateLimited bool
}

func NewOpenAIProvider(client openai.Client, model string, rateLimited bool) *OpenAIProvider {
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o"
	}
	logger := common.Logger()
	logger.Info("llm: OpenAI provider configured", "model", model, "rate_limited", rateLimited)
	return &OpenAIProvider{client: client, model: model, rateLimited: rateLimited}
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) RateLimited() bool { return o.rateLimited }

func (o *OpenAIProvider) GenerateText(ctx context.Context, prompt Prompt) (*Completion, error) {
	return o.complete(ctx, prompt, false)
}

func (o *OpenAIProvider) GenerateJSON(ctx context.Context, prompt Prompt, out any) (*Completion, error) {
	completion, err := o.complete(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	cleaned := stripFences(completion.Content)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return nil, fmt.Errorf("decode structured output: %w", err)
	}
	return completion, nil
}

func (o *OpenAIProvider) complete(ctx context.Context, prompt Prompt, jsonMode bool) (*Completion, error) {
	logger := common.Logger()
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
	}
	if strings.TrimSpace(prompt.System) != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(prompt.System))
	}
	params.Messages = append(params.Messages, openai.UserMessage(prompt.User))
	if prompt.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(prompt.MaxTokens))
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	started := time.Now()
	logger.Debug("llm: sending chat completion request", "model", o.model, "json_mode", jsonMode)
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Error("llm: chat completion failed", "model", o.model, "error", err)
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	usage.CostUSD = estimateCost(o.model, usage)
	completion := &Completion{
		Content:  resp.Choices[0].Message.Content,
		Model:    o.model,
		Provider: o.Name(),
		Usage:    usage,
		Duration: time.Since(started),
	}
	logger.Debug("llm: chat completion succeeded", "model", o.model, "tokens", usage.TotalTokens, "duration", completion.Duration)
	return completion, nil
}

func estimateCost(model string, usage Usage) float64 {
	rate, ok := openAIRates[strings.ToLower(strings.TrimSpace(model))]
	if !ok {
		return 0
	}
	in := float64(usage.PromptTokens) / 1_000_000 * rate.in
	out := float64(usage.CompletionTokens) / 1_000_000 * rate.out
	return in + out
}

// stripFences removes a markdown code fence wrapper some models emit even in
// JSON mode.
func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
