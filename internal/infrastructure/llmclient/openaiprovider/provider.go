// Package openaiprovider adapts the official OpenAI Go SDK to the
// pipeline.Provider boundary, grounded on manifold's internal/llm
// CallLLM helper and genesis's pkg/llm/openailm client.
package openaiprovider

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"

	"github.com/ngoclaw/orchestrator/internal/domain/pipeline"
)

const defaultMaxTokens = 1024

// Config carries the connection and model settings for a Provider.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Provider is the alternative pipeline.Provider, used when llm.primary is
// "openai". There is no automatic switch to it when the Anthropic provider
// fails.
type Provider struct {
	client openai.Client
	model  string
}

func New(cfg Config) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Provider{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (p *Provider) Complete(ctx context.Context, prompt pipeline.Prompt) (pipeline.RawCompletion, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if prompt.System != "" {
		msgs = append(msgs, openai.SystemMessage(prompt.System))
	}
	msgs = append(msgs, openai.UserMessage(prompt.User))

	maxTokens := int64(defaultMaxTokens)
	if prompt.MaxTokens > 0 {
		maxTokens = int64(prompt.MaxTokens)
	}

	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(p.model),
		Messages:  msgs,
		MaxTokens: param.NewOpt(maxTokens),
	}
	if prompt.Temperature > 0 {
		params.Temperature = param.NewOpt(prompt.Temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return pipeline.RawCompletion{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return pipeline.RawCompletion{}, fmt.Errorf("openai completion: no choices returned")
	}

	return pipeline.RawCompletion{Text: resp.Choices[0].Message.Content}, nil
}
