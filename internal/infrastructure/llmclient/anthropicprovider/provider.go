// Package anthropicprovider adapts the official Anthropic Go SDK to the
// pipeline.Provider boundary, grounded on manifold's internal/llm/anthropic
// client wrapper.
package anthropicprovider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ngoclaw/orchestrator/internal/domain/pipeline"
)

const defaultMaxTokens int64 = 1024

// Config carries the connection and model settings for a Provider.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Provider is a pipeline.Provider backed by the Anthropic Messages API.
type Provider struct {
	sdk   anthropic.Client
	model string
}

func New(cfg Config, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}

	return &Provider{
		sdk:   anthropic.NewClient(opts...),
		model: model,
	}
}

func (p *Provider) Complete(ctx context.Context, prompt pipeline.Prompt) (pipeline.RawCompletion, error) {
	maxTokens := defaultMaxTokens
	if prompt.MaxTokens > 0 {
		maxTokens = int64(prompt.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
	}
	if prompt.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt.System}}
	}
	if prompt.Temperature > 0 {
		params.Temperature = anthropic.Float(prompt.Temperature)
	}

	resp, err := p.sdk.Messages.New(ctx, params)
	if err != nil {
		return pipeline.RawCompletion{}, fmt.Errorf("anthropic completion: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(v.Text)
		}
	}

	return pipeline.RawCompletion{Text: sb.String()}, nil
}
