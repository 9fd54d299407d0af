package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ngoclaw/orchestrator/internal/domain/contextbuilder"
	"github.com/ngoclaw/orchestrator/pkg/apperrors"
	"go.uber.org/zap"
)

// Pipeline runs the three LLM stages against a single underlying Provider.
// Stages are independent methods rather than one monolithic call so the
// orchestrator can skip Generate (should_respond=false) or defer Summarize.
type Pipeline struct {
	provider Provider
	logger   *zap.Logger
	retry    RetryConfig
}

// New builds a Pipeline with the package's default retry envelope.
func New(provider Provider, logger *zap.Logger) *Pipeline {
	return &Pipeline{provider: provider, logger: logger, retry: defaultRetryConfig}
}

// NewWithRetryConfig builds a Pipeline with a caller-supplied retry
// envelope, e.g. sourced from config.PipelineConfig.
func NewWithRetryConfig(provider Provider, logger *zap.Logger, retry RetryConfig) *Pipeline {
	return &Pipeline{provider: provider, logger: logger, retry: retry.withDefaults()}
}

// runStage performs one retrying provider call, extracts JSON from the raw
// text through the three-tier fallback, and validates it against schema
// before decoding into out. Any failure is wrapped as an LLMProtocolError.
func (p *Pipeline) runStage(ctx context.Context, stage string, prompt Prompt, validate func([]byte) error, out any) error {
	completion, err := callWithRetry(ctx, p.logger, stage, p.retry, func(callCtx context.Context) (RawCompletion, error) {
		return p.provider.Complete(callCtx, prompt)
	})
	if err != nil {
		return apperrors.LLMProtocolError(fmt.Sprintf("%s: provider call failed", stage), err)
	}

	text := completion.Text
	if text == "" && completion.FailedGeneration != "" {
		text = completion.FailedGeneration
	}

	if err := Extract(text, out); err != nil {
		return apperrors.LLMProtocolError(fmt.Sprintf("%s: unparseable response", stage), err)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return apperrors.LLMProtocolError(fmt.Sprintf("%s: re-marshal for validation failed", stage), err)
	}
	if err := validate(raw); err != nil {
		return apperrors.LLMProtocolError(fmt.Sprintf("%s: schema validation failed", stage), err)
	}

	return nil
}

func classifyPrompt(in contextbuilder.Input) Prompt {
	system := fmt.Sprintf(
		"You are the sales qualification brain for %s. %s\n"+
			"Decide the next action for this conversation. Respond with a single JSON object "+
			"matching the Classify schema: thought_process, situation_summary, intent_level, "+
			"user_sentiment, risk_flags{spam,policy,hallucination}, action, new_stage, "+
			"should_respond, selected_cta_id, cta_scheduled_at, followup_in_minutes, "+
			"followup_reason, confidence, needs_human_attention.",
		in.BusinessName, in.BusinessDescription,
	)
	user := fmt.Sprintf(
		"Current stage: %s\nMode: %s\nIntent: %s\nSentiment: %s\nRolling summary: %s\n"+
			"WhatsApp window open: %v\nFollowups sent in last 24h: %d\nTotal nudges: %d\n"+
			"Recent messages: %v",
		in.Stage, in.Mode, in.IntentLevel, in.Sentiment, in.RollingSummary,
		in.WhatsAppWindowOpen, in.FollowupCount24h, in.TotalNudges, in.RecentMessages,
	)
	return Prompt{System: system, User: user, MaxTokens: 1024, Temperature: 0.2}
}

func generatePrompt(in contextbuilder.Input, classify ClassifyResult) Prompt {
	system := fmt.Sprintf(
		"You are the sales reply writer for %s. Write at most %d words and at most %d "+
			"question marks, in %s. Respond with JSON: message_text, message_language, "+
			"self_check_passed, violations.",
		in.BusinessName, in.Constraints.MaxWords, in.Constraints.QuestionsPerMsg,
		in.Constraints.LanguagePreference,
	)
	user := fmt.Sprintf(
		"Stage: %s\nAction: %s\nSituation: %s\nSelected CTA: %s\n",
		classify.NewStage, classify.Action, classify.SituationSummary, classify.SelectedCTAID,
	)
	return Prompt{System: system, User: user, MaxTokens: 512, Temperature: 0.4}
}

func summarizePrompt(in contextbuilder.Input) Prompt {
	system := "Compact the conversation so far into at most 500 characters. " +
		"Respond with JSON: updated_rolling_summary."
	user := fmt.Sprintf("Existing summary: %s\nRecent messages: %v", in.RollingSummary, in.RecentMessages)
	return Prompt{System: system, User: user, MaxTokens: 256, Temperature: 0.1}
}
