package pipeline

import (
	"context"

	"github.com/ngoclaw/orchestrator/internal/domain/contextbuilder"
	"github.com/ngoclaw/orchestrator/internal/domain/entity"
)

// Classify is the Brain: a single call that decides the next action,
// stage, and attention flags for one turn (spec §4.C).
func (p *Pipeline) Classify(ctx context.Context, in contextbuilder.Input) (ClassifyResult, error) {
	var result ClassifyResult
	err := p.runStage(ctx, "classify", classifyPrompt(in), func(raw []byte) error {
		return validateAgainst(classifySchema, raw)
	}, &result)
	if err != nil {
		return FallbackClassify(in), err
	}
	return result, nil
}

// FallbackClassify is the safe degraded output used when Classify's
// provider call or parsing fails outright. A protocol failure is not a
// signal about the lead — it's a transient LLMProtocolError — so it must
// stay out of the HighRiskOrLowConfidence escalation path entirely: wait
// and let the follow-up ladder retry later rather than flagging the
// conversation for human attention (spec §7 error taxonomy, grounded on
// the original decision step's _get_fallback_output).
func FallbackClassify(in contextbuilder.Input) ClassifyResult {
	return ClassifyResult{
		ThoughtProcess:      "fallback: pipeline call failed",
		SituationSummary:    in.RollingSummary,
		IntentLevel:         string(in.IntentLevel),
		UserSentiment:       string(in.Sentiment),
		RiskFlags:           RiskFlags{Spam: entity.RiskLow, Policy: entity.RiskLow, Hallucination: entity.RiskLow},
		Action:              string(entity.ActionWaitSchedule),
		NewStage:            string(in.Stage),
		ShouldRespond:       false,
		FollowupInMinutes:   120,
		FollowupReason:      "pipeline fallback",
		Confidence:          1,
		NeedsHumanAttention: false,
	}
}
