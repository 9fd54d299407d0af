package pipeline

import (
	"context"

	"github.com/ngoclaw/orchestrator/internal/domain/contextbuilder"
)

// Generate is the Mouth: drafts the reply text and self-checks it against
// the caller's constraints. Callers must only invoke Generate when
// should_respond=true and action is SEND_NOW or INITIATE_CTA (spec §4.C).
func (p *Pipeline) Generate(ctx context.Context, in contextbuilder.Input, classify ClassifyResult) (GenerateResult, error) {
	var result GenerateResult
	err := p.runStage(ctx, "generate", generatePrompt(in, classify), func(raw []byte) error {
		return validateAgainst(generateSchema, raw)
	}, &result)
	if err != nil {
		return GenerateResult{}, err
	}
	return result, nil
}

// Usable reports whether the draft passed self-check and has content —
// the orchestrator discards anything else and treats the turn as
// should_respond=false (spec §4.C).
func (r GenerateResult) Usable() bool {
	return r.SelfCheckPassed && r.MessageText != ""
}
