package pipeline

import (
	"context"
	"fmt"

	"github.com/ngoclaw/orchestrator/internal/domain/contextbuilder"
)

const maxSummaryLen = 500

// Summarize is the Memory: compacts the conversation into a bounded
// rolling summary. On failure it falls back to a dirty-append strategy
// rather than losing the turn entirely (spec §4.C).
func (p *Pipeline) Summarize(ctx context.Context, in contextbuilder.Input, userMsg, botMsg string) (string, error) {
	var result SummarizeResult
	err := p.runStage(ctx, "summarize", summarizePrompt(in), func(raw []byte) error {
		return validateAgainst(summarizeSchema, raw)
	}, &result)
	if err != nil {
		return DirtyAppend(in.RollingSummary, userMsg, botMsg), err
	}

	summary := result.UpdatedRollingSummary
	if len(summary) > maxSummaryLen {
		summary = summary[:maxSummaryLen]
	}
	return summary, nil
}

// DirtyAppend appends a short pending-turn marker to the existing summary,
// truncating to the bound, so the next successful Summarize call can
// compact it away. Matches the original implementation's exact format.
func DirtyAppend(existing, userMsg, botMsg string) string {
	appended := existing + fmt.Sprintf("\n[PENDING] User: %s | Bot: %s", userMsg, botMsg)
	if len(appended) > maxSummaryLen {
		return appended[len(appended)-maxSummaryLen:]
	}
	return appended
}
