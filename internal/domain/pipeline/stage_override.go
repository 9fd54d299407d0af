package pipeline

import (
	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"go.uber.org/zap"
)

// ResolveStage implements spec §4.C's stage-override rule: the analyzer's
// high-confidence recommendation wins if it progresses the funnel forward;
// otherwise the LLM's suggestion wins as long as it doesn't regress;
// otherwise the current stage is kept and the regression is logged.
//
// analyzerStage may equal cur when the pipeline has no separate analyzer
// recommendation for this turn (grounded on the original decision step's
// "if analyze_stage not passed, treat as current" fallback).
func ResolveStage(logger *zap.Logger, cur, llmStage, analyzerStage entity.Stage, confidence float64) (final entity.Stage, blocked bool) {
	curOrder := cur.Order()
	llmOrder := llmStage.Order()
	analyzerOrder := analyzerStage.Order()

	if confidence >= 0.7 && analyzerOrder > curOrder {
		logger.Info("stage override: trusting analyzer over LLM",
			zap.String("current", string(cur)),
			zap.String("analyzer", string(analyzerStage)),
			zap.String("llm", string(llmStage)),
			zap.Float64("confidence", confidence),
		)
		return analyzerStage, false
	}

	if llmOrder >= curOrder {
		return llmStage, false
	}

	logger.Warn("stage regression blocked",
		zap.String("current", string(cur)),
		zap.String("llm_suggested", string(llmStage)),
	)
	return cur, true
}
