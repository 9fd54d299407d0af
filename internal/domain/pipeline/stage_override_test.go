package pipeline

import (
	"testing"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"go.uber.org/zap"
)

func TestResolveStage(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		cur        entity.Stage
		llm        entity.Stage
		analyzer   entity.Stage
		confidence float64
		wantStage  entity.Stage
		wantBlock  bool
	}{
		{
			name:       "analyzer override wins on high confidence forward move",
			cur:        entity.StageGreeting,
			llm:        entity.StageGreeting,
			analyzer:   entity.StagePricing,
			confidence: 0.9,
			wantStage:  entity.StagePricing,
			wantBlock:  false,
		},
		{
			name:       "llm forward move accepted when analyzer doesn't override",
			cur:        entity.StageGreeting,
			llm:        entity.StageQualification,
			analyzer:   entity.StageGreeting,
			confidence: 0.5,
			wantStage:  entity.StageQualification,
			wantBlock:  false,
		},
		{
			name:       "llm regression blocked, current stage kept",
			cur:        entity.StagePricing,
			llm:        entity.StageGreeting,
			analyzer:   entity.StagePricing,
			confidence: 0.9,
			wantStage:  entity.StagePricing,
			wantBlock:  true,
		},
		{
			name:       "low confidence analyzer cannot override even if forward",
			cur:        entity.StageGreeting,
			llm:        entity.StageQualification,
			analyzer:   entity.StagePricing,
			confidence: 0.4,
			wantStage:  entity.StageQualification,
			wantBlock:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotStage, gotBlocked := ResolveStage(logger, tt.cur, tt.llm, tt.analyzer, tt.confidence)
			if gotStage != tt.wantStage || gotBlocked != tt.wantBlock {
				t.Errorf("ResolveStage(%v, %v, %v, %v) = (%v, %v), want (%v, %v)",
					tt.cur, tt.llm, tt.analyzer, tt.confidence, gotStage, gotBlocked, tt.wantStage, tt.wantBlock)
			}
		})
	}
}
