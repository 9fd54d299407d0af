package scheduler

import (
	"testing"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
)

func TestSuppressed(t *testing.T) {
	tests := []struct {
		name                string
		mode                entity.Mode
		needsHumanAttention bool
		stage               entity.Stage
		want                bool
	}{
		{"bot mode, mid-funnel stage", entity.ModeBot, false, entity.StagePricing, false},
		{"human mode always suppressed", entity.ModeHuman, false, entity.StageGreeting, true},
		{"needs attention always suppressed", entity.ModeBot, true, entity.StageGreeting, true},
		{"closed stage suppressed", entity.ModeBot, false, entity.StageClosed, true},
		{"lost stage suppressed", entity.ModeBot, false, entity.StageLost, true},
		{"ghosted stage suppressed", entity.ModeBot, false, entity.StageGhosted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Suppressed(tt.mode, tt.needsHumanAttention, tt.stage); got != tt.want {
				t.Errorf("Suppressed(%v, %v, %v) = %v, want %v", tt.mode, tt.needsHumanAttention, tt.stage, got, tt.want)
			}
		})
	}
}
