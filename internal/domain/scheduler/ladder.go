// Package scheduler implements the follow-up ladder: durable, at-most-once
// scheduled actions backed by the Persistence Port (spec §4.E).
package scheduler

import (
	"context"
	"time"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"github.com/ngoclaw/orchestrator/internal/domain/repository"
)

// DefaultOffsets is the static three-step ladder, config-driven with this default
// (spec §4.E(1)).
var DefaultOffsets = []time.Duration{10 * time.Minute, 180 * time.Minute, 360 * time.Minute}

// Ladder enrols and suppresses the follow-up schedule for a conversation.
type Ladder struct {
	repo    repository.ScheduledActionRepository
	offsets []time.Duration
}

func NewLadder(repo repository.ScheduledActionRepository, offsets []time.Duration) *Ladder {
	if len(offsets) == 0 {
		offsets = DefaultOffsets
	}
	return &Ladder{repo: repo, offsets: offsets}
}

// Suppressed reports whether a conversation in this state must never have a
// ladder enrolled (spec §4.E(1)).
func Suppressed(mode entity.Mode, needsHumanAttention bool, stage entity.Stage) bool {
	return mode == entity.ModeHuman || needsHumanAttention || stage.IsTerminal()
}

// Enrol cancels any pending actions for conv, then — unless the conversation
// state suppresses it — enrols a fresh three-step ladder at now+offsets[i],
// each tagged with a human-readable reason. Cancellation always happens,
// even when suppression means nothing new is enrolled, because a ladder
// belonging to a now-suppressed state must never fire (spec §4.E(1)).
func (l *Ladder) Enrol(ctx context.Context, conv *entity.Conversation, now time.Time) error {
	if _, err := l.repo.CancelPendingActions(ctx, conv.ID()); err != nil {
		return err
	}

	if Suppressed(conv.Mode(), conv.NeedsHumanAttention(), conv.Stage()) {
		return nil
	}

	for i, offset := range l.offsets {
		reason := ladderReason(i, len(l.offsets))
		if _, err := l.repo.CreateScheduledAction(ctx, conv.ID(), entity.ActionKindFollowup, now.Add(offset), now, reason, nil); err != nil {
			return err
		}
	}
	return nil
}

func ladderReason(i, total int) string {
	steps := []string{"first nudge", "second nudge", "final nudge"}
	if i < len(steps) {
		return steps[i]
	}
	return "ladder step"
}
