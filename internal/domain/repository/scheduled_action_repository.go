package repository

import (
	"context"
	"time"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
)

// ScheduledActionRepository is the Action Scheduler's durable store (spec
// §4.B, §4.E). CancelPendingActions and ClaimDueActions are the two
// operations whose atomicity the invariants in spec §3/§8 depend on.
type ScheduledActionRepository interface {
	CreateScheduledAction(ctx context.Context, conv entity.ConversationID, kind entity.ActionKind, fireAt, createdAt time.Time, reason string, payload map[string]any) (*entity.ScheduledAction, error)

	// CancelPendingActions marks every PENDING action for conv as
	// CANCELLED and returns the count cancelled. Must be atomic relative
	// to ClaimDueActions so a concurrent timer fire cannot slip through
	// between reading and cancelling (spec §3 invariant 3, §4.E).
	CancelPendingActions(ctx context.Context, conv entity.ConversationID) (count int, err error)

	// ClaimDueActions atomically transitions up to limit PENDING actions
	// with fire_at <= now into CLAIMED (a conditional
	// status=PENDING→CLAIMED update) and returns them. At-most-once
	// firing depends entirely on this being a single atomic operation
	// (spec §4.E, §5, §8 invariant 5).
	ClaimDueActions(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledAction, error)

	DeleteScheduledAction(ctx context.Context, id entity.ScheduledID) error

	// CountPending reports the PENDING ladder size for a conversation,
	// used by tests asserting spec §8 invariant 1/2.
	CountPending(ctx context.Context, conv entity.ConversationID) (int, error)
}
