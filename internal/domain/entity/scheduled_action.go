package entity

import "time"

// ScheduledAction is a durable pending follow-up task. The set of PENDING
// actions for a conversation forms the "follow-up ladder" (spec §3).
type ScheduledAction struct {
	id             ScheduledID
	conversationID ConversationID
	kind           ActionKind
	fireAt         time.Time
	createdAt      time.Time
	status         ActionStatus
	reason         string // human-readable enrollment reason, e.g. "second nudge"
	context        map[string]any
}

func NewScheduledAction(id ScheduledID, conversationID ConversationID, kind ActionKind, fireAt, createdAt time.Time, reason string, context map[string]any) *ScheduledAction {
	return &ScheduledAction{
		id:             id,
		conversationID: conversationID,
		kind:           kind,
		fireAt:         fireAt,
		createdAt:      createdAt,
		status:         ActionPending,
		reason:         reason,
		context:        context,
	}
}

func (a *ScheduledAction) ID() ScheduledID             { return a.id }
func (a *ScheduledAction) ConversationID() ConversationID { return a.conversationID }
func (a *ScheduledAction) Kind() ActionKind             { return a.kind }
func (a *ScheduledAction) FireAt() time.Time            { return a.fireAt }
func (a *ScheduledAction) CreatedAt() time.Time         { return a.createdAt }
func (a *ScheduledAction) Status() ActionStatus         { return a.status }
func (a *ScheduledAction) Reason() string               { return a.reason }
func (a *ScheduledAction) Context() map[string]any      { return a.context }

// IsStale reports whether the action predates the conversation's most
// recent user message and must be discarded without side effects
// (spec §3 invariant 5, §4.E staleness gate).
func (a *ScheduledAction) IsStale(lastUserMessageAt *time.Time) bool {
	if lastUserMessageAt == nil {
		return false
	}
	return a.createdAt.Before(*lastUserMessageAt)
}

func HydrateScheduledAction(id ScheduledID, conversationID ConversationID, kind ActionKind, fireAt, createdAt time.Time, status ActionStatus, reason string, context map[string]any) *ScheduledAction {
	return &ScheduledAction{
		id: id, conversationID: conversationID, kind: kind, fireAt: fireAt,
		createdAt: createdAt, status: status, reason: reason, context: context,
	}
}
