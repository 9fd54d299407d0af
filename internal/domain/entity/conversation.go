package entity

import (
	"fmt"
	"time"
)

// Conversation is the central aggregate: one per (organization, lead).
// Mutations happen through ApplyPatch so that every field change the
// orchestrator makes is atomic and auditable (spec §3, §4.F failure
// semantics: "all updates coalesced in one patch").
type Conversation struct {
	id             ConversationID
	orgID          OrganizationID
	leadID         LeadID
	mode           Mode
	stage          Stage
	intentLevel    IntentLevel
	sentiment      Sentiment
	rollingSummary string

	needsHumanAttention     bool
	humanAttentionResolvedAt *time.Time

	lastUserMessageAt *time.Time
	lastBotMessageAt  *time.Time

	followupCount24h int
	totalNudges      int

	createdAt time.Time
	updatedAt time.Time
}

const maxRollingSummaryLen = 500

// NewConversation creates a conversation lazily, on first inbound message,
// in the initial GREETING/BOT/UNKNOWN/NEUTRAL state (spec §3 lifecycle).
func NewConversation(id ConversationID, orgID OrganizationID, leadID LeadID) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		id:          id,
		orgID:       orgID,
		leadID:      leadID,
		mode:        ModeBot,
		stage:       StageGreeting,
		intentLevel: IntentUnknown,
		sentiment:   SentimentNeutral,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (c *Conversation) ID() ConversationID           { return c.id }
func (c *Conversation) OrgID() OrganizationID         { return c.orgID }
func (c *Conversation) LeadID() LeadID                { return c.leadID }
func (c *Conversation) Mode() Mode                    { return c.mode }
func (c *Conversation) Stage() Stage                  { return c.stage }
func (c *Conversation) IntentLevel() IntentLevel      { return c.intentLevel }
func (c *Conversation) Sentiment() Sentiment          { return c.sentiment }
func (c *Conversation) RollingSummary() string        { return c.rollingSummary }
func (c *Conversation) NeedsHumanAttention() bool     { return c.needsHumanAttention }
func (c *Conversation) HumanAttentionResolvedAt() *time.Time { return c.humanAttentionResolvedAt }
func (c *Conversation) LastUserMessageAt() *time.Time { return c.lastUserMessageAt }
func (c *Conversation) LastBotMessageAt() *time.Time   { return c.lastBotMessageAt }
func (c *Conversation) FollowupCount24h() int          { return c.followupCount24h }
func (c *Conversation) TotalNudges() int               { return c.totalNudges }
func (c *Conversation) CreatedAt() time.Time           { return c.createdAt }
func (c *Conversation) UpdatedAt() time.Time           { return c.updatedAt }

// Patch is a field-set applied atomically by ApplyPatch / the Persistence
// Port's update_conversation. Nil fields are left unchanged.
type Patch struct {
	Mode                     *Mode
	Stage                    *Stage
	IntentLevel              *IntentLevel
	Sentiment                *Sentiment
	RollingSummary           *string
	NeedsHumanAttention      *bool
	HumanAttentionResolvedAt **time.Time
	LastUserMessageAt        *time.Time
	LastBotMessageAt         *time.Time
	FollowupCount24hDelta    int
	TotalNudgesDelta         int
}

// ApplyPatch applies a field-set in place, enforcing invariant 1 (stage
// never regresses) and truncating the rolling summary to its bound.
// Patch application never partially applies: callers build the full
// Patch before calling this once per event (spec §4.F failure semantics).
func (c *Conversation) ApplyPatch(p Patch) error {
	if p.Stage != nil {
		if p.Stage.Order() < c.stage.Order() {
			return fmt.Errorf("stage regression blocked: %s (order %d) -> %s (order %d)",
				c.stage, c.stage.Order(), *p.Stage, p.Stage.Order())
		}
		c.stage = *p.Stage
	}
	if p.Mode != nil {
		c.mode = *p.Mode
	}
	if p.IntentLevel != nil {
		c.intentLevel = *p.IntentLevel
	}
	if p.Sentiment != nil {
		c.sentiment = *p.Sentiment
	}
	if p.RollingSummary != nil {
		s := *p.RollingSummary
		if len(s) > maxRollingSummaryLen {
			s = s[:maxRollingSummaryLen]
		}
		c.rollingSummary = s
	}
	if p.NeedsHumanAttention != nil {
		// OR-merge: once raised, a patch from a less-certain code path must
		// never silently clear the flag (spec §4.F step 6).
		c.needsHumanAttention = c.needsHumanAttention || *p.NeedsHumanAttention
	}
	if p.HumanAttentionResolvedAt != nil {
		c.humanAttentionResolvedAt = *p.HumanAttentionResolvedAt
	}
	if p.LastUserMessageAt != nil {
		c.lastUserMessageAt = p.LastUserMessageAt
	}
	if p.LastBotMessageAt != nil {
		c.lastBotMessageAt = p.LastBotMessageAt
	}
	c.followupCount24h += p.FollowupCount24hDelta
	c.totalNudges += p.TotalNudgesDelta
	c.updatedAt = time.Now().UTC()
	return nil
}

// ResolveHumanAttention clears the flag. Only called from an explicit
// operator action path, never from orchestrator event handling (spec §9
// open question: operator-only resolution).
func (c *Conversation) ResolveHumanAttention(at time.Time) {
	c.needsHumanAttention = false
	t := at
	c.humanAttentionResolvedAt = &t
	c.updatedAt = time.Now().UTC()
}

// WindowOpen reports whether the 24h free-form reply window is open at now.
func (c *Conversation) WindowOpen(now time.Time) bool {
	if c.lastUserMessageAt == nil {
		return false
	}
	return now.Before(c.lastUserMessageAt.Add(24 * time.Hour))
}

// Hydrate reconstructs a Conversation from persisted fields. Used only by
// the infrastructure layer when loading rows back into domain objects.
func Hydrate(
	id ConversationID, orgID OrganizationID, leadID LeadID,
	mode Mode, stage Stage, intentLevel IntentLevel, sentiment Sentiment,
	rollingSummary string, needsHumanAttention bool, humanAttentionResolvedAt *time.Time,
	lastUserMessageAt, lastBotMessageAt *time.Time,
	followupCount24h, totalNudges int,
	createdAt, updatedAt time.Time,
) *Conversation {
	return &Conversation{
		id: id, orgID: orgID, leadID: leadID,
		mode: mode, stage: stage, intentLevel: intentLevel, sentiment: sentiment,
		rollingSummary: rollingSummary, needsHumanAttention: needsHumanAttention,
		humanAttentionResolvedAt: humanAttentionResolvedAt,
		lastUserMessageAt:        lastUserMessageAt,
		lastBotMessageAt:         lastBotMessageAt,
		followupCount24h:         followupCount24h,
		totalNudges:              totalNudges,
		createdAt:                createdAt,
		updatedAt:                updatedAt,
	}
}
