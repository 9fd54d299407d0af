// Package contextbuilder assembles the immutable PipelineInput the LLM
// Pipeline consumes (spec §4.D).
package contextbuilder

import (
	"time"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
)

// CTA is a single available call-to-action the Generate stage may select.
type CTA struct {
	ID          string
	Label       string
	Description string
}

// Constraints bound what the Generate stage is allowed to produce.
type Constraints struct {
	MaxWords           int
	QuestionsPerMsg    int
	LanguagePreference string
}

// HistoryMessage is a single prior turn, oldest-first.
type HistoryMessage struct {
	Sender entity.Sender
	Text   string
	At     time.Time
}

// Input is the immutable bundle the Classify/Generate/Summarize stages
// receive. It is built fresh for every pipeline invocation and never
// mutated afterwards.
type Input struct {
	BusinessName        string
	BusinessDescription string
	AvailableCTAs       []CTA

	RollingSummary string
	RecentMessages []HistoryMessage // oldest-first, last K (spec §4.D K≈3)

	Stage       entity.Stage
	Mode        entity.Mode
	IntentLevel entity.IntentLevel
	Sentiment   entity.Sentiment

	Now                time.Time
	LastUserMessageAt  *time.Time
	LastBotMessageAt   *time.Time
	WhatsAppWindowOpen bool

	FollowupCount24h int
	TotalNudges      int

	Constraints Constraints
}

// WindowOpen computes the 24h reply window per spec §4.D: open iff
// now < last_user_message_at + 24h; closed when last_user_message_at is nil.
func WindowOpen(now time.Time, lastUserMessageAt *time.Time) bool {
	if lastUserMessageAt == nil {
		return false
	}
	return now.Before(lastUserMessageAt.Add(24 * time.Hour))
}

// Business describes the tenant-level identity baked into every prompt.
type Business struct {
	Name        string
	Description string
	CTAs        []CTA
}

// Build assembles an Input from the conversation's current state, its
// recent message history (already oldest-first, length <= k), and static
// business/constraint configuration.
func Build(conv *entity.Conversation, recent []*entity.Message, biz Business, constraints Constraints, now time.Time) Input {
	history := make([]HistoryMessage, 0, len(recent))
	for _, m := range recent {
		history = append(history, HistoryMessage{Sender: m.Sender(), Text: m.Text(), At: m.CreatedAt()})
	}

	return Input{
		BusinessName:        biz.Name,
		BusinessDescription: biz.Description,
		AvailableCTAs:       biz.CTAs,

		RollingSummary: conv.RollingSummary(),
		RecentMessages: history,

		Stage:       conv.Stage(),
		Mode:        conv.Mode(),
		IntentLevel: conv.IntentLevel(),
		Sentiment:   conv.Sentiment(),

		Now:                now,
		LastUserMessageAt:  conv.LastUserMessageAt(),
		LastBotMessageAt:   conv.LastBotMessageAt(),
		WhatsAppWindowOpen: WindowOpen(now, conv.LastUserMessageAt()),

		FollowupCount24h: conv.FollowupCount24h(),
		TotalNudges:      conv.TotalNudges(),

		Constraints: constraints,
	}
}
