package orchestrator

import (
	"context"
	"time"

	"github.com/ngoclaw/orchestrator/internal/domain/contextbuilder"
	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"github.com/ngoclaw/orchestrator/internal/domain/pipeline"
	"github.com/ngoclaw/orchestrator/internal/domain/repository"
	"github.com/ngoclaw/orchestrator/internal/domain/scheduler"
	"go.uber.org/zap"
)

// UserMessage is an inbound event from the transport gateway (spec §4.F).
type UserMessage struct {
	PhoneNumberID string
	From          string
	FromName      string
	Text          string
	At            time.Time
}

// Orchestrator is the core state machine. One instance is shared across all
// conversations; per-conversation serialisation is provided by the lane
// registry, not by locking the Orchestrator itself.
type Orchestrator struct {
	conversations repository.ConversationRepository
	actions       repository.ScheduledActionRepository
	ladder        *scheduler.Ladder
	pipeline      *pipeline.Pipeline
	sender        Sender
	events        EventPublisher
	business      contextbuilder.Business
	constraints   contextbuilder.Constraints
	logger        *zap.Logger

	lanes *laneRegistry
}

func New(
	conversations repository.ConversationRepository,
	actions repository.ScheduledActionRepository,
	ladder *scheduler.Ladder,
	pipe *pipeline.Pipeline,
	sender Sender,
	events EventPublisher,
	business contextbuilder.Business,
	constraints contextbuilder.Constraints,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		conversations: conversations,
		actions:       actions,
		ladder:        ladder,
		pipeline:      pipe,
		sender:        sender,
		events:        events,
		business:      business,
		constraints:   constraints,
		logger:        logger,
		lanes:         newLaneRegistry(logger),
	}
}

// HandleUserMessage implements spec §4.F's eight UserMessage steps.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, msg UserMessage) error {
	integration, err := o.conversations.ResolveIntegration(ctx, msg.PhoneNumberID)
	if err != nil {
		return err
	}
	lead, err := o.conversations.UpsertLead(ctx, integration.OrgID(), msg.From, msg.FromName)
	if err != nil {
		return err
	}
	conv, _, err := o.conversations.GetOrCreateConversation(ctx, integration.OrgID(), lead.ID())
	if err != nil {
		return err
	}

	var handleErr error
	o.lanes.submit(conv.ID(), func() {
		handleErr = o.handleUserMessageInLane(ctx, conv, lead, msg)
	})
	return handleErr
}

func (o *Orchestrator) handleUserMessageInLane(ctx context.Context, conv *entity.Conversation, lead *entity.Lead, msg UserMessage) error {
	// Step 2: append the inbound message and advance the witness timestamp.
	userMsg, err := o.conversations.AppendMessage(ctx, conv.ID(), entity.SenderLead, entity.DirectionInbound, msg.Text, msg.At)
	if err != nil {
		return err
	}
	o.events.PublishMessageCreated(ctx, conv, userMsg)

	conv, err = o.conversations.UpdateConversation(ctx, conv.ID(), entity.Patch{LastUserMessageAt: &msg.At})
	if err != nil {
		return err
	}

	// Step 3: any prior ladder is now obsolete regardless of what happens next.
	if _, err := o.actions.CancelPendingActions(ctx, conv.ID()); err != nil {
		return err
	}

	// Step 4: human-driven conversations skip the pipeline entirely.
	if conv.Mode() == entity.ModeHuman {
		o.events.PublishConversationUpdated(ctx, conv)
		return nil
	}

	recent, err := o.conversations.ListRecentMessages(ctx, conv.ID(), 3)
	now := time.Now().UTC()
	in := contextbuilder.Build(conv, recent, o.business, o.constraints, now)

	// Step 5: Classify.
	classification, classifyErr := o.pipeline.Classify(ctx, in)
	if classifyErr != nil {
		o.logger.Warn("classify failed, using fallback", zap.Error(classifyErr))
	}

	// Step 6: stage-override rule, applied to a single coalesced patch.
	finalStage, blocked := pipeline.ResolveStage(o.logger, conv.Stage(), classification.Stage(conv.Stage()), classification.Stage(conv.Stage()), classification.Confidence)
	if blocked {
		o.logger.Warn("stage regression blocked in orchestrator",
			zap.String("conversation_id", conv.ID().String()),
		)
	}

	intent := entity.ParseIntentLevel(classification.IntentLevel)
	sentiment := entity.ParseSentiment(classification.UserSentiment)
	needsAttention := classification.NeedsHumanAttention || isHighRiskOrLowConfidence(classification)

	patch := entity.Patch{
		Stage:               &finalStage,
		IntentLevel:         &intent,
		Sentiment:           &sentiment,
		NeedsHumanAttention: &needsAttention,
	}

	// Step 7: branch on action.
	action := entity.ParseAction(classification.Action)
	var botMsgText string

	switch {
	case action == entity.ActionHandoffHuman || action == entity.ActionFlagAttention || needsAttention:
		conv, err = o.conversations.UpdateConversation(ctx, conv.ID(), patch)
		if err != nil {
			return err
		}
		o.events.PublishAttentionRaised(ctx, conv, classification.FollowupReason)

	case (action == entity.ActionSendNow || action == entity.ActionInitiateCTA) && classification.ShouldRespond:
		generation, genErr := o.pipeline.Generate(ctx, in, classification)
		if genErr == nil && generation.Usable() {
			// Record the outbound message before calling Send, not after:
			// a crash between a successful provider send and the append
			// would otherwise lose the only record that the message went
			// out, risking a duplicate on the next turn (spec §4.G
			// invariant 4). Recording first means the worst case is an
			// over-recorded message that was never actually delivered,
			// which is harmless next to losing delivery history.
			botMsgText = generation.MessageText
			botMsg, appendErr := o.conversations.AppendMessage(ctx, conv.ID(), entity.SenderBot, entity.DirectionOutbound, botMsgText, time.Now().UTC())
			if appendErr != nil {
				return appendErr
			}
			if _, sendErr := o.sender.Send(ctx, conv, lead, generation.MessageText); sendErr != nil {
				needsAttention = true
				patch.NeedsHumanAttention = &needsAttention
			} else {
				now := time.Now().UTC()
				patch.LastBotMessageAt = &now
				o.events.PublishMessageCreated(ctx, conv, botMsg)
			}
		}

		conv, err = o.conversations.UpdateConversation(ctx, conv.ID(), patch)
		if err != nil {
			return err
		}
		o.events.PublishConversationUpdated(ctx, conv)
		if err := o.ladder.Enrol(ctx, conv, time.Now().UTC()); err != nil {
			return err
		}

	default: // WAIT_SCHEDULE or should_respond=false
		conv, err = o.conversations.UpdateConversation(ctx, conv.ID(), patch)
		if err != nil {
			return err
		}
		o.events.PublishConversationUpdated(ctx, conv)
		if err := o.ladder.Enrol(ctx, conv, time.Now().UTC()); err != nil {
			return err
		}
	}

	// Step 8: Summarize.
	summary, _ := o.pipeline.Summarize(ctx, in, msg.Text, botMsgText)
	_, err = o.conversations.UpdateConversation(ctx, conv.ID(), entity.Patch{RollingSummary: &summary})
	return err
}

// HandleTimerFire implements spec §4.F's six TimerFire steps.
func (o *Orchestrator) HandleTimerFire(ctx context.Context, action *entity.ScheduledAction) error {
	var fireErr error
	o.lanes.submit(action.ConversationID(), func() {
		fireErr = o.handleTimerFireInLane(ctx, action)
	})
	return fireErr
}

func (o *Orchestrator) handleTimerFireInLane(ctx context.Context, action *entity.ScheduledAction) error {
	conv, err := o.conversations.GetConversation(ctx, action.ConversationID())
	if err != nil {
		return err
	}
	lead, err := o.conversations.GetLead(ctx, conv.LeadID())
	if err != nil {
		return err
	}

	// Step 2: staleness gate.
	if action.IsStale(conv.LastUserMessageAt()) {
		return o.actions.DeleteScheduledAction(ctx, action.ID())
	}

	// Step 3: suppression re-check.
	if scheduler.Suppressed(conv.Mode(), conv.NeedsHumanAttention(), conv.Stage()) {
		return o.actions.DeleteScheduledAction(ctx, action.ID())
	}

	recent, err := o.conversations.ListRecentMessages(ctx, conv.ID(), 3)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	in := contextbuilder.Build(conv, recent, o.business, o.constraints, now)

	// Step 4: Classify; only dispatch on a fresh SEND_NOW + should_respond.
	classification, classifyErr := o.pipeline.Classify(ctx, in)
	if classifyErr != nil {
		return o.actions.DeleteScheduledAction(ctx, action.ID())
	}

	var botMsgText string
	if entity.ParseAction(classification.Action) == entity.ActionSendNow && classification.ShouldRespond {
		// Re-check staleness after Classify returns: the lane forbids
		// concurrent execution but a fresh UserMessage could have already
		// run and completed before this lane job was scheduled.
		conv, err = o.conversations.GetConversation(ctx, conv.ID())
		if err != nil {
			return err
		}
		if !action.IsStale(conv.LastUserMessageAt()) {
			generation, genErr := o.pipeline.Generate(ctx, in, classification)
			if genErr == nil && generation.Usable() {
				// Record before Send, same rationale as HandleUserMessage:
				// a crash after a successful send but before the append
				// would otherwise leave no record a message went out.
				botMsgText = generation.MessageText
				botMsg, appendErr := o.conversations.AppendMessage(ctx, conv.ID(), entity.SenderBot, entity.DirectionOutbound, botMsgText, time.Now().UTC())
				if appendErr != nil {
					return appendErr
				}
				if _, sendErr := o.sender.Send(ctx, conv, lead, generation.MessageText); sendErr == nil {
					o.events.PublishMessageCreated(ctx, conv, botMsg)
					nowT := time.Now().UTC()
					nudges := 1
					if _, err := o.conversations.UpdateConversation(ctx, conv.ID(), entity.Patch{LastBotMessageAt: &nowT, TotalNudgesDelta: nudges}); err != nil {
						return err
					}
				} else {
					attention := true
					conv, err = o.conversations.UpdateConversation(ctx, conv.ID(), entity.Patch{NeedsHumanAttention: &attention})
					if err != nil {
						return err
					}
					o.events.PublishConversationUpdated(ctx, conv)
				}
			}
		}
	}

	// Step 5: never enrol a new ladder from a timer fire.
	if err := o.actions.DeleteScheduledAction(ctx, action.ID()); err != nil {
		return err
	}

	// Step 6: Summarize.
	summary, _ := o.pipeline.Summarize(ctx, in, "", botMsgText)
	_, err = o.conversations.UpdateConversation(ctx, conv.ID(), entity.Patch{RollingSummary: &summary})
	return err
}

// isHighRiskOrLowConfidence implements the HighRiskOrLowConfidence invariant
// (spec §8): confidence < 0.3 or any risk flag HIGH forces attention.
func isHighRiskOrLowConfidence(c pipeline.ClassifyResult) bool {
	if c.Confidence < 0.3 {
		return true
	}
	return c.RiskFlags.Spam == entity.RiskHigh || c.RiskFlags.Policy == entity.RiskHigh || c.RiskFlags.Hallucination == entity.RiskHigh
}
