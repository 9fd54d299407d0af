package operator

import (
	"context"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"github.com/ngoclaw/orchestrator/internal/infrastructure/eventbus"
)

// Publisher implements orchestrator.EventPublisher by publishing onto the
// shared eventbus.Bus and broadcasting to connected operator sockets. The
// Hub subscribes to the bus itself so any future subscriber (e.g. an audit
// log) can listen without the orchestrator knowing about the websocket
// layer at all.
type Publisher struct {
	bus eventbus.Bus
}

func NewPublisher(bus eventbus.Bus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) PublishMessageCreated(ctx context.Context, conv *entity.Conversation, msg *entity.Message) {
	p.bus.Publish(ctx, eventbus.NewEvent(eventbus.EventMessageCreated, eventbus.MessageCreatedPayload{
		OrganizationID: conv.OrgID().String(),
		ConversationID: conv.ID().String(),
		MessageID:      msg.ID().String(),
		Sender:         string(msg.Sender()),
		Direction:      string(msg.Direction()),
		Text:           msg.Text(),
	}))
}

func (p *Publisher) PublishConversationUpdated(ctx context.Context, conv *entity.Conversation) {
	p.bus.Publish(ctx, eventbus.NewEvent(eventbus.EventConversationUpdated, eventbus.ConversationUpdatedPayload{
		OrganizationID: conv.OrgID().String(),
		ConversationID: conv.ID().String(),
		Stage:          string(conv.Stage()),
		Mode:           string(conv.Mode()),
		IntentLevel:    string(conv.IntentLevel()),
		Sentiment:      string(conv.Sentiment()),
	}))
}

func (p *Publisher) PublishAttentionRaised(ctx context.Context, conv *entity.Conversation, reason string) {
	p.bus.Publish(ctx, eventbus.NewEvent(eventbus.EventAttentionRaised, eventbus.AttentionRaisedPayload{
		OrganizationID: conv.OrgID().String(),
		ConversationID: conv.ID().String(),
		Reason:         reason,
	}))
}

func (p *Publisher) PublishAttentionResolved(ctx context.Context, conv *entity.Conversation) {
	p.bus.Publish(ctx, eventbus.NewEvent(eventbus.EventAttentionResolved, eventbus.AttentionResolvedPayload{
		OrganizationID: conv.OrgID().String(),
		ConversationID: conv.ID().String(),
	}))
}

// SubscribeHub wires hub to receive every conversation event published on
// bus, converting each into an operator.EventMessage for broadcast.
func SubscribeHub(bus eventbus.Bus, hub *Hub) {
	forward := func(eventType string) eventbus.Handler {
		return func(ctx context.Context, event eventbus.Event) {
			orgID := orgIDFromPayload(event.Payload())
			if orgID == "" {
				return
			}
			hub.Broadcast(EventMessage{
				Type:    eventType,
				OrgID:   orgID,
				Payload: payloadToMap(event.Payload()),
			})
		}
	}
	bus.Subscribe(eventbus.EventMessageCreated, forward(eventbus.EventMessageCreated))
	bus.Subscribe(eventbus.EventConversationUpdated, forward(eventbus.EventConversationUpdated))
	bus.Subscribe(eventbus.EventAttentionRaised, forward(eventbus.EventAttentionRaised))
	bus.Subscribe(eventbus.EventAttentionResolved, forward(eventbus.EventAttentionResolved))
}

func orgIDFromPayload(payload any) string {
	switch p := payload.(type) {
	case eventbus.MessageCreatedPayload:
		return p.OrganizationID
	case eventbus.ConversationUpdatedPayload:
		return p.OrganizationID
	case eventbus.AttentionRaisedPayload:
		return p.OrganizationID
	case eventbus.AttentionResolvedPayload:
		return p.OrganizationID
	default:
		return ""
	}
}

func payloadToMap(payload any) map[string]any {
	switch p := payload.(type) {
	case eventbus.MessageCreatedPayload:
		return map[string]any{"conversation_id": p.ConversationID, "message_id": p.MessageID, "sender": p.Sender, "direction": p.Direction, "text": p.Text}
	case eventbus.ConversationUpdatedPayload:
		return map[string]any{"conversation_id": p.ConversationID, "stage": p.Stage, "mode": p.Mode, "intent_level": p.IntentLevel, "sentiment": p.Sentiment}
	case eventbus.AttentionRaisedPayload:
		return map[string]any{"conversation_id": p.ConversationID, "reason": p.Reason}
	case eventbus.AttentionResolvedPayload:
		return map[string]any{"conversation_id": p.ConversationID}
	default:
		return nil
	}
}
