package orchestrator

import (
	"context"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
)

// Receipt is what a successful dispatch hands back — the transport's
// message identifier, recorded alongside the outbound message row.
type Receipt struct {
	ProviderMessageID string
}

// Sender is the outbound dispatch port (spec §4.G). Kept narrow here so the
// orchestrator has no import dependency on the transport adapter.
type Sender interface {
	Send(ctx context.Context, conv *entity.Conversation, lead *entity.Lead, text string) (Receipt, error)
}

// EventPublisher is the operator event bus port (spec §4.H).
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, conv *entity.Conversation, msg *entity.Message)
	PublishConversationUpdated(ctx context.Context, conv *entity.Conversation)
	PublishAttentionRaised(ctx context.Context, conv *entity.Conversation, reason string)
	PublishAttentionResolved(ctx context.Context, conv *entity.Conversation)
}
