// Package repository declares the Persistence Port (spec §4.B): the narrow
// interface set the orchestrator depends on. Implementations live in
// internal/infrastructure/persistence — dependency inversion, domain layer
// defines the contract, infrastructure layer satisfies it.
package repository

import (
	"context"
	"time"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
)

// ConversationRepository covers conversation and lead lifecycle plus
// message append/read, exactly the subset of spec §4.B operations that
// center on the Conversation aggregate.
type ConversationRepository interface {
	ResolveIntegration(ctx context.Context, phoneNumberID string) (*entity.Integration, error)

	// GetIntegrationForOrg resolves the sending phone_number_id for org,
	// used by the outbound dispatcher to address a reply (spec §4.G).
	GetIntegrationForOrg(ctx context.Context, orgID entity.OrganizationID) (*entity.Integration, error)
	UpsertLead(ctx context.Context, orgID entity.OrganizationID, phone, name string) (*entity.Lead, error)
	GetLead(ctx context.Context, id entity.LeadID) (*entity.Lead, error)

	// GetOrCreateConversation returns the existing conversation for
	// (org, lead) or creates one lazily on first inbound message.
	GetOrCreateConversation(ctx context.Context, orgID entity.OrganizationID, leadID entity.LeadID) (conv *entity.Conversation, created bool, err error)

	// UpdateConversation applies patch atomically and returns the updated row.
	UpdateConversation(ctx context.Context, id entity.ConversationID, patch entity.Patch) (*entity.Conversation, error)

	GetConversation(ctx context.Context, id entity.ConversationID) (*entity.Conversation, error)

	AppendMessage(ctx context.Context, conv entity.ConversationID, sender entity.Sender, direction entity.Direction, text string, at time.Time) (*entity.Message, error)

	// ListRecentMessages returns the n most recent messages, oldest-first
	// (spec §4.D requires oldest-first for context assembly).
	ListRecentMessages(ctx context.Context, conv entity.ConversationID, n int) ([]*entity.Message, error)
}
