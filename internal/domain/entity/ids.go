package entity

import "github.com/google/uuid"

type (
	OrganizationID  uuid.UUID
	LeadID          uuid.UUID
	ConversationID  uuid.UUID
	MessageID       uuid.UUID
	ScheduledID     uuid.UUID
	IntegrationID   uuid.UUID
)

func NewOrganizationID() OrganizationID { return OrganizationID(uuid.New()) }
func NewLeadID() LeadID                 { return LeadID(uuid.New()) }
func NewConversationID() ConversationID { return ConversationID(uuid.New()) }
func NewMessageID() MessageID           { return MessageID(uuid.New()) }
func NewScheduledID() ScheduledID       { return ScheduledID(uuid.New()) }
func NewIntegrationID() IntegrationID   { return IntegrationID(uuid.New()) }

func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id LeadID) String() string         { return uuid.UUID(id).String() }
func (id ConversationID) String() string { return uuid.UUID(id).String() }
func (id MessageID) String() string      { return uuid.UUID(id).String() }
func (id ScheduledID) String() string    { return uuid.UUID(id).String() }
func (id IntegrationID) String() string  { return uuid.UUID(id).String() }

func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := uuid.Parse(s)
	return OrganizationID(u), err
}

func ParseConversationID(s string) (ConversationID, error) {
	u, err := uuid.Parse(s)
	return ConversationID(u), err
}

func ParseLeadID(s string) (LeadID, error) {
	u, err := uuid.Parse(s)
	return LeadID(u), err
}

func ParseMessageID(s string) (MessageID, error) {
	u, err := uuid.Parse(s)
	return MessageID(u), err
}

func ParseScheduledID(s string) (ScheduledID, error) {
	u, err := uuid.Parse(s)
	return ScheduledID(u), err
}

func ParseIntegrationID(s string) (IntegrationID, error) {
	u, err := uuid.Parse(s)
	return IntegrationID(u), err
}
