package models

import "time"

// OrganizationModel is the tenant row; orchestrator code never references it
// directly, only its ID, but it anchors the foreign keys below.
type OrganizationModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:255;not null"`
	CreatedAt time.Time
}

func (OrganizationModel) TableName() string { return "organizations" }

// IntegrationModel binds a provider phone_number_id to an organization
// (spec §4.B resolve_integration).
type IntegrationModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	OrgID         string `gorm:"index;size:36;not null"`
	PhoneNumberID string `gorm:"uniqueIndex;size:64;not null"`
	VerifyToken   string `gorm:"size:128;not null"`
	CreatedAt     time.Time
}

func (IntegrationModel) TableName() string { return "integrations" }

// LeadModel identifies the person on the other end of a conversation.
type LeadModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	OrgID       string `gorm:"index;size:36;not null"`
	Phone       string `gorm:"index;size:32;not null"`
	DisplayName string `gorm:"size:128"`
	CreatedAt   time.Time
}

func (LeadModel) TableName() string { return "leads" }

// ConversationModel is the central aggregate row (spec §3).
type ConversationModel struct {
	ID                       string `gorm:"primaryKey;size:36"`
	OrgID                    string `gorm:"index;size:36;not null"`
	LeadID                   string `gorm:"index;size:36;not null"`
	Mode                     string `gorm:"size:16;not null"`
	Stage                    string `gorm:"size:32;not null"`
	IntentLevel              string `gorm:"size:16;not null"`
	Sentiment                string `gorm:"size:16;not null"`
	RollingSummary           string `gorm:"type:text"`
	NeedsHumanAttention      bool
	HumanAttentionResolvedAt *time.Time
	LastUserMessageAt        *time.Time
	LastBotMessageAt         *time.Time
	FollowupCount24h         int
	TotalNudges              int
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

func (ConversationModel) TableName() string { return "conversations" }

// ConversationMessageModel is an individual turn on a conversation's
// timeline — kept separate from the teacher's generic MessageModel because
// the field shape here (Sender/Direction enums, no content-type union) is
// domain-specific.
type ConversationMessageModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	ConversationID string `gorm:"index;size:36;not null"`
	Sender         string `gorm:"size:16;not null"`
	Direction      string `gorm:"size:16;not null"`
	Text           string `gorm:"type:text;not null"`
	ProviderMsgID  string `gorm:"size:128"`
	CreatedAt      time.Time
}

func (ConversationMessageModel) TableName() string { return "conversation_messages" }

// ScheduledActionModel is a durable follow-up ladder entry (spec §4.E).
type ScheduledActionModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	ConversationID string `gorm:"index;size:36;not null"`
	Kind           string `gorm:"size:32;not null"`
	FireAt         time.Time `gorm:"index;not null"`
	CreatedAt      time.Time `gorm:"not null"`
	Status         string    `gorm:"size:16;not null;index"`
	Reason         string    `gorm:"size:255"`
	ContextJSON    string    `gorm:"type:text"`
}

func (ScheduledActionModel) TableName() string { return "scheduled_actions" }
