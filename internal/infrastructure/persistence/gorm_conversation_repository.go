package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"github.com/ngoclaw/orchestrator/internal/domain/repository"
	"github.com/ngoclaw/orchestrator/internal/infrastructure/persistence/models"
	"github.com/ngoclaw/orchestrator/pkg/apperrors"
	"gorm.io/gorm"
)

// GormConversationRepository is the Persistence Port's conversation/lead/
// message implementation, grounded on the teacher's GormMessageRepository
// (WithContext + toModel/toEntity mapping, gorm.ErrRecordNotFound handling).
type GormConversationRepository struct {
	db *gorm.DB
}

func NewGormConversationRepository(db *gorm.DB) repository.ConversationRepository {
	return &GormConversationRepository{db: db}
}

func (r *GormConversationRepository) ResolveIntegration(ctx context.Context, phoneNumberID string) (*entity.Integration, error) {
	var m models.IntegrationModel
	err := r.db.WithContext(ctx).First(&m, "phone_number_id = ?", phoneNumberID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "no integration for phone_number_id "+phoneNumberID)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "resolve integration", err)
	}
	orgID, err := entity.ParseOrganizationID(m.OrgID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "parse org id", err)
	}
	integrationID, err := entity.ParseIntegrationID(m.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "parse integration id", err)
	}
	return entity.NewIntegration(integrationID, orgID, m.PhoneNumberID, m.VerifyToken), nil
}

func (r *GormConversationRepository) GetIntegrationForOrg(ctx context.Context, orgID entity.OrganizationID) (*entity.Integration, error) {
	var m models.IntegrationModel
	err := r.db.WithContext(ctx).First(&m, "org_id = ?", orgID.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "no integration for org "+orgID.String())
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "get integration for org", err)
	}
	integrationID, err := entity.ParseIntegrationID(m.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "parse integration id", err)
	}
	return entity.NewIntegration(integrationID, orgID, m.PhoneNumberID, m.VerifyToken), nil
}

func (r *GormConversationRepository) UpsertLead(ctx context.Context, orgID entity.OrganizationID, phone, name string) (*entity.Lead, error) {
	var m models.LeadModel
	err := r.db.WithContext(ctx).First(&m, "org_id = ? AND phone = ?", orgID.String(), phone).Error
	if err == nil {
		leadID, parseErr := entity.ParseLeadID(m.ID)
		if parseErr != nil {
			return nil, apperrors.Wrap(apperrors.CodePersistence, "parse lead id", parseErr)
		}
		return entity.NewLead(leadID, orgID, m.Phone, m.DisplayName), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "lookup lead", err)
	}

	lead := entity.NewLead(entity.NewLeadID(), orgID, phone, name)
	row := models.LeadModel{
		ID: lead.ID().String(), OrgID: orgID.String(), Phone: phone, DisplayName: name, CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "create lead", err)
	}
	return lead, nil
}

func (r *GormConversationRepository) GetLead(ctx context.Context, id entity.LeadID) (*entity.Lead, error) {
	var m models.LeadModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "lead not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "get lead", err)
	}
	orgID, err := entity.ParseOrganizationID(m.OrgID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "parse org id", err)
	}
	return entity.NewLead(id, orgID, m.Phone, m.DisplayName), nil
}

func (r *GormConversationRepository) GetOrCreateConversation(ctx context.Context, orgID entity.OrganizationID, leadID entity.LeadID) (*entity.Conversation, bool, error) {
	var m models.ConversationModel
	err := r.db.WithContext(ctx).First(&m, "org_id = ? AND lead_id = ?", orgID.String(), leadID.String()).Error
	if err == nil {
		conv, convErr := toConversationEntity(&m)
		return conv, false, convErr
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, apperrors.Wrap(apperrors.CodePersistence, "lookup conversation", err)
	}

	conv := entity.NewConversation(entity.NewConversationID(), orgID, leadID)
	row := fromConversationEntity(conv)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodePersistence, "create conversation", err)
	}
	return conv, true, nil
}

func (r *GormConversationRepository) UpdateConversation(ctx context.Context, id entity.ConversationID, patch entity.Patch) (*entity.Conversation, error) {
	var updated *entity.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.ConversationModel
		if err := tx.Set("gorm:query_option", "FOR UPDATE").First(&m, "id = ?", id.String()).Error; err != nil {
			return err
		}
		conv, err := toConversationEntity(&m)
		if err != nil {
			return err
		}
		if err := conv.ApplyPatch(patch); err != nil {
			return err
		}
		row := fromConversationEntity(conv)
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		updated = conv
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "conversation not found")
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *GormConversationRepository) GetConversation(ctx context.Context, id entity.ConversationID) (*entity.Conversation, error) {
	var m models.ConversationModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "conversation not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "get conversation", err)
	}
	return toConversationEntity(&m)
}

func (r *GormConversationRepository) AppendMessage(ctx context.Context, conv entity.ConversationID, sender entity.Sender, direction entity.Direction, text string, at time.Time) (*entity.Message, error) {
	msg, err := entity.NewMessage(entity.NewMessageID(), conv, sender, direction, text, at)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "construct message", err)
	}
	row := models.ConversationMessageModel{
		ID: msg.ID().String(), ConversationID: conv.String(), Sender: string(sender),
		Direction: string(direction), Text: text, CreatedAt: at,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "append message", err)
	}
	return msg, nil
}

func (r *GormConversationRepository) ListRecentMessages(ctx context.Context, conv entity.ConversationID, n int) ([]*entity.Message, error) {
	var rows []models.ConversationMessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conv.String()).
		Order("created_at desc").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "list recent messages", err)
	}

	messages := make([]*entity.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- { // oldest-first (spec §4.D)
		m := rows[i]
		msg := entity.HydrateMessage(
			mustParseMessageID(m.ID), conv, entity.Sender(m.Sender), entity.Direction(m.Direction),
			m.Text, m.ProviderMsgID, m.CreatedAt,
		)
		messages = append(messages, msg)
	}
	return messages, nil
}

func toConversationEntity(m *models.ConversationModel) (*entity.Conversation, error) {
	id, err := entity.ParseConversationID(m.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "parse conversation id", err)
	}
	orgID, err := entity.ParseOrganizationID(m.OrgID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "parse org id", err)
	}
	leadID, err := entity.ParseLeadID(m.LeadID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "parse lead id", err)
	}
	return entity.Hydrate(
		id, orgID, leadID,
		entity.Mode(m.Mode), entity.Stage(m.Stage), entity.IntentLevel(m.IntentLevel), entity.Sentiment(m.Sentiment),
		m.RollingSummary, m.NeedsHumanAttention, m.HumanAttentionResolvedAt,
		m.LastUserMessageAt, m.LastBotMessageAt,
		m.FollowupCount24h, m.TotalNudges,
		m.CreatedAt, m.UpdatedAt,
	), nil
}

func fromConversationEntity(c *entity.Conversation) models.ConversationModel {
	return models.ConversationModel{
		ID: c.ID().String(), OrgID: c.OrgID().String(), LeadID: c.LeadID().String(),
		Mode: string(c.Mode()), Stage: string(c.Stage()), IntentLevel: string(c.IntentLevel()), Sentiment: string(c.Sentiment()),
		RollingSummary: c.RollingSummary(), NeedsHumanAttention: c.NeedsHumanAttention(),
		HumanAttentionResolvedAt: c.HumanAttentionResolvedAt(),
		LastUserMessageAt:        c.LastUserMessageAt(), LastBotMessageAt: c.LastBotMessageAt(),
		FollowupCount24h: c.FollowupCount24h(), TotalNudges: c.TotalNudges(),
		CreatedAt: c.CreatedAt(), UpdatedAt: c.UpdatedAt(),
	}
}

func mustParseMessageID(s string) entity.MessageID {
	id, err := entity.ParseMessageID(s)
	if err != nil {
		return entity.NewMessageID()
	}
	return id
}
