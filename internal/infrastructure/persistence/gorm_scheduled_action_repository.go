package persistence

import (
	"context"
	"time"

	"github.com/ngoclaw/orchestrator/internal/domain/entity"
	"github.com/ngoclaw/orchestrator/internal/domain/repository"
	"github.com/ngoclaw/orchestrator/internal/infrastructure/persistence/models"
	"github.com/ngoclaw/orchestrator/pkg/apperrors"
	"gorm.io/gorm"
)

// GormScheduledActionRepository backs the Action Scheduler (spec §4.E).
// CancelPendingActions is a single conditional UPDATE statement;
// ClaimDueActions guards each claimed row with its own conditional UPDATE,
// so at-most-once firing holds under concurrent pollers without row-level
// application locking.
type GormScheduledActionRepository struct {
	db *gorm.DB
}

func NewGormScheduledActionRepository(db *gorm.DB) repository.ScheduledActionRepository {
	return &GormScheduledActionRepository{db: db}
}

func (r *GormScheduledActionRepository) CreateScheduledAction(ctx context.Context, conv entity.ConversationID, kind entity.ActionKind, fireAt, createdAt time.Time, reason string, payload map[string]any) (*entity.ScheduledAction, error) {
	action := entity.NewScheduledAction(entity.NewScheduledID(), conv, kind, fireAt, createdAt, reason, payload)
	row := models.ScheduledActionModel{
		ID: action.ID().String(), ConversationID: conv.String(), Kind: string(kind),
		FireAt: fireAt, CreatedAt: createdAt, Status: string(entity.ActionPending), Reason: reason,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "create scheduled action", err)
	}
	return action, nil
}

func (r *GormScheduledActionRepository) CancelPendingActions(ctx context.Context, conv entity.ConversationID) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ScheduledActionModel{}).
		Where("conversation_id = ? AND status = ?", conv.String(), string(entity.ActionPending)).
		Update("status", string(entity.ActionCancelled))
	if result.Error != nil {
		return 0, apperrors.Wrap(apperrors.CodePersistence, "cancel pending actions", result.Error)
	}
	return int(result.RowsAffected), nil
}

// ClaimDueActions, inside one transaction, selects up to limit due PENDING
// rows ordered by fire_at, then transitions each to CLAIMED with an
// UPDATE ... WHERE id=? AND status='PENDING'. A row whose update affects no
// rows was claimed by another poller and is dropped from the result, so two
// concurrent pollers can only ever have one win each row (spec §4.E,
// §8 invariant 5).
func (r *GormScheduledActionRepository) ClaimDueActions(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledAction, error) {
	var rows []models.ScheduledActionModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("status = ? AND fire_at <= ?", string(entity.ActionPending), now).
			Order("fire_at asc").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			res := tx.Model(&models.ScheduledActionModel{}).
				Where("id = ? AND status = ?", rows[i].ID, string(entity.ActionPending)).
				Update("status", string(entity.ActionClaimed))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				rows[i].ID = "" // lost the race to another poller; drop below
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistence, "claim due actions", err)
	}

	actions := make([]*entity.ScheduledAction, 0, len(rows))
	for _, m := range rows {
		if m.ID == "" {
			continue
		}
		action, convErr := toScheduledActionEntity(&m)
		if convErr != nil {
			continue
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func (r *GormScheduledActionRepository) DeleteScheduledAction(ctx context.Context, id entity.ScheduledID) error {
	if err := r.db.WithContext(ctx).Delete(&models.ScheduledActionModel{}, "id = ?", id.String()).Error; err != nil {
		return apperrors.Wrap(apperrors.CodePersistence, "delete scheduled action", err)
	}
	return nil
}

func (r *GormScheduledActionRepository) CountPending(ctx context.Context, conv entity.ConversationID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ScheduledActionModel{}).
		Where("conversation_id = ? AND status = ?", conv.String(), string(entity.ActionPending)).
		Count(&count).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodePersistence, "count pending", err)
	}
	return int(count), nil
}

func toScheduledActionEntity(m *models.ScheduledActionModel) (*entity.ScheduledAction, error) {
	id, err := entity.ParseScheduledID(m.ID)
	if err != nil {
		return nil, err
	}
	convID, err := entity.ParseConversationID(m.ConversationID)
	if err != nil {
		return nil, err
	}
	return entity.HydrateScheduledAction(id, convID, entity.ActionKind(m.Kind), m.FireAt, m.CreatedAt, entity.ActionStatus(m.Status), m.Reason, nil), nil
}
