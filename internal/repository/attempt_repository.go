package repository

import (
	"context"
	"edu_platform_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Count(ctx context.Context, userID string, kind model.LessonKind, targetID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("user_id = ? AND target_kind = ? AND target_id = ?", userID, kind, targetID).
		Count(&count).Error
	return count, err
}

func (r *AttemptRepository) Append(ctx context.Context, userID string, kind model.LessonKind, targetID string) error {
	return r.DB.WithContext(ctx).Create(&model.Attempt{
		ID:         model.GenerateUUID(),
		UserID:     userID,
		TargetKind: kind,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC(),
	}).Error
}
