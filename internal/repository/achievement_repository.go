package repository

import (
	"context"
	"edu_platform_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository struct {
	DB *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: db}
}

func (r *AchievementRepository) Exists(ctx context.Context, userID, achievementID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Count(&count).Error
	return count > 0, err
}

// Grant inserts the grant unless it already exists and reports whether a row
// was written. The unique index settles concurrent grants.
func (r *AchievementRepository) Grant(ctx context.Context, grant *model.UserAchievement) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(grant)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *AchievementRepository) FindByUserID(ctx context.Context, userID string) ([]model.UserAchievement, error) {
	var grants []model.UserAchievement
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("unlocked_at asc").Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}
