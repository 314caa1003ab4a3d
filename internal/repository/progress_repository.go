package repository

import (
	"context"
	"edu_platform_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// FindByAliases returns every record of the user stored under any of the ids.
// Callers apply their own precedence.
func (r *ProgressRepository) FindByAliases(ctx context.Context, userID string, lessonIDs []string) ([]model.LessonProgress, error) {
	if len(lessonIDs) == 0 {
		return nil, nil
	}
	var records []model.LessonProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND lesson_id IN ?", userID, lessonIDs).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Upsert writes the record for (user_id, lesson_id) in one statement.
// Status always overwrites; lateness only on a pass; display metadata only
// when non-empty so earlier values are never blanked.
func (r *ProgressRepository) Upsert(ctx context.Context, rec *model.LessonProgress, passed bool) error {
	columns := []string{"status", "updated_at"}
	if passed {
		columns = append(columns, "completed_late", "late_by_seconds", "completed_at")
	}
	if rec.LessonTitle != "" {
		columns = append(columns, "lesson_title")
	}
	if rec.TrackID != "" {
		columns = append(columns, "track_id")
	}
	if rec.TrackTitle != "" {
		columns = append(columns, "track_title")
	}

	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(rec).Error
}

type kindCount struct {
	LessonType model.LessonKind
	Total      int64
}

// CountCompletedByKind counts the user's completed records grouped by lesson type.
func (r *ProgressRepository) CountCompletedByKind(ctx context.Context, userID string) (map[model.LessonKind]int64, error) {
	var rows []kindCount
	err := r.DB.WithContext(ctx).Model(&model.LessonProgress{}).
		Select("lesson_type, COUNT(*) AS total").
		Where("user_id = ? AND status = ?", userID, model.ProgressCompleted).
		Group("lesson_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[model.LessonKind]int64, len(rows))
	for _, row := range rows {
		counts[row.LessonType] = row.Total
	}
	return counts, nil
}
