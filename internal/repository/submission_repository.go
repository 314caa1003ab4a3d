package repository

import (
	"context"
	"edu_platform_backend/internal/model"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubmissionRepository struct {
	DB *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{DB: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

// Latest returns the user's most recent submission for any of the task ids, or nil.
func (r *SubmissionRepository) Latest(ctx context.Context, userID string, taskIDs []string) (*model.Submission, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	var s model.Submission
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND task_id IN ?", userID, taskIDs).
		Order("created_at desc").
		Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type SurveyResponseRepository struct {
	DB *gorm.DB
}

func NewSurveyResponseRepository(db *gorm.DB) *SurveyResponseRepository {
	return &SurveyResponseRepository{DB: db}
}

// Save stores the answer, replacing an earlier one from the same user.
func (r *SurveyResponseRepository) Save(ctx context.Context, resp *model.SurveyResponse) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "survey_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"answer", "updated_at"}),
	}).Create(resp).Error
}

func (r *SurveyResponseRepository) Find(ctx context.Context, surveyID, userID string) (*model.SurveyResponse, error) {
	var resp model.SurveyResponse
	err := r.DB.WithContext(ctx).Where("survey_id = ? AND user_id = ?", surveyID, userID).Take(&resp).Error
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
