package service

import (
	"context"
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/pkg/monitoring"
	"edu_platform_backend/pkg/tracing"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AchievementChecker scans a learner's history after a completion.
type AchievementChecker interface {
	CheckAndAward(ctx context.Context, userID string, kind model.LessonKind, passed bool) ([]string, error)
}

// RecordInput describes one verification outcome.
type RecordInput struct {
	UserID         string
	LessonID       string
	Kind           model.LessonKind
	Passed         bool
	Title          string
	TrackID        string
	TrackTitle     string
	AvailableUntil *time.Time
}

type RecordResult struct {
	Status        model.ProgressStatus `json:"status"`
	CompletedLate bool                 `json:"completedLate"`
	LateBySeconds int64                `json:"lateBySeconds"`
	Unlocked      []string             `json:"unlockedAchievements,omitempty"`
}

// achievementKinds are the lesson kinds whose completion triggers a scan.
var achievementKinds = map[model.LessonKind]bool{
	model.KindLecture: true,
	model.KindTask:    true,
	model.KindPuzzle:  true,
	model.KindSurvey:  true,
}

// ProgressService is the only writer of progress records.
type ProgressService struct {
	progressRepo *repository.ProgressRepository
	achievements AchievementChecker
	retrier      retry.Retry[struct{}]
	logger       *zap.Logger
	Now          func() time.Time
}

func NewProgressService(progressRepo *repository.ProgressRepository, achievements AchievementChecker, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{
		progressRepo: progressRepo,
		achievements: achievements,
		retrier: retry.New[struct{}](retry.Config{
			MaxAttempts:   2,
			InitialDelay:  50 * time.Millisecond,
			MaxDelay:      200 * time.Millisecond,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			IsRetryable: func(err error) bool {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			},
		}),
		logger: logger,
		Now:    time.Now,
	}
}

// Lateness compares a completion instant with the closing bound. A bound
// without zone information is read as UTC.
func Lateness(now time.Time, until *time.Time) (bool, int64) {
	bound := model.AsUTC(until)
	if bound == nil {
		return false, 0
	}
	over := now.UTC().Sub(*bound)
	if over <= 0 {
		return false, 0
	}
	return true, int64(over / time.Second)
}

// Record upserts the learner's progress and, on a qualifying pass, runs the
// achievement scan. The scan cannot fail the write.
func (s *ProgressService) Record(ctx context.Context, in RecordInput) (*RecordResult, error) {
	if in.UserID == "" || in.LessonID == "" {
		return nil, fmt.Errorf("record progress: user and lesson id are required")
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("record progress: invalid lesson kind %q", in.Kind)
	}

	ctx, span := tracing.StartSpan(ctx, "ProgressService.Record",
		attribute.String("lesson.id", in.LessonID),
		attribute.String("lesson.kind", string(in.Kind)),
		attribute.Bool("passed", in.Passed))
	defer span.End()

	now := s.Now().UTC()
	rec := &model.LessonProgress{
		UserID:      in.UserID,
		LessonID:    in.LessonID,
		LessonType:  in.Kind,
		Status:      model.ProgressStarted,
		LessonTitle: in.Title,
		TrackID:     in.TrackID,
		TrackTitle:  in.TrackTitle,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Passed {
		rec.Status = model.ProgressCompleted
		rec.CompletedLate, rec.LateBySeconds = Lateness(now, in.AvailableUntil)
		rec.CompletedAt = &now
	}

	_, err := s.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.progressRepo.Upsert(ctx, rec, in.Passed)
	})
	if err != nil {
		return nil, fmt.Errorf("record progress %s: %w", in.LessonID, err)
	}
	monitoring.ProgressWrites.WithLabelValues(string(in.Kind), string(rec.Status)).Inc()

	result := &RecordResult{
		Status:        rec.Status,
		CompletedLate: rec.CompletedLate,
		LateBySeconds: rec.LateBySeconds,
	}
	if in.Passed && achievementKinds[in.Kind] {
		result.Unlocked = s.awardBestEffort(ctx, in.UserID, in.Kind)
	}
	return result, nil
}

// awardBestEffort is the single boundary where achievement failures are
// logged and dropped.
func (s *ProgressService) awardBestEffort(ctx context.Context, userID string, kind model.LessonKind) (unlocked []string) {
	if s.achievements == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			monitoring.AchievementFailures.Inc()
			s.logger.Error("achievement scan panicked",
				zap.String("user_id", userID),
				zap.Any("panic", p))
			unlocked = nil
		}
	}()

	unlocked, err := s.achievements.CheckAndAward(ctx, userID, kind, true)
	if err != nil {
		monitoring.AchievementFailures.Inc()
		s.logger.Warn("achievement scan failed",
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil
	}
	return unlocked
}
