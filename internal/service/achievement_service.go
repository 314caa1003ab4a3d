package service

import (
	"context"
	"edu_platform_backend/internal/achievement"
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/util"
	"edu_platform_backend/pkg/monitoring"
	"edu_platform_backend/pkg/tracing"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type AchievementService struct {
	registry        *achievement.Registry
	progressRepo    *repository.ProgressRepository
	achievementRepo *repository.AchievementRepository
	trackRepo       *repository.TrackRepository
	contentRepo     *repository.ContentRepository
	resolver        *StatusResolver
	logger          *zap.Logger
	Now             func() time.Time
}

func NewAchievementService(
	registry *achievement.Registry,
	progressRepo *repository.ProgressRepository,
	achievementRepo *repository.AchievementRepository,
	trackRepo *repository.TrackRepository,
	contentRepo *repository.ContentRepository,
	resolver *StatusResolver,
	logger *zap.Logger,
) *AchievementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AchievementService{
		registry:        registry,
		progressRepo:    progressRepo,
		achievementRepo: achievementRepo,
		trackRepo:       trackRepo,
		contentRepo:     contentRepo,
		resolver:        resolver,
		logger:          logger,
		Now:             time.Now,
	}
}

// CheckAndAward recomputes the learner's counters, grants every satisfied
// achievement not yet held and returns the new ids in registry order. Every
// definition is evaluated regardless of the triggering kind.
func (s *AchievementService) CheckAndAward(ctx context.Context, userID string, kind model.LessonKind, passed bool) ([]string, error) {
	if !passed {
		return nil, nil
	}
	ctx, span := tracing.StartSpan(ctx, "AchievementService.CheckAndAward",
		attribute.String("user.id", userID),
		attribute.String("lesson.kind", string(kind)))
	defer span.End()

	counters, err := s.Counters(ctx, userID)
	if err != nil {
		return nil, err
	}

	var unlocked []string
	for _, def := range s.registry.Definitions() {
		if !def.Satisfied(counters) {
			continue
		}
		held, err := s.achievementRepo.Exists(ctx, userID, def.ID)
		if err != nil {
			return unlocked, fmt.Errorf("check achievement %s: %w", def.ID, err)
		}
		if held {
			continue
		}
		created, err := s.achievementRepo.Grant(ctx, &model.UserAchievement{
			UserID:        userID,
			AchievementID: def.ID,
			UnlockedAt:    s.Now().UTC(),
		})
		if err != nil {
			return unlocked, fmt.Errorf("grant achievement %s: %w", def.ID, err)
		}
		if !created {
			continue
		}
		monitoring.AchievementGrants.WithLabelValues(def.ID).Inc()
		s.logger.Info("achievement unlocked",
			zap.String("user_id", userID),
			zap.String("achievement_id", def.ID))
		unlocked = append(unlocked, def.ID)
	}
	return unlocked, nil
}

// Rescan re-evaluates every definition for a learner outside a completion.
func (s *AchievementService) Rescan(ctx context.Context, userID string) ([]string, error) {
	return s.CheckAndAward(ctx, userID, "", true)
}

// Counters builds a fresh snapshot of the learner's aggregates.
func (s *AchievementService) Counters(ctx context.Context, userID string) (achievement.Counters, error) {
	byKind, err := s.progressRepo.CountCompletedByKind(ctx, userID)
	if err != nil {
		return nil, err
	}
	counters := achievement.Counters{
		achievement.CounterLectures: byKind[model.KindLecture],
		achievement.CounterTasks:    byKind[model.KindTask],
		achievement.CounterPuzzles:  byKind[model.KindPuzzle],
	}
	if s.registry.Uses(achievement.CounterLecturesWithQuestions) {
		n, err := s.countLecturesWithQuestions(ctx, userID)
		if err != nil {
			return nil, err
		}
		counters[achievement.CounterLecturesWithQuestions] = n
	}
	return counters, nil
}

// countLecturesWithQuestions walks every track's lectures and counts the
// distinct ones that have sub-questions and resolve as done.
func (s *AchievementService) countLecturesWithQuestions(ctx context.Context, userID string) (int64, error) {
	tracks, err := s.trackRepo.List(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{})
	var count int64
	for i := range tracks {
		for _, ref := range tracks[i].LessonRefs() {
			if ref.Type != model.KindLecture {
				continue
			}
			lecture, err := s.contentRepo.FindLecture(ctx, ref.ID)
			if errors.Is(err, util.ErrContentNotFound) {
				continue
			}
			if err != nil {
				return 0, err
			}
			if _, dup := seen[lecture.ID]; dup {
				continue
			}
			seen[lecture.ID] = struct{}{}
			if len(lecture.SubQuestions()) == 0 {
				continue
			}
			res, err := s.resolver.ResolveContent(ctx, userID, lecture)
			if err != nil {
				return 0, err
			}
			if res.Status.Done() {
				count++
			}
		}
	}
	return count, nil
}

// AchievementView is a registry entry joined with the learner's grant.
type AchievementView struct {
	achievement.Definition
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
}

func (s *AchievementService) UserAchievements(ctx context.Context, userID string) ([]AchievementView, error) {
	grants, err := s.achievementRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]time.Time, len(grants))
	for _, g := range grants {
		byID[g.AchievementID] = g.UnlockedAt
	}
	defs := s.registry.Definitions()
	views := make([]AchievementView, 0, len(defs))
	for _, def := range defs {
		view := AchievementView{Definition: def}
		if at, ok := byID[def.ID]; ok {
			view.Unlocked = true
			view.UnlockedAt = model.AsUTC(&at)
		}
		views = append(views, view)
	}
	return views, nil
}
