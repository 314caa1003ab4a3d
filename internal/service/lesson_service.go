package service

import (
	"context"
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/util"
	"edu_platform_backend/pkg/tracing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// LessonService serves the read models built on the status resolver.
type LessonService struct {
	contentRepo *repository.ContentRepository
	trackRepo   *repository.TrackRepository
	resolver    *StatusResolver
	logger      *zap.Logger
	Now         func() time.Time
}

func NewLessonService(contentRepo *repository.ContentRepository, trackRepo *repository.TrackRepository, resolver *StatusResolver, logger *zap.Logger) *LessonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonService{
		contentRepo: contentRepo,
		trackRepo:   trackRepo,
		resolver:    resolver,
		logger:      logger,
		Now:         time.Now,
	}
}

type LessonProgressView struct {
	ID            string           `json:"id"`
	Type          model.LessonKind `json:"type"`
	Title         string           `json:"title"`
	Order         int              `json:"order"`
	Status        LessonStatus     `json:"status"`
	LateBySeconds int64            `json:"lateBySeconds"`
}

type TrackProgressView struct {
	TrackID   string               `json:"trackId"`
	Title     string               `json:"title"`
	Lessons   []LessonProgressView `json:"lessons"`
	Completed int                  `json:"completed"`
	Total     int                  `json:"total"`
}

// TrackProgress lists a track's lessons in order with their derived status.
// Titles come from the track's own snapshot.
func (s *LessonService) TrackProgress(ctx context.Context, learner Learner, trackID string) (*TrackProgressView, error) {
	ctx, span := tracing.StartSpan(ctx, "LessonService.TrackProgress", attribute.String("track.id", trackID))
	defer span.End()

	track, err := s.trackRepo.FindByID(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if !learner.CanSeeGroups(track.GroupIDs()) {
		return nil, util.ErrContentHidden
	}

	refs := track.LessonRefs()
	view := &TrackProgressView{
		TrackID: track.DisplayID(),
		Title:   track.Title,
		Lessons: make([]LessonProgressView, 0, len(refs)),
		Total:   len(refs),
	}
	for _, ref := range refs {
		displayID, err := s.contentRepo.DisplayID(ctx, ref.Type, ref.ID)
		if err != nil {
			return nil, err
		}
		res, err := s.resolver.Resolve(ctx, learner.ID, ref, displayID)
		if err != nil {
			return nil, err
		}
		if res.Status.Done() {
			view.Completed++
		}
		view.Lessons = append(view.Lessons, LessonProgressView{
			ID:            displayID,
			Type:          ref.Type,
			Title:         ref.Title,
			Order:         ref.Order,
			Status:        res.Status,
			LateBySeconds: res.LateBySeconds,
		})
	}
	return view, nil
}

type OrphanLesson struct {
	ID             string           `json:"id"`
	Type           model.LessonKind `json:"type"`
	Title          string           `json:"title"`
	Hard           *bool            `json:"hard,omitempty"`
	AvailableFrom  *string          `json:"available_from"`
	AvailableUntil *string          `json:"available_until"`
	Status         LessonStatus     `json:"status"`
	LateBySeconds  int64            `json:"lateBySeconds"`
	CompletedAt    *string          `json:"completedAt,omitempty"`
}

type OrphanLessonsView struct {
	Lessons []OrphanLesson `json:"lessons"`
	Overdue []OrphanLesson `json:"overdue"`
}

// OrphanLessons lists visible content that no track references. Content past
// its closing bound is listed separately as overdue.
func (s *LessonService) OrphanLessons(ctx context.Context, learner Learner) (*OrphanLessonsView, error) {
	ctx, span := tracing.StartSpan(ctx, "LessonService.OrphanLessons")
	defer span.End()

	referenced, err := s.trackRepo.ReferencedIDs(ctx)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	view := &OrphanLessonsView{Lessons: []OrphanLesson{}, Overdue: []OrphanLesson{}}

	for _, kind := range model.LessonKinds {
		docs, err := s.contentRepo.ListAll(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if isReferenced(referenced, doc) || !learner.CanSeeGroups(doc.GroupIDs()) {
				continue
			}
			lesson, err := s.orphanLesson(ctx, learner, doc)
			if err != nil {
				return nil, err
			}
			if doc.Window().Expired(now) {
				view.Overdue = append(view.Overdue, lesson)
			} else {
				view.Lessons = append(view.Lessons, lesson)
			}
		}
	}
	return view, nil
}

func (s *LessonService) orphanLesson(ctx context.Context, learner Learner, doc model.Content) (OrphanLesson, error) {
	displayID := model.DisplayID(doc)
	res, err := s.resolver.ResolveStandalone(ctx, learner.ID, doc.Kind(), []string{displayID, doc.StorageID()})
	if err != nil {
		return OrphanLesson{}, err
	}
	window := doc.Window()
	lesson := OrphanLesson{
		ID:             displayID,
		Type:           doc.Kind(),
		Title:          doc.DisplayTitle(),
		AvailableFrom:  util.FormatUTC(window.From),
		AvailableUntil: util.FormatUTC(window.Until),
		Status:         res.Status,
		LateBySeconds:  res.LateBySeconds,
		CompletedAt:    util.FormatUTC(res.CompletedAt),
	}
	if task, ok := doc.(*model.Task); ok {
		hard := task.Hard
		lesson.Hard = &hard
	}
	return lesson, nil
}

func isReferenced(referenced map[string]struct{}, doc model.Content) bool {
	if _, ok := referenced[doc.StorageID()]; ok {
		return true
	}
	if h := doc.HumanID(); h != "" {
		if _, ok := referenced[h]; ok {
			return true
		}
	}
	return false
}
