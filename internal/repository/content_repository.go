package repository

import (
	"context"
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/util"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// contentLookups is the ordered list of id columns a content id is matched
// against. First hit wins.
var contentLookups = []string{"id", "public_id"}

type ContentRepository struct {
	DB    *gorm.DB
	Cache *DisplayIDCache
}

func NewContentRepository(db *gorm.DB, cache *DisplayIDCache) *ContentRepository {
	return &ContentRepository{DB: db, Cache: cache}
}

func findContent[T any](ctx context.Context, db *gorm.DB, id string) (*T, error) {
	if id == "" {
		return nil, util.ErrContentNotFound
	}
	for _, column := range contentLookups {
		var doc T
		err := db.WithContext(ctx).Where(column+" = ?", id).Take(&doc).Error
		if err == nil {
			return &doc, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", util.ErrContentNotFound, id)
}

func listContent[T any, P interface {
	*T
	model.Content
}](ctx context.Context, db *gorm.DB) ([]model.Content, error) {
	var docs []T
	if err := db.WithContext(ctx).Order("created_at").Find(&docs).Error; err != nil {
		return nil, err
	}
	out := make([]model.Content, 0, len(docs))
	for i := range docs {
		out = append(out, P(&docs[i]))
	}
	return out, nil
}

func (r *ContentRepository) FindLecture(ctx context.Context, id string) (*model.Lecture, error) {
	return findContent[model.Lecture](ctx, r.DB, id)
}

func (r *ContentRepository) FindTask(ctx context.Context, id string) (*model.Task, error) {
	return findContent[model.Task](ctx, r.DB, id)
}

func (r *ContentRepository) FindPuzzle(ctx context.Context, id string) (*model.Puzzle, error) {
	return findContent[model.Puzzle](ctx, r.DB, id)
}

func (r *ContentRepository) FindQuestion(ctx context.Context, id string) (*model.Question, error) {
	return findContent[model.Question](ctx, r.DB, id)
}

func (r *ContentRepository) FindSurvey(ctx context.Context, id string) (*model.Survey, error) {
	return findContent[model.Survey](ctx, r.DB, id)
}

// FindByID looks up a document of the given kind by storage id, then by public id.
func (r *ContentRepository) FindByID(ctx context.Context, kind model.LessonKind, id string) (model.Content, error) {
	switch kind {
	case model.KindLecture:
		doc, err := r.FindLecture(ctx, id)
		if err != nil {
			return nil, err
		}
		return doc, nil
	case model.KindTask:
		doc, err := r.FindTask(ctx, id)
		if err != nil {
			return nil, err
		}
		return doc, nil
	case model.KindPuzzle:
		doc, err := r.FindPuzzle(ctx, id)
		if err != nil {
			return nil, err
		}
		return doc, nil
	case model.KindQuestion:
		doc, err := r.FindQuestion(ctx, id)
		if err != nil {
			return nil, err
		}
		return doc, nil
	case model.KindSurvey:
		doc, err := r.FindSurvey(ctx, id)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
	return nil, fmt.Errorf("%w: %s", util.ErrInvalidLessonKind, kind)
}

// FindAny returns the first candidate id that resolves to a document.
func (r *ContentRepository) FindAny(ctx context.Context, kind model.LessonKind, ids []string) (model.Content, error) {
	for _, id := range ids {
		doc, err := r.FindByID(ctx, kind, id)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, util.ErrContentNotFound) {
			return nil, err
		}
	}
	return nil, util.ErrContentNotFound
}

func (r *ContentRepository) ListAll(ctx context.Context, kind model.LessonKind) ([]model.Content, error) {
	switch kind {
	case model.KindLecture:
		return listContent[model.Lecture, *model.Lecture](ctx, r.DB)
	case model.KindTask:
		return listContent[model.Task, *model.Task](ctx, r.DB)
	case model.KindPuzzle:
		return listContent[model.Puzzle, *model.Puzzle](ctx, r.DB)
	case model.KindQuestion:
		return listContent[model.Question, *model.Question](ctx, r.DB)
	case model.KindSurvey:
		return listContent[model.Survey, *model.Survey](ctx, r.DB)
	}
	return nil, fmt.Errorf("%w: %s", util.ErrInvalidLessonKind, kind)
}

// DisplayID resolves the display id of a referenced lesson, served from the
// cache when possible. Unknown ids are returned unchanged.
func (r *ContentRepository) DisplayID(ctx context.Context, kind model.LessonKind, id string) (string, error) {
	if cached, ok := r.Cache.Get(ctx, kind, id); ok {
		return cached, nil
	}
	doc, err := r.FindByID(ctx, kind, id)
	if errors.Is(err, util.ErrContentNotFound) {
		return id, nil
	}
	if err != nil {
		return "", err
	}
	display := model.DisplayID(doc)
	r.Cache.Set(ctx, kind, id, display)
	return display, nil
}
