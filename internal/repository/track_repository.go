package repository

import (
	"context"
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/util"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type TrackRepository struct {
	DB *gorm.DB
}

func NewTrackRepository(db *gorm.DB) *TrackRepository {
	return &TrackRepository{DB: db}
}

func (r *TrackRepository) List(ctx context.Context) ([]model.Track, error) {
	var tracks []model.Track
	err := r.DB.WithContext(ctx).Order("position asc, created_at asc").Find(&tracks).Error
	if err != nil {
		return nil, err
	}
	return tracks, nil
}

func (r *TrackRepository) FindByID(ctx context.Context, id string) (*model.Track, error) {
	for _, column := range contentLookups {
		var track model.Track
		err := r.DB.WithContext(ctx).Where(column+" = ?", id).Take(&track).Error
		if err == nil {
			return &track, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", util.ErrTrackNotFound, id)
}

// FindContaining returns the first track (in listing order) whose lessons
// reference any of the ids, or nil.
func (r *TrackRepository) FindContaining(ctx context.Context, ids []string) (*model.Track, error) {
	tracks, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			want[id] = struct{}{}
		}
	}
	for i := range tracks {
		for _, ref := range tracks[i].LessonRefs() {
			if _, ok := want[ref.ID]; ok {
				return &tracks[i], nil
			}
		}
	}
	return nil, nil
}

// ReferencedIDs collects every lesson id referenced by any track.
func (r *TrackRepository) ReferencedIDs(ctx context.Context) (map[string]struct{}, error) {
	tracks, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{})
	for i := range tracks {
		for _, ref := range tracks[i].LessonRefs() {
			ids[ref.ID] = struct{}{}
		}
	}
	return ids, nil
}
