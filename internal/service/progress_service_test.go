package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	calls    int
	unlocked []string
	err      error
	panicMsg string
}

func (s *stubChecker) CheckAndAward(ctx context.Context, userID string, kind model.LessonKind, passed bool) ([]string, error) {
	s.calls++
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.unlocked, s.err
}

func TestLateness(t *testing.T) {
	until := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	late, secs := Lateness(until, &until)
	assert.False(t, late)
	assert.Zero(t, secs)

	late, secs = Lateness(until.Add(-time.Minute), &until)
	assert.False(t, late)
	assert.Zero(t, secs)

	late, secs = Lateness(until.Add(1500*time.Millisecond), &until)
	assert.True(t, late)
	assert.Equal(t, int64(1), secs)

	late, secs = Lateness(until.Add(time.Hour), nil)
	assert.False(t, late)
	assert.Zero(t, secs)

	prev := int64(0)
	for step := 0; step < 50; step++ {
		_, secs := Lateness(until.Add(time.Duration(step)*777*time.Millisecond), &until)
		assert.GreaterOrEqual(t, secs, prev)
		prev = secs
	}
}

func TestLatenessReadsBoundAsUTC(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*3600)
	until := time.Date(2026, 3, 1, 15, 0, 0, 0, zone)
	late, secs := Lateness(time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC), &until)
	assert.True(t, late)
	assert.Equal(t, int64(3600), secs)
}

func TestRecordLateCompletion(t *testing.T) {
	h := newHarness(t)
	until := h.now.Add(-time.Hour)

	res := h.record(t, RecordInput{
		UserID: learnerID, LessonID: "late-task", Kind: model.KindTask,
		Passed: true, AvailableUntil: &until,
	})
	assert.Equal(t, model.ProgressCompleted, res.Status)
	assert.True(t, res.CompletedLate)
	assert.Equal(t, int64(3600), res.LateBySeconds)

	row := h.progressRow(t, learnerID, "late-task")
	assert.True(t, row.CompletedLate)
	assert.Equal(t, int64(3600), row.LateBySeconds)
	require.NotNil(t, row.CompletedAt)
}

func TestRecordUpsertsInPlace(t *testing.T) {
	h := newHarness(t)
	until := h.now.Add(-10 * time.Second)

	h.record(t, RecordInput{UserID: learnerID, LessonID: "p1", Kind: model.KindPuzzle, Passed: false,
		Title: "Puzzle", TrackID: "tr", TrackTitle: "Track"})
	row := h.progressRow(t, learnerID, "p1")
	assert.Equal(t, model.ProgressStarted, row.Status)

	h.record(t, RecordInput{UserID: learnerID, LessonID: "p1", Kind: model.KindPuzzle, Passed: true, AvailableUntil: &until})
	row = h.progressRow(t, learnerID, "p1")
	assert.Equal(t, model.ProgressCompleted, row.Status)
	assert.Equal(t, int64(10), row.LateBySeconds)
	assert.Equal(t, "Puzzle", row.LessonTitle, "blank metadata must not erase stored values")
	assert.Equal(t, "tr", row.TrackID)
	assert.Equal(t, "Track", row.TrackTitle)

	h.record(t, RecordInput{UserID: learnerID, LessonID: "p1", Kind: model.KindPuzzle, Passed: false, Title: "Renamed"})
	row = h.progressRow(t, learnerID, "p1")
	assert.Equal(t, model.ProgressStarted, row.Status)
	assert.Equal(t, int64(10), row.LateBySeconds, "lateness only changes on a pass")
	assert.Equal(t, "Renamed", row.LessonTitle)

	var count int64
	require.NoError(t, h.db.Model(&model.LessonProgress{}).Where("user_id = ?", learnerID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.progress.Record(ctx, RecordInput{UserID: learnerID, Kind: model.KindTask})
	assert.Error(t, err)
	_, err = h.progress.Record(ctx, RecordInput{UserID: learnerID, LessonID: "x", Kind: "chapter"})
	assert.Error(t, err)
}

func TestRecordSurvivesAchievementFailures(t *testing.T) {
	for name, checker := range map[string]*stubChecker{
		"error": {err: errors.New("registry offline")},
		"panic": {panicMsg: "boom"},
	} {
		t.Run(name, func(t *testing.T) {
			db := testutil.DB(t)
			svc := NewProgressService(repository.NewProgressRepository(db), checker, nil)

			res, err := svc.Record(context.Background(), RecordInput{
				UserID: learnerID, LessonID: "lec", Kind: model.KindLecture, Passed: true,
			})
			require.NoError(t, err)
			assert.Equal(t, model.ProgressCompleted, res.Status)
			assert.Empty(t, res.Unlocked)
			assert.Equal(t, 1, checker.calls)
		})
	}
}

func TestRecordTriggersScanOnlyForQualifyingPasses(t *testing.T) {
	db := testutil.DB(t)
	checker := &stubChecker{unlocked: []string{"first_task"}}
	svc := NewProgressService(repository.NewProgressRepository(db), checker, nil)
	ctx := context.Background()

	_, err := svc.Record(ctx, RecordInput{UserID: learnerID, LessonID: "t", Kind: model.KindTask, Passed: false})
	require.NoError(t, err)
	_, err = svc.Record(ctx, RecordInput{UserID: learnerID, LessonID: "q", Kind: model.KindQuestion, Passed: true})
	require.NoError(t, err)
	assert.Zero(t, checker.calls)

	res, err := svc.Record(ctx, RecordInput{UserID: learnerID, LessonID: "t", Kind: model.KindTask, Passed: true})
	require.NoError(t, err)
	assert.Equal(t, 1, checker.calls)
	assert.Equal(t, []string{"first_task"}, res.Unlocked)
}
