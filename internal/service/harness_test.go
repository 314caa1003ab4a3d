package service

import (
	"context"
	"testing"
	"time"

	"edu_platform_backend/internal/achievement"
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/runner"
	"edu_platform_backend/internal/testutil"

	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fakeRunner struct {
	calls   int
	results map[string][]runner.CaseResult
}

func (f *fakeRunner) Run(ctx context.Context, code string, cases []runner.TestCase) []runner.CaseResult {
	f.calls++
	if res, ok := f.results[code]; ok {
		return res
	}
	out := make([]runner.CaseResult, 0, len(cases))
	for _, tc := range cases {
		out = append(out, runner.CaseResult{CaseID: tc.ID, Passed: false, ActualOutput: "?"})
	}
	return out
}

type harness struct {
	db           *gorm.DB
	content      *repository.ContentRepository
	tracks       *repository.TrackRepository
	progressRepo *repository.ProgressRepository
	attempts     *repository.AttemptRepository
	submissions  *repository.SubmissionRepository
	surveys      *repository.SurveyResponseRepository
	grants       *repository.AchievementRepository
	resolver     *StatusResolver
	achievements *AchievementService
	progress     *ProgressService
	verify       *VerificationService
	lessons      *LessonService
	runner       *fakeRunner
	now          time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	h := &harness{db: db, runner: &fakeRunner{results: map[string][]runner.CaseResult{}}, now: fixedNow}
	clock := func() time.Time { return h.now }

	h.content = repository.NewContentRepository(db, nil)
	h.tracks = repository.NewTrackRepository(db)
	h.progressRepo = repository.NewProgressRepository(db)
	h.attempts = repository.NewAttemptRepository(db)
	h.submissions = repository.NewSubmissionRepository(db)
	h.surveys = repository.NewSurveyResponseRepository(db)
	h.grants = repository.NewAchievementRepository(db)

	h.resolver = NewStatusResolver(h.content, h.progressRepo, h.submissions, nil)
	h.achievements = NewAchievementService(achievement.DefaultRegistry(), h.progressRepo, h.grants, h.tracks, h.content, h.resolver, nil)
	h.achievements.Now = clock
	h.progress = NewProgressService(h.progressRepo, h.achievements, nil)
	h.progress.Now = clock
	h.verify = NewVerificationService(h.content, h.tracks, h.attempts, h.submissions, h.surveys, h.progress, h.resolver, h.runner, nil)
	h.verify.Now = clock
	h.lessons = NewLessonService(h.content, h.tracks, h.resolver, nil)
	h.lessons.Now = clock
	return h
}

func (h *harness) record(t *testing.T, in RecordInput) *RecordResult {
	t.Helper()
	res, err := h.progress.Record(context.Background(), in)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	return res
}

func (h *harness) progressRow(t *testing.T, userID, lessonID string) *model.LessonProgress {
	t.Helper()
	var rec model.LessonProgress
	if err := h.db.Where("user_id = ? AND lesson_id = ?", userID, lessonID).Take(&rec).Error; err != nil {
		t.Fatalf("load progress %s: %v", lessonID, err)
	}
	return &rec
}

func questionBlock(id string, correct ...string) model.QuestionBlock {
	q := model.QuestionBlock{ID: id, Prompt: "pick"}
	isCorrect := map[string]bool{}
	for _, c := range correct {
		isCorrect[c] = true
	}
	for _, c := range []string{"a", "b", "c"} {
		q.Choices = append(q.Choices, model.Choice{ID: c, Text: c, IsCorrect: isCorrect[c]})
	}
	return q
}

const learnerID = "user-1"

var student = Learner{ID: learnerID, Role: "student", GroupIDs: []string{"g1"}}
