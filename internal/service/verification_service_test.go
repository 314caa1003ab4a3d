package service

import (
	"context"
	"testing"
	"time"

	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/runner"
	"edu_platform_backend/internal/testutil"
	"edu_platform_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func puzzleBlocks() []model.PuzzleBlock {
	return []model.PuzzleBlock{
		{ID: "b1", Code: "def f(x):", Order: "1"},
		{ID: "b2", Code: "return x * 2", Order: "2", Indent: "    "},
		{ID: "b3", Code: "print(f(2))", Order: "3"},
	}
}

func correctArrangement() []PuzzleAnswerBlock {
	return []PuzzleAnswerBlock{
		{ID: "b1", Order: "1"},
		{ID: "b2", Order: "2", Indent: "    "},
		{ID: "b3", Order: "3"},
	}
}

func TestCheckPuzzleAttemptLimit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	testutil.SeedPuzzle(t, h.db, testutil.Meta("pz", "Puzzle"), testutil.Ptr(1), "", puzzleBlocks()...)

	wrong := []PuzzleAnswerBlock{{ID: "b3", Order: "1"}, {ID: "b1", Order: "2"}, {ID: "b2", Order: "3"}}
	res, err := h.verify.CheckPuzzle(ctx, student, "pz", wrong)
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, StatusStarted, res.Status)

	_, err = h.verify.CheckPuzzle(ctx, student, "pz", correctArrangement())
	require.ErrorIs(t, err, util.ErrAttemptsExceeded)

	row := h.progressRow(t, learnerID, "pz")
	assert.Equal(t, model.ProgressStarted, row.Status, "a rejected attempt writes nothing")

	var attempts int64
	require.NoError(t, h.db.Model(&model.Attempt{}).Count(&attempts).Error)
	assert.Equal(t, int64(1), attempts)
}

func TestCheckPuzzleCompletesAndUnlocks(t *testing.T) {
	h := newHarness(t)
	testutil.SeedPuzzle(t, h.db, testutil.Meta("pz", "Puzzle"), nil, "def f(x):\n    return x * 2\nprint(f(2))", puzzleBlocks()...)

	res, err := h.verify.CheckPuzzle(context.Background(), student, "pz", correctArrangement())
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []string{"first_puzzle"}, res.Progress.Unlocked)
}

func TestGradePuzzle(t *testing.T) {
	puzzle := &model.Puzzle{Blocks: model.EncodeJSON(puzzleBlocks())}

	ok, _ := GradePuzzle(puzzle, correctArrangement())
	assert.True(t, ok)

	shuffled := correctArrangement()
	shuffled[0], shuffled[2] = shuffled[2], shuffled[0]
	ok, _ = GradePuzzle(puzzle, shuffled)
	assert.True(t, ok, "answer order is given by the order field, not slice position")

	ok, msg := GradePuzzle(puzzle, correctArrangement()[:2])
	assert.False(t, ok)
	assert.Equal(t, "Wrong number of blocks", msg)

	puzzle.Solution = "def f(x):\n    return x * 2\nprint(f(2))\n"
	ok, _ = GradePuzzle(puzzle, correctArrangement())
	assert.True(t, ok)

	flat := correctArrangement()
	flat[1].Indent = "  "
	ok, _ = GradePuzzle(puzzle, flat)
	assert.False(t, ok)
}

func TestCheckQuestion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	testutil.SeedQuestion(t, h.db, testutil.Meta("mq", "Multi"), nil,
		model.Choice{ID: "a", Text: "A", IsCorrect: true},
		model.Choice{ID: "b", Text: "B"},
		model.Choice{ID: "c", Text: "C", IsCorrect: true},
	)

	_, err := h.verify.CheckQuestion(ctx, student, "mq", nil)
	require.ErrorIs(t, err, util.ErrEmptyAnswer)

	res, err := h.verify.CheckQuestion(ctx, student, "mq", []string{"a"})
	require.NoError(t, err)
	assert.False(t, res.Passed)

	res, err = h.verify.CheckQuestion(ctx, student, "mq", []string{"c", "a"})
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Empty(t, res.Progress.Unlocked, "standalone questions do not trigger achievements")
}

func TestSameChoices(t *testing.T) {
	choices := []model.Choice{{ID: "a", IsCorrect: true}, {ID: "b"}, {ID: "c", IsCorrect: true}}

	assert.True(t, SameChoices(choices, []string{"a", "c"}))
	assert.True(t, SameChoices(choices, []string{"c", "a", "a"}))
	assert.False(t, SameChoices(choices, []string{"a"}))
	assert.False(t, SameChoices(choices, []string{"a", "b", "c"}))
	assert.False(t, SameChoices(choices, nil))
}

func TestCheckLectureQuestionCompletesParent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	testutil.SeedLecture(t, h.db, testutil.Meta("lec", "Lecture"),
		questionBlock("q1", "a"),
		questionBlock("q2", "b"),
	)

	view, err := h.verify.ViewLecture(ctx, student, "lec")
	require.NoError(t, err)
	assert.False(t, view.Passed)
	assert.Equal(t, StatusStarted, view.Status)

	res, err := h.verify.CheckLectureQuestion(ctx, student, "lec", "q1", []string{"a"})
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, StatusStarted, res.Status)

	res, err = h.verify.CheckLectureQuestion(ctx, student, "lec", "q2", []string{"c"})
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, model.ProgressStarted, h.progressRow(t, learnerID, "lec::q2").Status)

	res, err = h.verify.CheckLectureQuestion(ctx, student, "lec", "q2", []string{"b"})
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, StatusCompleted, res.Status)
	require.NotNil(t, res.Progress)
	assert.Equal(t, []string{"first_lecture"}, res.Progress.Unlocked)
	assert.Equal(t, model.ProgressCompleted, h.progressRow(t, learnerID, "lec").Status)

	again, err := h.verify.ViewLecture(ctx, student, "lec")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, again.Status, "viewing a finished lecture keeps it finished")
	assert.Equal(t, model.ProgressCompleted, h.progressRow(t, learnerID, "lec").Status)

	_, err = h.verify.CheckLectureQuestion(ctx, student, "lec", "nope", []string{"a"})
	require.ErrorIs(t, err, util.ErrSubQuestionNotFound)
}

func TestVerificationHonoursAvailability(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	future := testutil.Meta("soon", "Soon")
	future.AvailableFrom = testutil.Ptr(h.now.Add(time.Hour))
	testutil.SeedQuestion(t, h.db, future, nil, model.Choice{ID: "a", IsCorrect: true})

	_, err := h.verify.CheckQuestion(ctx, student, "soon", []string{"a"})
	require.ErrorIs(t, err, util.ErrNotYetAvailable)

	teacher := Learner{ID: "t-1", Role: util.RoleTeacher}
	res, err := h.verify.CheckQuestion(ctx, teacher, "soon", []string{"a"})
	require.NoError(t, err)
	assert.True(t, res.Passed)

	hidden := testutil.Meta("private", "Private")
	hidden.VisibleGroupIDs = model.EncodeJSON([]string{"g2"})
	testutil.SeedSurvey(t, h.db, hidden)
	_, err = h.verify.SubmitSurvey(ctx, student, "private", "hi")
	require.ErrorIs(t, err, util.ErrContentHidden)

	_, err = h.verify.SubmitSurvey(ctx, Learner{ID: "u2", Role: util.RoleStudent, GroupIDs: []string{"g2"}}, "private", "hi")
	require.NoError(t, err)

	_, err = h.verify.CheckQuestion(ctx, student, "missing", []string{"a"})
	require.ErrorIs(t, err, util.ErrContentNotFound)
}

func TestSubmitAfterDeadlineIsLate(t *testing.T) {
	h := newHarness(t)
	meta := testutil.Meta("due", "Due")
	meta.AvailableUntil = testutil.Ptr(h.now.Add(-time.Hour))
	testutil.SeedQuestion(t, h.db, meta, nil, model.Choice{ID: "a", IsCorrect: true})

	res, err := h.verify.CheckQuestion(context.Background(), student, "due", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompletedLate, res.Status)
	assert.Equal(t, int64(3600), res.Progress.LateBySeconds)
}

func TestSubmitSurveyOverwritesAnswer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	survey := testutil.SeedSurvey(t, h.db, testutil.Meta("feedback", "Feedback"))

	_, err := h.verify.SubmitSurvey(ctx, student, "feedback", "   ")
	require.ErrorIs(t, err, util.ErrEmptyAnswer)

	res, err := h.verify.SubmitSurvey(ctx, student, "feedback", "great")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)

	_, err = h.verify.SubmitSurvey(ctx, student, "feedback", "even better")
	require.NoError(t, err)

	resp, err := h.surveys.Find(ctx, survey.ID, learnerID)
	require.NoError(t, err)
	assert.Equal(t, "even better", resp.Answer)
	var count int64
	require.NoError(t, h.db.Model(&model.SurveyResponse{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSubmitTask(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	task := testutil.SeedTask(t, h.db, testutil.Meta("sum", "Sum"), testutil.Ptr(2),
		model.TestCase{ID: "c1", Input: "1 2", ExpectedOutput: "3", IsPublic: true},
		model.TestCase{ID: "c2", Input: "5 5", ExpectedOutput: "10"},
	)
	h.runner.results["good"] = []runner.CaseResult{
		{CaseID: "c1", Passed: true, ActualOutput: "3"},
		{CaseID: "c2", Passed: true, ActualOutput: "10"},
	}
	h.runner.results["bad"] = []runner.CaseResult{
		{CaseID: "c1", Passed: true, ActualOutput: "3"},
		{CaseID: "c2", Passed: false, ActualOutput: "secret", Error: "Traceback Line 1"},
	}

	res, err := h.verify.SubmitTask(ctx, student, "sum", "bad")
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, StatusStarted, res.Status)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "3", res.Results[0].ActualOutput)
	assert.Empty(t, res.Results[1].ActualOutput)
	assert.Equal(t, "hidden test failed", res.Results[1].Error)

	res, err = h.verify.SubmitTask(ctx, student, "sum", "good")
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []string{"first_task"}, res.Progress.Unlocked)

	latest, err := h.submissions.Latest(ctx, learnerID, []string{task.ID})
	require.NoError(t, err)
	require.NotNil(t, latest)

	_, err = h.verify.SubmitTask(ctx, student, "sum", "good")
	require.ErrorIs(t, err, util.ErrAttemptsExceeded)
	assert.Equal(t, 2, h.runner.calls)

	_, err = h.verify.SubmitTask(ctx, student, "sum", "  ")
	require.ErrorIs(t, err, util.ErrEmptyAnswer)
}

func TestRunTaskWritesNothing(t *testing.T) {
	h := newHarness(t)
	testutil.SeedTask(t, h.db, testutil.Meta("dry", "Dry"), testutil.Ptr(1),
		model.TestCase{ID: "c1", Input: "", ExpectedOutput: "hi", IsPublic: true})

	results, err := h.verify.RunTask(context.Background(), student, "dry", "print('hi')")
	require.NoError(t, err)
	require.Len(t, results, 1)

	for _, m := range []interface{}{&model.Attempt{}, &model.Submission{}, &model.LessonProgress{}} {
		var count int64
		require.NoError(t, h.db.Model(m).Count(&count).Error)
		assert.Zero(t, count)
	}
}

func TestTrackMetadataIsDenormalized(t *testing.T) {
	h := newHarness(t)
	q := testutil.SeedQuestion(t, h.db, testutil.Meta("tq", "Track question"), nil, model.Choice{ID: "a", IsCorrect: true})
	testutil.SeedTrack(t, h.db, "basics", "Basics", model.LessonRef{ID: q.ID, Type: model.KindQuestion, Title: "Q"})

	_, err := h.verify.CheckQuestion(context.Background(), student, "tq", []string{"a"})
	require.NoError(t, err)

	row := h.progressRow(t, learnerID, "tq")
	assert.Equal(t, "basics", row.TrackID)
	assert.Equal(t, "Basics", row.TrackTitle)
	assert.Equal(t, "Track question", row.LessonTitle)
}

func TestRunTaskShowsCasesWithoutVisibilityFlag(t *testing.T) {
	h := newHarness(t)
	testutil.Create(t, h.db, &model.Task{
		ContentMeta: testutil.Meta("legacy", "Legacy"),
		TestCases:   datatypes.JSON(`[{"id":"c1","input":"","expected_output":"5"}]`),
	})
	h.runner.results["print(4)"] = []runner.CaseResult{{CaseID: "c1", ActualOutput: "4", Error: "expected 5"}}

	results, err := h.verify.RunTask(context.Background(), student, "legacy", "print(4)")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "4", results[0].ActualOutput)
	assert.Equal(t, "expected 5", results[0].Error)
}

func TestMaskHiddenMatchesCasesByPosition(t *testing.T) {
	cases := []model.TestCase{{ID: "", IsPublic: false}, {ID: "", IsPublic: true}}
	results := []runner.CaseResult{
		{ActualOutput: "hidden-out", Error: "boom"},
		{ActualOutput: "public-out"},
		{ActualOutput: "stray"},
	}

	out := maskHidden(cases, results)
	require.Len(t, out, 3)
	assert.Empty(t, out[0].ActualOutput)
	assert.Equal(t, "hidden test failed", out[0].Error)
	assert.Equal(t, "public-out", out[1].ActualOutput)
	assert.Empty(t, out[2].ActualOutput)
	assert.Equal(t, "hidden-out", results[0].ActualOutput, "input is not modified")
}

func TestViewLectureWithMalformedBlockKeepsQuestions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	testutil.Create(t, h.db, &model.Lecture{
		ContentMeta: testutil.Meta("broken", "Broken"),
		Blocks: datatypes.JSON(`[
			{"type":"text","content":123},
			{"type":"question","id":"q1","choices":[{"id":"a","text":"yes","is_correct":true}]}
		]`),
	})

	res, err := h.verify.ViewLecture(ctx, student, "broken")
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Equal(t, StatusStarted, res.Status)
	assert.Empty(t, res.Progress.Unlocked)

	res, err = h.verify.CheckLectureQuestion(ctx, student, "broken", "q1", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
}

func TestUnreadableGroupListHidesContent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	meta := testutil.Meta("garbled", "Garbled")
	meta.VisibleGroupIDs = datatypes.JSON(`"g1"`)
	testutil.SeedQuestion(t, h.db, meta, nil, model.Choice{ID: "a", IsCorrect: true})

	_, err := h.verify.CheckQuestion(ctx, student, "garbled", []string{"a"})
	require.ErrorIs(t, err, util.ErrContentHidden)

	res, err := h.verify.CheckQuestion(ctx, Learner{ID: "t-1", Role: util.RoleTeacher}, "garbled", []string{"a"})
	require.NoError(t, err)
	assert.True(t, res.Passed)
}
