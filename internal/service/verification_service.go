package service

import (
	"context"
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/runner"
	"edu_platform_backend/internal/util"
	"edu_platform_backend/pkg/tracing"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Learner is the authenticated caller of a verification action.
type Learner struct {
	ID       string
	Role     string
	GroupIDs []string
}

// Staff can see content regardless of group visibility.
func (l Learner) Staff() bool {
	return l.Role == util.RoleTeacher || l.Role == util.RoleAdmin
}

// CanSee applies the visibility allowlist; an empty list is public.
func (l Learner) CanSee(groupIDs []string) bool {
	if len(groupIDs) == 0 || l.Staff() {
		return true
	}
	for _, g := range groupIDs {
		for _, mine := range l.GroupIDs {
			if g == mine {
				return true
			}
		}
	}
	return false
}

// CanSeeGroups is CanSee over a decoded allowlist. An allowlist that could
// not be read hides the content from everyone but staff.
func (l Learner) CanSeeGroups(groupIDs []string, err error) bool {
	if err != nil {
		return l.Staff()
	}
	return l.CanSee(groupIDs)
}

// CodeRunner executes code against test cases.
type CodeRunner interface {
	Run(ctx context.Context, code string, cases []runner.TestCase) []runner.CaseResult
}

type VerificationService struct {
	contentRepo    *repository.ContentRepository
	trackRepo      *repository.TrackRepository
	attemptRepo    *repository.AttemptRepository
	submissionRepo *repository.SubmissionRepository
	surveyRepo     *repository.SurveyResponseRepository
	progress       *ProgressService
	resolver       *StatusResolver
	runner         CodeRunner
	logger         *zap.Logger
	Now            func() time.Time
}

func NewVerificationService(
	contentRepo *repository.ContentRepository,
	trackRepo *repository.TrackRepository,
	attemptRepo *repository.AttemptRepository,
	submissionRepo *repository.SubmissionRepository,
	surveyRepo *repository.SurveyResponseRepository,
	progress *ProgressService,
	resolver *StatusResolver,
	codeRunner CodeRunner,
	logger *zap.Logger,
) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{
		contentRepo:    contentRepo,
		trackRepo:      trackRepo,
		attemptRepo:    attemptRepo,
		submissionRepo: submissionRepo,
		surveyRepo:     surveyRepo,
		progress:       progress,
		resolver:       resolver,
		runner:         codeRunner,
		logger:         logger,
		Now:            time.Now,
	}
}

// CheckResult is returned by every graded action.
type CheckResult struct {
	LessonID string        `json:"lessonId"`
	Passed   bool          `json:"passed"`
	Status   LessonStatus  `json:"status"`
	Progress *RecordResult `json:"progress,omitempty"`
	Message  string        `json:"message,omitempty"`
}

type TaskSubmitResult struct {
	CheckResult
	Results []runner.CaseResult `json:"results"`
}

// ensureAccess rejects hidden content and content whose window has not opened.
// Content past its closing bound stays verifiable and is recorded as late.
func (s *VerificationService) ensureAccess(doc model.Content, learner Learner) error {
	if !learner.CanSeeGroups(doc.GroupIDs()) {
		return util.ErrContentHidden
	}
	if !learner.Staff() && doc.Window().StartsAfter(s.Now()) {
		return util.ErrNotYetAvailable
	}
	return nil
}

// gateAttempts enforces maxAttempts and appends the attempt. The count and
// the append are not atomic; concurrent double submits may both pass.
func (s *VerificationService) gateAttempts(ctx context.Context, learner Learner, doc model.Content, maxAttempts *int) error {
	if maxAttempts == nil {
		return nil
	}
	used, err := s.attemptRepo.Count(ctx, learner.ID, doc.Kind(), doc.StorageID())
	if err != nil {
		return err
	}
	if used >= int64(*maxAttempts) {
		return fmt.Errorf("%w: %d of %d used", util.ErrAttemptsExceeded, used, *maxAttempts)
	}
	return s.attemptRepo.Append(ctx, learner.ID, doc.Kind(), doc.StorageID())
}

type trackInfo struct {
	id    string
	title string
}

// trackMeta picks the owning track when recorded, else the first track that
// lists any alias of the content.
func (s *VerificationService) trackMeta(ctx context.Context, doc model.Content) trackInfo {
	if owner := doc.OwnerTrackID(); owner != "" {
		track, err := s.trackRepo.FindByID(ctx, owner)
		if err == nil {
			return trackInfo{id: track.DisplayID(), title: track.Title}
		}
		if !errors.Is(err, util.ErrTrackNotFound) {
			s.logger.Warn("track lookup failed", zap.String("track_id", owner), zap.Error(err))
		}
	}
	track, err := s.trackRepo.FindContaining(ctx, LessonAliases(doc, model.DisplayID(doc)))
	if err != nil {
		s.logger.Warn("track scan failed", zap.String("lesson_id", doc.StorageID()), zap.Error(err))
		return trackInfo{}
	}
	if track == nil {
		return trackInfo{}
	}
	return trackInfo{id: track.DisplayID(), title: track.Title}
}

func (s *VerificationService) record(ctx context.Context, learner Learner, doc model.Content, lessonID string, kind model.LessonKind, passed bool) (*RecordResult, error) {
	meta := s.trackMeta(ctx, doc)
	return s.progress.Record(ctx, RecordInput{
		UserID:         learner.ID,
		LessonID:       lessonID,
		Kind:           kind,
		Passed:         passed,
		Title:          doc.DisplayTitle(),
		TrackID:        meta.id,
		TrackTitle:     meta.title,
		AvailableUntil: doc.Window().Until,
	})
}

func statusOf(rec *RecordResult) LessonStatus {
	switch {
	case rec == nil:
		return StatusNotStarted
	case rec.Status != model.ProgressCompleted:
		return StatusStarted
	case rec.CompletedLate:
		return StatusCompletedLate
	}
	return StatusCompleted
}

// ViewLecture marks a lecture as opened. A lecture without sub-questions is
// completed by the view; one with sub-questions is only started, and a
// lecture that already resolves as done is left untouched.
func (s *VerificationService) ViewLecture(ctx context.Context, learner Learner, lectureID string) (*CheckResult, error) {
	ctx, span := tracing.StartSpan(ctx, "VerificationService.ViewLecture", attribute.String("lesson.id", lectureID))
	defer span.End()

	lecture, err := s.contentRepo.FindLecture(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAccess(lecture, learner); err != nil {
		return nil, err
	}

	displayID := model.DisplayID(lecture)
	hasQuestions := len(lecture.SubQuestions()) > 0
	if hasQuestions {
		current, err := s.resolver.ResolveContent(ctx, learner.ID, lecture)
		if err != nil {
			return nil, err
		}
		if current.Status.Done() {
			return &CheckResult{LessonID: displayID, Passed: true, Status: current.Status}, nil
		}
	}

	rec, err := s.record(ctx, learner, lecture, displayID, model.KindLecture, !hasQuestions)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		LessonID: displayID,
		Passed:   !hasQuestions,
		Status:   statusOf(rec),
		Progress: rec,
	}, nil
}

// CheckLectureQuestion grades one embedded question and completes the parent
// lecture once every sub-question is answered correctly.
func (s *VerificationService) CheckLectureQuestion(ctx context.Context, learner Learner, lectureID, subID string, selected []string) (*CheckResult, error) {
	ctx, span := tracing.StartSpan(ctx, "VerificationService.CheckLectureQuestion",
		attribute.String("lesson.id", lectureID),
		attribute.String("sub.id", subID))
	defer span.End()

	lecture, err := s.contentRepo.FindLecture(ctx, lectureID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAccess(lecture, learner); err != nil {
		return nil, err
	}
	sub, ok := lecture.FindSubQuestion(subID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", util.ErrSubQuestionNotFound, subID)
	}
	if len(selected) == 0 {
		return nil, util.ErrEmptyAnswer
	}

	displayID := model.DisplayID(lecture)
	passed := SameChoices(sub.Question.Choices, selected)
	if _, err := s.record(ctx, learner, lecture, displayID+model.SubQuestionSeparator+sub.ID, model.KindQuestion, passed); err != nil {
		return nil, err
	}

	result := &CheckResult{LessonID: displayID, Passed: passed, Message: answerMessage(passed)}
	current, err := s.resolver.ResolveContent(ctx, learner.ID, lecture)
	if err != nil {
		return nil, err
	}
	result.Status = current.Status
	if passed && current.Status.Done() {
		rec, err := s.record(ctx, learner, lecture, displayID, model.KindLecture, true)
		if err != nil {
			return nil, err
		}
		result.Progress = rec
		result.Status = statusOf(rec)
	}
	return result, nil
}

// RunTask is a dry run: no attempt, submission or progress is written.
func (s *VerificationService) RunTask(ctx context.Context, learner Learner, taskID, code string) ([]runner.CaseResult, error) {
	ctx, span := tracing.StartSpan(ctx, "VerificationService.RunTask", attribute.String("lesson.id", taskID))
	defer span.End()

	task, err := s.contentRepo.FindTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAccess(task, learner); err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, util.ErrEmptyAnswer
	}
	cases := task.Cases()
	return maskHidden(cases, s.runner.Run(ctx, code, runnerCases(cases))), nil
}

// SubmitTask runs all test cases, stores the submission and records progress.
func (s *VerificationService) SubmitTask(ctx context.Context, learner Learner, taskID, code string) (*TaskSubmitResult, error) {
	ctx, span := tracing.StartSpan(ctx, "VerificationService.SubmitTask", attribute.String("lesson.id", taskID))
	defer span.End()

	task, err := s.contentRepo.FindTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAccess(task, learner); err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, util.ErrEmptyAnswer
	}
	if err := s.gateAttempts(ctx, learner, task, task.MaxAttempts); err != nil {
		return nil, err
	}

	cases := task.Cases()
	results := s.runner.Run(ctx, code, runnerCases(cases))
	passed := runner.AllPassed(results)

	if err := s.submissionRepo.Create(ctx, &model.Submission{
		TaskID:  task.ID,
		UserID:  learner.ID,
		Code:    code,
		Passed:  passed,
		Results: model.EncodeJSON(results),
	}); err != nil {
		return nil, err
	}

	displayID := model.DisplayID(task)
	rec, err := s.record(ctx, learner, task, displayID, model.KindTask, passed)
	if err != nil {
		return nil, err
	}

	message := "All tests passed."
	if !passed {
		message = "Some tests failed."
	}
	return &TaskSubmitResult{
		CheckResult: CheckResult{
			LessonID: displayID,
			Passed:   passed,
			Status:   statusOf(rec),
			Progress: rec,
			Message:  message,
		},
		Results: maskHidden(cases, results),
	}, nil
}

// PuzzleAnswerBlock is one block as arranged by the learner.
type PuzzleAnswerBlock struct {
	ID     string `json:"id"`
	Order  string `json:"order"`
	Indent string `json:"indent"`
}

func (s *VerificationService) CheckPuzzle(ctx context.Context, learner Learner, puzzleID string, blocks []PuzzleAnswerBlock) (*CheckResult, error) {
	ctx, span := tracing.StartSpan(ctx, "VerificationService.CheckPuzzle", attribute.String("lesson.id", puzzleID))
	defer span.End()

	puzzle, err := s.contentRepo.FindPuzzle(ctx, puzzleID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAccess(puzzle, learner); err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, util.ErrEmptyAnswer
	}
	if err := s.gateAttempts(ctx, learner, puzzle, puzzle.MaxAttempts); err != nil {
		return nil, err
	}

	passed, message := GradePuzzle(puzzle, blocks)
	displayID := model.DisplayID(puzzle)
	rec, err := s.record(ctx, learner, puzzle, displayID, model.KindPuzzle, passed)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		LessonID: displayID,
		Passed:   passed,
		Status:   statusOf(rec),
		Progress: rec,
		Message:  message,
	}, nil
}

// GradePuzzle compares the learner's arrangement with the reference order.
// When a solution text exists the assembled code must also match it.
func GradePuzzle(puzzle *model.Puzzle, answer []PuzzleAnswerBlock) (bool, string) {
	expected := puzzle.CodeBlocks()
	sort.SliceStable(expected, func(i, j int) bool { return expected[i].Order < expected[j].Order })
	given := append([]PuzzleAnswerBlock(nil), answer...)
	sort.SliceStable(given, func(i, j int) bool { return given[i].Order < given[j].Order })

	if len(expected) != len(given) {
		return false, "Wrong number of blocks"
	}
	for i := range expected {
		if expected[i].ID != given[i].ID {
			return false, "Try again"
		}
	}

	if strings.TrimSpace(puzzle.Solution) != "" {
		var assembled strings.Builder
		for i := range given {
			indent := given[i].Indent
			if indent == "" {
				indent = expected[i].Indent
			}
			assembled.WriteString(indent + expected[i].Code + "\n")
		}
		if strings.TrimSpace(assembled.String()) != strings.TrimSpace(puzzle.Solution) {
			return false, "Try again"
		}
	}
	return true, "Correct!"
}

func (s *VerificationService) CheckQuestion(ctx context.Context, learner Learner, questionID string, selected []string) (*CheckResult, error) {
	ctx, span := tracing.StartSpan(ctx, "VerificationService.CheckQuestion", attribute.String("lesson.id", questionID))
	defer span.End()

	question, err := s.contentRepo.FindQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAccess(question, learner); err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, util.ErrEmptyAnswer
	}
	if err := s.gateAttempts(ctx, learner, question, question.MaxAttempts); err != nil {
		return nil, err
	}

	passed := SameChoices(question.ChoiceSet(), selected)
	displayID := model.DisplayID(question)
	rec, err := s.record(ctx, learner, question, displayID, model.KindQuestion, passed)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		LessonID: displayID,
		Passed:   passed,
		Status:   statusOf(rec),
		Progress: rec,
		Message:  answerMessage(passed),
	}, nil
}

// SubmitSurvey stores the learner's answer, replacing an earlier one, and
// completes the survey.
func (s *VerificationService) SubmitSurvey(ctx context.Context, learner Learner, surveyID, answer string) (*CheckResult, error) {
	ctx, span := tracing.StartSpan(ctx, "VerificationService.SubmitSurvey", attribute.String("lesson.id", surveyID))
	defer span.End()

	survey, err := s.contentRepo.FindSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAccess(survey, learner); err != nil {
		return nil, err
	}
	if strings.TrimSpace(answer) == "" {
		return nil, util.ErrEmptyAnswer
	}

	if err := s.surveyRepo.Save(ctx, &model.SurveyResponse{
		SurveyID: survey.ID,
		UserID:   learner.ID,
		Answer:   answer,
	}); err != nil {
		return nil, err
	}

	displayID := model.DisplayID(survey)
	rec, err := s.record(ctx, learner, survey, displayID, model.KindSurvey, true)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		LessonID: displayID,
		Passed:   true,
		Status:   statusOf(rec),
		Progress: rec,
		Message:  "Answer saved.",
	}, nil
}

// SameChoices reports whether the selection equals the set of correct choices.
func SameChoices(choices []model.Choice, selected []string) bool {
	correct := model.CorrectChoiceIDs(choices)
	picked := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		picked[id] = struct{}{}
	}
	if len(picked) != len(correct) {
		return false
	}
	for id := range picked {
		if _, ok := correct[id]; !ok {
			return false
		}
	}
	return true
}

func answerMessage(passed bool) string {
	if passed {
		return "Correct!"
	}
	return "Incorrect. Try again."
}

func runnerCases(cases []model.TestCase) []runner.TestCase {
	out := make([]runner.TestCase, 0, len(cases))
	for _, tc := range cases {
		out = append(out, runner.TestCase{
			ID:             tc.ID,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			IsPublic:       tc.IsPublic,
		})
	}
	return out
}

// maskHidden withholds output of non-public cases from the learner. Results
// line up with cases by position; a result without a case is treated as hidden.
func maskHidden(cases []model.TestCase, results []runner.CaseResult) []runner.CaseResult {
	out := make([]runner.CaseResult, len(results))
	for i, r := range results {
		if i >= len(cases) || !cases[i].IsPublic {
			r.ActualOutput = ""
			if r.Error != "" {
				r.Error = "hidden test failed"
			}
		}
		out[i] = r
	}
	return out
}
