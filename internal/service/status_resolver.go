package service

import (
	"context"
	"edu_platform_backend/internal/model"
	"edu_platform_backend/internal/repository"
	"edu_platform_backend/internal/util"
	"edu_platform_backend/pkg/monitoring"
	"edu_platform_backend/pkg/tracing"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type LessonStatus string

const (
	StatusNotStarted    LessonStatus = "not_started"
	StatusStarted       LessonStatus = "started"
	StatusCompleted     LessonStatus = "completed"
	StatusCompletedLate LessonStatus = "completed_late"
)

func (s LessonStatus) Done() bool {
	return s == StatusCompleted || s == StatusCompletedLate
}

// Resolution is the derived state of one lesson for one learner.
type Resolution struct {
	Status        LessonStatus
	LateBySeconds int64
	CompletedAt   *time.Time
}

var notStarted = Resolution{Status: StatusNotStarted}

// StatusResolver derives lesson status from progress records on every read.
type StatusResolver struct {
	contentRepo    *repository.ContentRepository
	progressRepo   *repository.ProgressRepository
	submissionRepo *repository.SubmissionRepository
	logger         *zap.Logger
}

func NewStatusResolver(
	contentRepo *repository.ContentRepository,
	progressRepo *repository.ProgressRepository,
	submissionRepo *repository.SubmissionRepository,
	logger *zap.Logger,
) *StatusResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusResolver{
		contentRepo:    contentRepo,
		progressRepo:   progressRepo,
		submissionRepo: submissionRepo,
		logger:         logger,
	}
}

// Resolve returns the status of a lesson referenced from a track.
func (r *StatusResolver) Resolve(ctx context.Context, userID string, ref model.LessonRef, displayID string) (Resolution, error) {
	ctx, span := tracing.StartSpan(ctx, "StatusResolver.Resolve",
		attribute.String("lesson.kind", string(ref.Type)),
		attribute.String("lesson.id", displayID))
	defer span.End()

	doc, err := r.contentRepo.FindByID(ctx, ref.Type, ref.ID)
	if err != nil && !errors.Is(err, util.ErrContentNotFound) {
		return Resolution{}, err
	}
	if displayID == "" {
		displayID = ref.ID
	}
	return r.resolve(ctx, userID, ref.Type, doc, displayID, ref.ID)
}

// ResolveStandalone returns the status of content that no track references.
// Any candidate id may name the content; the first that resolves is used.
func (r *StatusResolver) ResolveStandalone(ctx context.Context, userID string, kind model.LessonKind, candidateIDs []string) (Resolution, error) {
	if len(candidateIDs) == 0 {
		return notStarted, nil
	}
	doc, err := r.contentRepo.FindAny(ctx, kind, candidateIDs)
	if err != nil && !errors.Is(err, util.ErrContentNotFound) {
		return Resolution{}, err
	}
	displayID := candidateIDs[0]
	if doc != nil {
		displayID = model.DisplayID(doc)
	}
	return r.resolve(ctx, userID, kind, doc, displayID, candidateIDs...)
}

// ResolveContent resolves an already loaded document.
func (r *StatusResolver) ResolveContent(ctx context.Context, userID string, doc model.Content) (Resolution, error) {
	return r.resolve(ctx, userID, doc.Kind(), doc, model.DisplayID(doc))
}

func (r *StatusResolver) resolve(ctx context.Context, userID string, kind model.LessonKind, doc model.Content, displayID string, extra ...string) (Resolution, error) {
	aliases := LessonAliases(doc, displayID, extra...)

	records, err := r.progressRepo.FindByAliases(ctx, userID, aliases)
	if err != nil {
		return Resolution{}, err
	}
	rec := r.firstMatch(kind, aliases, indexByLessonID(records))

	if lecture, ok := doc.(*model.Lecture); ok {
		if subs := lecture.SubQuestions(); len(subs) > 0 {
			return r.resolveLecture(ctx, userID, subs, subQuestionPrefixes(displayID, aliases), rec)
		}
	}

	if rec != nil {
		return fromRecord(rec), nil
	}

	if kind == model.KindTask {
		return r.resolveFromSubmissions(ctx, userID, aliases)
	}
	return notStarted, nil
}

// LessonAliases lists every id progress may have been stored under, in probe
// order: storage id, display id, human id, then any extra candidates.
func LessonAliases(doc model.Content, displayID string, extra ...string) []string {
	var ids []string
	if doc != nil {
		ids = append(ids, doc.StorageID())
	}
	ids = append(ids, displayID)
	if doc != nil {
		ids = append(ids, doc.HumanID())
	}
	ids = append(ids, extra...)
	return dedupe(ids)
}

// subQuestionPrefixes puts the display id first; sub-question keys are
// written under it.
func subQuestionPrefixes(displayID string, aliases []string) []string {
	return dedupe(append([]string{displayID}, aliases...))
}

func (r *StatusResolver) firstMatch(kind model.LessonKind, keys []string, byID map[string]*model.LessonProgress) *model.LessonProgress {
	var first *model.LessonProgress
	for _, key := range keys {
		rec, ok := byID[key]
		if !ok {
			continue
		}
		if first == nil {
			first = rec
			continue
		}
		if rec.Status != first.Status || rec.CompletedLate != first.CompletedLate {
			monitoring.AliasConflicts.WithLabelValues(string(kind)).Inc()
			r.logger.Warn("progress aliases disagree",
				zap.String("user_id", rec.UserID),
				zap.String("kind", string(kind)),
				zap.String("winner", first.LessonID),
				zap.String("winner_status", string(first.Status)),
				zap.String("other", rec.LessonID),
				zap.String("other_status", string(rec.Status)))
		}
	}
	return first
}

func (r *StatusResolver) resolveLecture(ctx context.Context, userID string, subs []model.SubQuestion, prefixes []string, parent *model.LessonProgress) (Resolution, error) {
	keys := make([]string, 0, len(subs)*len(prefixes))
	for _, sub := range subs {
		for _, prefix := range prefixes {
			keys = append(keys, prefix+model.SubQuestionSeparator+sub.ID)
		}
	}
	records, err := r.progressRepo.FindByAliases(ctx, userID, keys)
	if err != nil {
		return Resolution{}, err
	}
	byID := indexByLessonID(records)

	anyProgress := false
	allCompleted := true
	var lastCompleted *time.Time
	for _, sub := range subs {
		subKeys := make([]string, 0, len(prefixes))
		for _, prefix := range prefixes {
			subKeys = append(subKeys, prefix+model.SubQuestionSeparator+sub.ID)
		}
		rec := r.firstMatch(model.KindQuestion, subKeys, byID)
		if rec == nil {
			allCompleted = false
			continue
		}
		anyProgress = true
		if rec.Status != model.ProgressCompleted {
			allCompleted = false
			continue
		}
		if at := completedAt(rec); at != nil && (lastCompleted == nil || at.After(*lastCompleted)) {
			lastCompleted = at
		}
	}

	switch {
	case allCompleted:
		res := Resolution{Status: StatusCompleted, CompletedAt: lastCompleted}
		if parent != nil && parent.Status == model.ProgressCompleted {
			if parent.CompletedLate {
				res.Status = StatusCompletedLate
				res.LateBySeconds = parent.LateBySeconds
			}
			if at := completedAt(parent); at != nil {
				res.CompletedAt = at
			}
		}
		return res, nil
	case anyProgress || parent != nil:
		return Resolution{Status: StatusStarted}, nil
	}
	return notStarted, nil
}

// resolveFromSubmissions covers task progress that predates progress records.
// It never carries lateness.
func (r *StatusResolver) resolveFromSubmissions(ctx context.Context, userID string, aliases []string) (Resolution, error) {
	sub, err := r.submissionRepo.Latest(ctx, userID, aliases)
	if err != nil {
		return Resolution{}, err
	}
	if sub == nil {
		return notStarted, nil
	}
	if !sub.Passed {
		return Resolution{Status: StatusStarted}, nil
	}
	at := sub.CreatedAt.UTC()
	return Resolution{Status: StatusCompleted, CompletedAt: &at}, nil
}

func fromRecord(rec *model.LessonProgress) Resolution {
	if rec.Status != model.ProgressCompleted {
		return Resolution{Status: StatusStarted}
	}
	res := Resolution{Status: StatusCompleted, CompletedAt: completedAt(rec)}
	if rec.CompletedLate {
		res.Status = StatusCompletedLate
		res.LateBySeconds = rec.LateBySeconds
	}
	return res
}

func completedAt(rec *model.LessonProgress) *time.Time {
	if rec.CompletedAt != nil {
		return model.AsUTC(rec.CompletedAt)
	}
	return model.AsUTC(&rec.UpdatedAt)
}

func indexByLessonID(records []model.LessonProgress) map[string]*model.LessonProgress {
	byID := make(map[string]*model.LessonProgress, len(records))
	for i := range records {
		byID[records[i].LessonID] = &records[i]
	}
	return byID
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
