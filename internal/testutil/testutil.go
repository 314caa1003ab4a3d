// Package testutil opens throwaway databases and seeds content for tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"edu_platform_backend/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// DB opens a private in-memory SQLite database with every table migrated.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormLogger.Default.LogMode(gormLogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		tb.Fatalf("auto migrate: %v", err)
	}
	return db
}

func Ptr[T any](v T) *T {
	return &v
}

func Create(tb testing.TB, db *gorm.DB, v interface{}) {
	tb.Helper()
	if err := db.Create(v).Error; err != nil {
		tb.Fatalf("create %T: %v", v, err)
	}
}

// Meta builds content metadata with an optional public id.
func Meta(publicID, title string) model.ContentMeta {
	m := model.ContentMeta{Title: title}
	if publicID != "" {
		m.PublicID = Ptr(publicID)
	}
	return m
}

func SeedLecture(tb testing.TB, db *gorm.DB, meta model.ContentMeta, blocks ...model.Block) *model.Lecture {
	tb.Helper()
	l := &model.Lecture{ContentMeta: meta}
	if err := l.SetBlocks(blocks); err != nil {
		tb.Fatalf("encode blocks: %v", err)
	}
	Create(tb, db, l)
	return l
}

func SeedTask(tb testing.TB, db *gorm.DB, meta model.ContentMeta, maxAttempts *int, cases ...model.TestCase) *model.Task {
	tb.Helper()
	t := &model.Task{ContentMeta: meta, TestCases: model.EncodeJSON(cases), MaxAttempts: maxAttempts}
	Create(tb, db, t)
	return t
}

func SeedPuzzle(tb testing.TB, db *gorm.DB, meta model.ContentMeta, maxAttempts *int, solution string, blocks ...model.PuzzleBlock) *model.Puzzle {
	tb.Helper()
	p := &model.Puzzle{ContentMeta: meta, Blocks: model.EncodeJSON(blocks), Solution: solution, MaxAttempts: maxAttempts}
	Create(tb, db, p)
	return p
}

func SeedQuestion(tb testing.TB, db *gorm.DB, meta model.ContentMeta, maxAttempts *int, choices ...model.Choice) *model.Question {
	tb.Helper()
	q := &model.Question{ContentMeta: meta, Choices: model.EncodeJSON(choices), MaxAttempts: maxAttempts}
	Create(tb, db, q)
	return q
}

func SeedSurvey(tb testing.TB, db *gorm.DB, meta model.ContentMeta) *model.Survey {
	tb.Helper()
	s := &model.Survey{ContentMeta: meta, Prompt: "How was it?"}
	Create(tb, db, s)
	return s
}

func SeedTrack(tb testing.TB, db *gorm.DB, publicID, title string, refs ...model.LessonRef) *model.Track {
	tb.Helper()
	t := &model.Track{Title: title, Lessons: model.EncodeJSON(refs)}
	if publicID != "" {
		t.PublicID = Ptr(publicID)
	}
	Create(tb, db, t)
	return t
}

// SeedProgress writes a raw progress record, bypassing the writer.
func SeedProgress(tb testing.TB, db *gorm.DB, userID, lessonID string, kind model.LessonKind, status model.ProgressStatus) *model.LessonProgress {
	tb.Helper()
	rec := &model.LessonProgress{UserID: userID, LessonID: lessonID, LessonType: kind, Status: status}
	Create(tb, db, rec)
	return rec
}
