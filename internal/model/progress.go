package model

import (
	"time"

	"gorm.io/datatypes"
)

type ProgressStatus string

const (
	ProgressStarted   ProgressStatus = "started"
	ProgressCompleted ProgressStatus = "completed"
)

// LessonProgress is the single mutable progress row per (user, lesson id).
// LessonID is a display id, or "{displayId}::{subId}" for lecture sub-questions.
type LessonProgress struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        string         `gorm:"size:64;not null;uniqueIndex:idx_progress_user_lesson" json:"userId"`
	LessonID      string         `gorm:"size:255;not null;uniqueIndex:idx_progress_user_lesson" json:"lessonId"`
	LessonType    LessonKind     `gorm:"size:32;index" json:"lessonType"`
	Status        ProgressStatus `gorm:"size:32;not null" json:"status"`
	CompletedLate bool           `gorm:"default:false" json:"completedLate"`
	LateBySeconds int64          `gorm:"default:0" json:"lateBySeconds"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
	LessonTitle   string         `gorm:"size:500" json:"lessonTitle"`
	TrackID       string         `gorm:"size:64" json:"trackId"`
	TrackTitle    string         `gorm:"size:500" json:"trackTitle"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}

// Attempt is an append-only ledger entry: one verification attempt was made.
type Attempt struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string     `gorm:"size:64;not null;index:idx_attempt_target" json:"userId"`
	TargetKind LessonKind `gorm:"size:32;not null;index:idx_attempt_target" json:"targetKind"`
	TargetID   string     `gorm:"size:64;not null;index:idx_attempt_target" json:"targetId"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// Submission is the stored outcome of a task submit. Older progress predates
// LessonProgress and is only recoverable from here.
type Submission struct {
	UUIDBase
	TaskID  string         `gorm:"size:64;not null;index" json:"taskId"`
	UserID  string         `gorm:"size:64;not null;index" json:"userId"`
	Code    string         `gorm:"type:text;not null" json:"code"`
	Passed  bool           `gorm:"not null" json:"passed"`
	Results datatypes.JSON `json:"results"`
}

func (Submission) TableName() string {
	return "submissions"
}
