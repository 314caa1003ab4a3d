package util

import "errors"

var (
	ErrContentNotFound     = errors.New("content not found")
	ErrTrackNotFound       = errors.New("track not found")
	ErrAttemptsExceeded    = errors.New("attempt limit reached")
	ErrNotYetAvailable     = errors.New("content not yet available")
	ErrContentHidden       = errors.New("content not accessible")
	ErrInvalidLessonKind   = errors.New("invalid lesson kind")
	ErrSubQuestionNotFound = errors.New("sub-question not found")
	ErrEmptyAnswer         = errors.New("answer must not be empty")
)
