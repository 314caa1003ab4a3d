package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// TestCase is one stdin/expected-stdout pair of a programming task.
type TestCase struct {
	ID             string `json:"id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsPublic       bool   `json:"is_public"`
}

// UnmarshalJSON treats a case without an is_public flag as public.
func (tc *TestCase) UnmarshalJSON(data []byte) error {
	type plain TestCase
	c := plain{IsPublic: true}
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	*tc = TestCase(c)
	return nil
}

type Task struct {
	UUIDBase
	ContentMeta
	Description string         `gorm:"type:text" json:"description"`
	StarterCode string         `gorm:"type:text" json:"starterCode"`
	TestCases   datatypes.JSON `json:"testCases"`
	Hints       datatypes.JSON `json:"hints,omitempty"`
	Hard        bool           `gorm:"default:false" json:"hard"`
	MaxAttempts *int           `json:"maxAttempts,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t *Task) StorageID() string { return t.ID }
func (t *Task) Kind() LessonKind  { return KindTask }

func (t *Task) Cases() []TestCase {
	var cases []TestCase
	if len(t.TestCases) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.TestCases, &cases); err != nil {
		return nil
	}
	return cases
}

// PuzzleBlock is one code fragment; Order is its position in the reference solution.
type PuzzleBlock struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Order  string `json:"order"`
	Indent string `json:"indent,omitempty"`
}

type Puzzle struct {
	UUIDBase
	ContentMeta
	Description string         `gorm:"type:text" json:"description"`
	Language    string         `gorm:"size:32;default:'python'" json:"language"`
	Blocks      datatypes.JSON `json:"blocks"`
	Solution    string         `gorm:"type:text" json:"solution"`
	Hints       datatypes.JSON `json:"hints,omitempty"`
	MaxAttempts *int           `json:"maxAttempts,omitempty"`
}

func (Puzzle) TableName() string {
	return "puzzles"
}

func (p *Puzzle) StorageID() string { return p.ID }
func (p *Puzzle) Kind() LessonKind  { return KindPuzzle }

func (p *Puzzle) CodeBlocks() []PuzzleBlock {
	var blocks []PuzzleBlock
	if len(p.Blocks) == 0 {
		return nil
	}
	if err := json.Unmarshal(p.Blocks, &blocks); err != nil {
		return nil
	}
	return blocks
}

type Question struct {
	UUIDBase
	ContentMeta
	Prompt      string         `gorm:"type:text" json:"prompt"`
	Choices     datatypes.JSON `json:"choices"`
	Multiple    bool           `gorm:"default:false" json:"multiple"`
	MaxAttempts *int           `json:"maxAttempts,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

func (q *Question) StorageID() string { return q.ID }
func (q *Question) Kind() LessonKind  { return KindQuestion }

func (q *Question) ChoiceSet() []Choice {
	var choices []Choice
	if len(q.Choices) == 0 {
		return nil
	}
	if err := json.Unmarshal(q.Choices, &choices); err != nil {
		return nil
	}
	return choices
}

// CorrectChoiceIDs returns the ids of the choices flagged correct.
func CorrectChoiceIDs(choices []Choice) map[string]struct{} {
	out := make(map[string]struct{})
	for _, c := range choices {
		if c.IsCorrect {
			out[c.ID] = struct{}{}
		}
	}
	return out
}

type Survey struct {
	UUIDBase
	ContentMeta
	Prompt string `gorm:"type:text" json:"prompt"`
}

func (Survey) TableName() string {
	return "surveys"
}

func (s *Survey) StorageID() string { return s.ID }
func (s *Survey) Kind() LessonKind  { return KindSurvey }

// SurveyResponse is a learner's freeform answer; one per survey and user.
type SurveyResponse struct {
	UUIDBase
	SurveyID string `gorm:"size:64;not null;uniqueIndex:idx_survey_response_user" json:"surveyId"`
	UserID   string `gorm:"size:64;not null;uniqueIndex:idx_survey_response_user" json:"userId"`
	Answer   string `gorm:"type:text" json:"answer"`
}

func (SurveyResponse) TableName() string {
	return "survey_responses"
}
