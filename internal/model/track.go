package model

import (
	"encoding/json"
	"sort"

	"gorm.io/datatypes"
)

// LessonRef is a frozen snapshot of a lesson inside a track. Title and order
// are copied at authoring time and do not follow later content edits.
type LessonRef struct {
	ID    string     `json:"id"`
	Type  LessonKind `json:"type"`
	Title string     `json:"title"`
	Order int        `json:"order"`
}

type Track struct {
	UUIDBase
	PublicID        *string        `gorm:"size:64;uniqueIndex" json:"publicId,omitempty"`
	Title           string         `gorm:"size:500;not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description"`
	Order           int            `gorm:"column:position;default:0;index" json:"order"`
	Lessons         datatypes.JSON `json:"lessons"`
	VisibleGroupIDs datatypes.JSON `json:"visibleGroupIds,omitempty"`
}

func (Track) TableName() string {
	return "tracks"
}

func (t *Track) DisplayID() string {
	if t.PublicID != nil && *t.PublicID != "" {
		return *t.PublicID
	}
	return t.ID
}

// LessonRefs returns the embedded lessons sorted by order.
func (t *Track) LessonRefs() []LessonRef {
	var refs []LessonRef
	if len(t.Lessons) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Lessons, &refs); err != nil {
		return nil
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Order < refs[j].Order })
	return refs
}

func (t *Track) GroupIDs() ([]string, error) {
	return decodeStrings(t.VisibleGroupIDs)
}
