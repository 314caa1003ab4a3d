package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type LessonKind string

const (
	KindLecture  LessonKind = "lecture"
	KindTask     LessonKind = "task"
	KindPuzzle   LessonKind = "puzzle"
	KindQuestion LessonKind = "question"
	KindSurvey   LessonKind = "survey"
)

var LessonKinds = []LessonKind{KindLecture, KindTask, KindPuzzle, KindQuestion, KindSurvey}

func (k LessonKind) Valid() bool {
	for _, known := range LessonKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ContentMeta holds the fields every content kind carries besides its payload.
type ContentMeta struct {
	PublicID        *string        `gorm:"size:64;uniqueIndex" json:"publicId,omitempty"`
	Title           string         `gorm:"size:500;not null" json:"title"`
	TrackID         string         `gorm:"size:64;index" json:"trackId,omitempty"`
	VisibleGroupIDs datatypes.JSON `json:"visibleGroupIds,omitempty"`
	AvailableFrom   *time.Time     `json:"availableFrom,omitempty"`
	AvailableUntil  *time.Time     `json:"availableUntil,omitempty"`
	CreatedByID     string         `gorm:"size:64" json:"createdById,omitempty"`
}

// HumanID returns the public id, or "" when the document has none.
func (m ContentMeta) HumanID() string {
	if m.PublicID == nil {
		return ""
	}
	return *m.PublicID
}

// GroupIDs decodes the visibility allowlist. An empty result means public.
func (m ContentMeta) GroupIDs() ([]string, error) {
	return decodeStrings(m.VisibleGroupIDs)
}

// Content is the read-only view the progress core needs from any content kind.
type Content interface {
	StorageID() string
	HumanID() string
	Kind() LessonKind
	DisplayTitle() string
	GroupIDs() ([]string, error)
	Window() Availability
	OwnerTrackID() string
}

// DisplayID is the human-readable id when present, else the storage id.
func DisplayID(c Content) string {
	if h := c.HumanID(); h != "" {
		return h
	}
	return c.StorageID()
}

// Availability is the optional [from, until] window of a content document.
type Availability struct {
	From  *time.Time
	Until *time.Time
}

// AsUTC converts a bound to UTC. Connections are opened with loc=UTC, so a
// bound stored without zone information is already read back as UTC.
func AsUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// StartsAfter reports whether the window has not opened yet at now.
func (a Availability) StartsAfter(now time.Time) bool {
	from := AsUTC(a.From)
	return from != nil && now.UTC().Before(*from)
}

// Expired reports whether now is past the closing bound.
func (a Availability) Expired(now time.Time) bool {
	until := AsUTC(a.Until)
	return until != nil && now.UTC().After(*until)
}

func (m ContentMeta) Window() Availability {
	return Availability{From: m.AvailableFrom, Until: m.AvailableUntil}
}

func (m ContentMeta) DisplayTitle() string {
	return m.Title
}

// OwnerTrackID is the track the document was authored in, if recorded.
func (m ContentMeta) OwnerTrackID() string {
	return m.TrackID
}

func decodeStrings(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode group ids: %w", err)
	}
	return out, nil
}

// EncodeJSON marshals v into a JSON column value, falling back to null.
func EncodeJSON(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}
