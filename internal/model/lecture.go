package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

type BlockKind string

const (
	BlockText     BlockKind = "text"
	BlockImage    BlockKind = "image"
	BlockCode     BlockKind = "code"
	BlockVideo    BlockKind = "video"
	BlockQuestion BlockKind = "question"
)

// SubQuestionSeparator joins a parent id and a child id in progress keys,
// e.g. "{lectureDisplayId}::{blockId}" or "{videoBlockId}::{pausePointId}".
const SubQuestionSeparator = "::"

// Block is one entry of a lecture body.
type Block interface {
	BlockKind() BlockKind
}

type TextBlock struct {
	Content string `json:"content"`
}

type ImageBlock struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type CodeBlock struct {
	Code        string `json:"code"`
	Language    string `json:"language,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

type Choice struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type QuestionBlock struct {
	ID       string   `json:"id"`
	Prompt   string   `json:"prompt,omitempty"`
	Choices  []Choice `json:"choices,omitempty"`
	Multiple bool     `json:"multiple,omitempty"`
}

type PausePoint struct {
	ID        string         `json:"id"`
	Timestamp float64        `json:"timestamp"`
	Question  *QuestionBlock `json:"question,omitempty"`
}

type VideoBlock struct {
	ID          string       `json:"id"`
	URL         string       `json:"url"`
	PausePoints []PausePoint `json:"pause_points,omitempty"`
}

// UnknownBlock keeps block types this service does not interpret.
type UnknownBlock struct {
	Type string
	Raw  json.RawMessage
}

func (TextBlock) BlockKind() BlockKind     { return BlockText }
func (ImageBlock) BlockKind() BlockKind    { return BlockImage }
func (CodeBlock) BlockKind() BlockKind     { return BlockCode }
func (VideoBlock) BlockKind() BlockKind    { return BlockVideo }
func (QuestionBlock) BlockKind() BlockKind { return BlockQuestion }
func (u UnknownBlock) BlockKind() BlockKind {
	return BlockKind(u.Type)
}

// SubQuestion is a gradable question embedded in a lecture.
type SubQuestion struct {
	ID       string
	Question QuestionBlock
}

type Lecture struct {
	UUIDBase
	ContentMeta
	Blocks datatypes.JSON `json:"blocks"`
}

func (Lecture) TableName() string {
	return "lectures"
}

func (l *Lecture) StorageID() string { return l.ID }
func (l *Lecture) Kind() LessonKind  { return KindLecture }

// DecodeBlocks parses the stored block list into typed variants.
func (l *Lecture) DecodeBlocks() ([]Block, error) {
	return DecodeBlocks(l.Blocks)
}

// SetBlocks encodes typed blocks with their "type" discriminant.
func (l *Lecture) SetBlocks(blocks []Block) error {
	raw, err := EncodeBlocks(blocks)
	if err != nil {
		return err
	}
	l.Blocks = raw
	return nil
}

// SubQuestions lists plain question blocks and one entry per video pause
// point that carries a question, in block order. Blocks without an id are
// not addressable and are skipped.
func (l *Lecture) SubQuestions() []SubQuestion {
	blocks, err := l.DecodeBlocks()
	if err != nil {
		return nil
	}
	return ExtractSubQuestions(blocks)
}

func ExtractSubQuestions(blocks []Block) []SubQuestion {
	var out []SubQuestion
	for _, b := range blocks {
		switch v := b.(type) {
		case QuestionBlock:
			out = appendQuestion(out, v)
		case VideoBlock:
			out = appendPausePoints(out, v)
		case UnknownBlock:
			// A malformed question or video block still gates its lecture.
			switch BlockKind(v.Type) {
			case BlockQuestion:
				out = appendQuestion(out, looseQuestion(v.Raw))
			case BlockVideo:
				out = appendPausePoints(out, looseVideo(v.Raw))
			}
		}
	}
	return out
}

func appendQuestion(out []SubQuestion, q QuestionBlock) []SubQuestion {
	if q.ID == "" {
		return out
	}
	return append(out, SubQuestion{ID: q.ID, Question: q})
}

func appendPausePoints(out []SubQuestion, v VideoBlock) []SubQuestion {
	if v.ID == "" {
		return out
	}
	for _, pp := range v.PausePoints {
		if pp.ID == "" || pp.Question == nil {
			continue
		}
		out = append(out, SubQuestion{
			ID:       v.ID + SubQuestionSeparator + pp.ID,
			Question: *pp.Question,
		})
	}
	return out
}

// looseQuestion reads whichever question fields decode. Choices that cannot
// be read leave the question unanswerable.
func looseQuestion(raw json.RawMessage) QuestionBlock {
	var q QuestionBlock
	if err := json.Unmarshal(raw, &q); err == nil {
		return q
	}
	q = QuestionBlock{}
	fields := looseFields(raw)
	looseField(fields, "id", &q.ID)
	looseField(fields, "prompt", &q.Prompt)
	looseField(fields, "multiple", &q.Multiple)
	if !looseField(fields, "choices", &q.Choices) {
		q.Choices = nil
	}
	return q
}

func looseVideo(raw json.RawMessage) VideoBlock {
	var v VideoBlock
	fields := looseFields(raw)
	looseField(fields, "id", &v.ID)
	looseField(fields, "url", &v.URL)
	var points []json.RawMessage
	looseField(fields, "pause_points", &points)
	for _, item := range points {
		var pp PausePoint
		pf := looseFields(item)
		looseField(pf, "id", &pp.ID)
		looseField(pf, "timestamp", &pp.Timestamp)
		if q, ok := pf["question"]; ok && string(q) != "null" {
			question := looseQuestion(q)
			pp.Question = &question
		}
		v.PausePoints = append(v.PausePoints, pp)
	}
	return v
}

func looseFields(raw json.RawMessage) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields
}

func looseField(fields map[string]json.RawMessage, key string, dst interface{}) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// FindSubQuestion returns the sub-question with the given id.
func (l *Lecture) FindSubQuestion(subID string) (SubQuestion, bool) {
	for _, sq := range l.SubQuestions() {
		if sq.ID == subID {
			return sq, true
		}
	}
	return SubQuestion{}, false
}

// DecodeBlocks fails only when the body is not a list. A block that does not
// fit its declared type is kept verbatim as an UnknownBlock.
func DecodeBlocks(raw []byte) ([]Block, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode lecture blocks: %w", err)
	}
	blocks := make([]Block, 0, len(items))
	for _, item := range items {
		blocks = append(blocks, decodeBlock(item))
	}
	return blocks, nil
}

func decodeBlock(item json.RawMessage) Block {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(item, &head); err != nil {
		return unknownBlock("", item)
	}
	var (
		b   Block
		err error
	)
	switch BlockKind(head.Type) {
	case BlockText:
		var v TextBlock
		err = json.Unmarshal(item, &v)
		b = v
	case BlockImage:
		var v ImageBlock
		err = json.Unmarshal(item, &v)
		b = v
	case BlockCode:
		var v CodeBlock
		err = json.Unmarshal(item, &v)
		b = v
	case BlockVideo:
		var v VideoBlock
		err = json.Unmarshal(item, &v)
		b = v
	case BlockQuestion:
		var v QuestionBlock
		err = json.Unmarshal(item, &v)
		b = v
	default:
		return unknownBlock(head.Type, item)
	}
	if err != nil {
		return unknownBlock(head.Type, item)
	}
	return b
}

func unknownBlock(kind string, item json.RawMessage) UnknownBlock {
	var raw bytes.Buffer
	if err := json.Compact(&raw, item); err != nil {
		return UnknownBlock{Type: kind, Raw: append(json.RawMessage(nil), item...)}
	}
	return UnknownBlock{Type: kind, Raw: raw.Bytes()}
}

func EncodeBlocks(blocks []Block) (datatypes.JSON, error) {
	items := make([]json.RawMessage, 0, len(blocks))
	for _, b := range blocks {
		if u, ok := b.(UnknownBlock); ok {
			items = append(items, u.Raw)
			continue
		}
		body, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		kind, _ := json.Marshal(string(b.BlockKind()))
		fields["type"] = kind
		item, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	out, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}
