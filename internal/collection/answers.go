package collection

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AnswerKind discriminates the closed set of typed answer values. Every
// stored answer is one of these; there is no untyped escape hatch.
type AnswerKind string

const (
	AnswerText        AnswerKind = "text"
	AnswerNumber      AnswerKind = "number"
	AnswerDate        AnswerKind = "date"
	AnswerYesNo       AnswerKind = "yes_no"
	AnswerChoice      AnswerKind = "choice"
	AnswerMultiChoice AnswerKind = "multi_choice"
)

const dateLayout = "2006-01-02"

// Answer is a typed value for one question within one submission. Only the
// field matching Kind is meaningful.
type Answer struct {
	Kind    AnswerKind
	Text    string
	Number  float64
	Date    time.Time
	YesNo   bool
	Choice  string
	Choices []string
}

func TextAnswer(v string) Answer { return Answer{Kind: AnswerText, Text: v} }
func NumberAnswer(v float64) Answer { return Answer{Kind: AnswerNumber, Number: v} }
func DateAnswer(v time.Time) Answer { return Answer{Kind: AnswerDate, Date: v} }
func YesNoAnswer(v bool) Answer { return Answer{Kind: AnswerYesNo, YesNo: v} }
func ChoiceAnswer(key string) Answer {
	return Answer{Kind: AnswerChoice, Choice: strings.TrimSpace(key)}
}

// MultiChoiceAnswer keeps the caller's selection order but drops duplicates.
func MultiChoiceAnswer(keys ...string) Answer {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return Answer{Kind: AnswerMultiChoice, Choices: out}
}

// Blank reports whether the answer is present but empty: whitespace-only
// text, an empty choice, or no selections. Numbers, dates and yes/no values
// are never blank.
func (a Answer) Blank() bool {
	switch a.Kind {
	case AnswerText:
		return strings.TrimSpace(a.Text) == ""
	case AnswerChoice:
		return a.Choice == ""
	case AnswerMultiChoice:
		return len(a.Choices) == 0
	default:
		return false
	}
}

type answerDoc struct {
	Kind    AnswerKind `json:"kind"`
	Text    *string    `json:"text,omitempty"`
	Number  *float64   `json:"number,omitempty"`
	Date    string     `json:"date,omitempty"`
	YesNo   *bool      `json:"yes_no,omitempty"`
	Choice  *string    `json:"choice,omitempty"`
	Choices []string   `json:"choices,omitempty"`
}

func (a Answer) MarshalJSON() ([]byte, error) {
	doc := answerDoc{Kind: a.Kind}
	switch a.Kind {
	case AnswerText:
		doc.Text = &a.Text
	case AnswerNumber:
		doc.Number = &a.Number
	case AnswerDate:
		doc.Date = a.Date.Format(dateLayout)
	case AnswerYesNo:
		doc.YesNo = &a.YesNo
	case AnswerChoice:
		doc.Choice = &a.Choice
	case AnswerMultiChoice:
		doc.Choices = a.Choices
		if doc.Choices == nil {
			doc.Choices = []string{}
		}
	default:
		return nil, fmt.Errorf("marshal answer: unsupported kind %q", a.Kind)
	}
	return json.Marshal(doc)
}

func (a *Answer) UnmarshalJSON(raw []byte) error {
	var doc answerDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal answer: %w", err)
	}
	out := Answer{Kind: doc.Kind}
	switch doc.Kind {
	case AnswerText:
		if doc.Text != nil {
			out.Text = *doc.Text
		}
	case AnswerNumber:
		if doc.Number == nil {
			return fmt.Errorf("unmarshal answer: number value missing")
		}
		out.Number = *doc.Number
	case AnswerDate:
		t, err := time.Parse(dateLayout, doc.Date)
		if err != nil {
			return fmt.Errorf("unmarshal answer: %w", err)
		}
		out.Date = t
	case AnswerYesNo:
		if doc.YesNo == nil {
			return fmt.Errorf("unmarshal answer: yes_no value missing")
		}
		out.YesNo = *doc.YesNo
	case AnswerChoice:
		if doc.Choice != nil {
			out.Choice = *doc.Choice
		}
	case AnswerMultiChoice:
		out = MultiChoiceAnswer(doc.Choices...)
	default:
		return fmt.Errorf("unmarshal answer: unsupported kind %q", doc.Kind)
	}
	*a = out
	return nil
}

// AnswerSet is an immutable mapping from question key to answer. Mutation
// happens by deriving a new set with With, never in place, so a set already
// handed to the resolver or flattener cannot change underneath it.
type AnswerSet struct {
	answers map[string]Answer
}

func NewAnswerSet(answers map[string]Answer) AnswerSet {
	m := make(map[string]Answer, len(answers))
	for k, v := range answers {
		m[k] = v
	}
	return AnswerSet{answers: m}
}

func (s AnswerSet) Get(key string) (Answer, bool) {
	a, ok := s.answers[key]
	return a, ok
}

func (s AnswerSet) Len() int { return len(s.answers) }

// With returns a copy of the set with one answer replaced or inserted.
func (s AnswerSet) With(key string, a Answer) AnswerSet {
	m := make(map[string]Answer, len(s.answers)+1)
	for k, v := range s.answers {
		m[k] = v
	}
	m[key] = a
	return AnswerSet{answers: m}
}

// Map returns a copy of the underlying mapping.
func (s AnswerSet) Map() map[string]Answer {
	m := make(map[string]Answer, len(s.answers))
	for k, v := range s.answers {
		m[k] = v
	}
	return m
}

// ParseAnswerDocument decodes the stored JSON answer document of a
// submission. Keys that no longer match a schema question are kept; the
// resolver and flattener treat them as stale and ignore them.
func ParseAnswerDocument(raw []byte) (AnswerSet, error) {
	if len(raw) == 0 {
		return NewAnswerSet(nil), nil
	}
	var doc map[string]Answer
	if err := json.Unmarshal(raw, &doc); err != nil {
		return AnswerSet{}, fmt.Errorf("parse answer document: %w", err)
	}
	return NewAnswerSet(doc), nil
}

// EncodeAnswerDocument serialises an answer set for JSONB storage.
func EncodeAnswerDocument(s AnswerSet) ([]byte, error) {
	if s.answers == nil {
		return []byte(`{}`), nil
	}
	raw, err := json.Marshal(s.answers)
	if err != nil {
		return nil, fmt.Errorf("encode answer document: %w", err)
	}
	return raw, nil
}
