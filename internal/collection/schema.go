package collection

import (
	"fmt"
	"strings"
)

// QuestionType enumerates the closed set of question shapes a collection may
// contain. A group carries no answer of its own; it gates the visibility of
// the questions nested inside it.
type QuestionType string

const (
	TypeShortText    QuestionType = "short_text"
	TypeLongText     QuestionType = "long_text"
	TypeNumber       QuestionType = "number"
	TypeDate         QuestionType = "date"
	TypeYesNo        QuestionType = "yes_no"
	TypeSingleChoice QuestionType = "single_choice"
	TypeMultiChoice  QuestionType = "multi_choice"
	TypeGroup        QuestionType = "group"
)

func normalizeQuestionType(v string) QuestionType {
	switch QuestionType(strings.TrimSpace(strings.ToLower(v))) {
	case TypeShortText, TypeLongText, TypeNumber, TypeDate, TypeYesNo,
		TypeSingleChoice, TypeMultiChoice, TypeGroup:
		return QuestionType(strings.TrimSpace(strings.ToLower(v)))
	default:
		return ""
	}
}

// Option is one selectable item of a choice question.
type Option struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Question is a single component of a collection schema. The key is stable
// and immutable once the collection is published; ordering is given by the
// question's position in the schema slice and defines both form order and
// export column order.
type Question struct {
	Key       string       `json:"key"`
	Label     string       `json:"label"`
	Section   string       `json:"section,omitempty"`
	Type      QuestionType `json:"type"`
	Required  bool         `json:"required"`
	Group     string       `json:"group,omitempty"`
	Options   []Option     `json:"options,omitempty"`
	Condition *Condition   `json:"condition,omitempty"`
}

// Schema is a validated, immutable collection definition. Constructing one
// through NewSchema guarantees every invariant a downstream consumer relies
// on: unique keys, backwards-only condition references, resolvable groups and
// option memberships. A Schema value is safe to share across goroutines;
// republishing a collection means swapping in a whole new Schema.
type Schema struct {
	key       string
	title     string
	questions []Question
	index     map[string]int
}

// SchemaError reports every construction problem found in a candidate
// schema, not just the first one. A schema that produces a SchemaError is
// rejected wholesale.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "invalid collection schema: " + strings.Join(e.Problems, "; ")
}

// NewSchema validates the ordered question list and returns an immutable
// Schema. All problems are collected before returning so callers can report
// everything in one round-trip.
func NewSchema(key, title string, questions []Question) (*Schema, error) {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	key = strings.TrimSpace(key)
	title = strings.TrimSpace(title)
	if key == "" {
		addf("collection key is required")
	}

	// Normalize every type up front so the cross-reference checks below
	// (group links, numeric predicates) see the same types the final schema
	// will carry.
	qs := make([]Question, len(questions))
	copy(qs, questions)
	for i := range qs {
		qs[i].Type = normalizeQuestionType(string(qs[i].Type))
	}

	index := make(map[string]int, len(qs))
	for i, q := range qs {
		qKey := strings.TrimSpace(q.Key)
		if qKey == "" {
			addf("question at position %d has no key", i)
			continue
		}
		if _, dup := index[qKey]; dup {
			addf("duplicate question key %q", qKey)
			continue
		}
		index[qKey] = i

		if strings.TrimSpace(q.Label) == "" {
			addf("question %q has no label", qKey)
		}
		if q.Type == "" {
			addf("question %q has unsupported type %q", qKey, questions[i].Type)
			continue
		}

		switch q.Type {
		case TypeGroup:
			if q.Required {
				addf("group %q cannot be marked required", qKey)
			}
			if len(q.Options) > 0 {
				addf("group %q cannot carry options", qKey)
			}
		case TypeSingleChoice, TypeMultiChoice:
			if len(q.Options) == 0 {
				addf("choice question %q has no options", qKey)
			}
			seen := map[string]struct{}{}
			for j, opt := range q.Options {
				optKey := strings.TrimSpace(opt.Key)
				if optKey == "" {
					addf("question %q option at position %d has no key", qKey, j)
					continue
				}
				if _, dup := seen[optKey]; dup {
					addf("question %q has duplicate option key %q", qKey, optKey)
				}
				seen[optKey] = struct{}{}
				if strings.TrimSpace(opt.Label) == "" {
					addf("question %q option %q has no label", qKey, optKey)
				}
			}
		default:
			if len(q.Options) > 0 {
				addf("question %q of type %s cannot carry options", qKey, q.Type)
			}
		}

		if q.Group != "" {
			gi, ok := index[q.Group]
			switch {
			case !ok:
				addf("question %q references unknown or later group %q", qKey, q.Group)
			case gi >= i:
				addf("question %q must appear after its group %q", qKey, q.Group)
			case qs[gi].Type != TypeGroup:
				addf("question %q references non-group question %q as its group", qKey, q.Group)
			}
		}

		if q.Condition != nil {
			validateCondition(qKey, i, *q.Condition, qs, index, addf)
		}
	}

	if len(problems) > 0 {
		return nil, &SchemaError{Problems: problems}
	}

	return &Schema{key: key, title: title, questions: qs, index: index}, nil
}

// validateCondition checks the backwards-only reference invariant plus
// predicate/referenced-type compatibility. Conditions may only reference
// questions that appear strictly earlier in the ordering, which rules out
// cycles by construction.
func validateCondition(qKey string, pos int, c Condition, questions []Question, index map[string]int, addf func(string, ...any)) {
	refKey := strings.TrimSpace(c.Question)
	if refKey == "" {
		addf("question %q condition has no referenced question", qKey)
		return
	}
	ri, ok := index[refKey]
	if !ok || ri >= pos {
		// index only holds questions already walked, so a forward reference
		// and a dangling reference both land here; self-reference hits ri==pos.
		addf("question %q condition references %q which does not appear earlier in the schema", qKey, refKey)
		return
	}
	ref := questions[ri]
	if ref.Type == TypeGroup {
		addf("question %q condition references group %q which carries no answer", qKey, refKey)
		return
	}

	switch c.Predicate {
	case PredicateAnswered, PredicateNotAnswered:
		// valid against any answerable question
	case PredicateEquals:
		if c.Value == "" {
			addf("question %q equals condition has no value", qKey)
		} else if !optionKeyExists(ref, c.Value) {
			addf("question %q equals condition value %q is not an option of %q", qKey, c.Value, refKey)
		}
	case PredicateAnyOf:
		if len(c.Values) == 0 {
			addf("question %q any_of condition has no values", qKey)
		}
		for _, v := range c.Values {
			if !optionKeyExists(ref, v) {
				addf("question %q any_of condition value %q is not an option of %q", qKey, v, refKey)
			}
		}
	case PredicateGreaterThan:
		if ref.Type != TypeNumber {
			addf("question %q greater_than condition references non-number question %q", qKey, refKey)
		}
		if c.Min == nil {
			addf("question %q greater_than condition has no minimum", qKey)
		}
	case PredicateLessThan:
		if ref.Type != TypeNumber {
			addf("question %q less_than condition references non-number question %q", qKey, refKey)
		}
		if c.Max == nil {
			addf("question %q less_than condition has no maximum", qKey)
		}
	case PredicateBetween:
		if ref.Type != TypeNumber {
			addf("question %q between condition references non-number question %q", qKey, refKey)
		}
		if c.Min == nil || c.Max == nil {
			addf("question %q between condition needs both bounds", qKey)
		} else if *c.Min > *c.Max {
			addf("question %q between condition has bottom of range above the top", qKey)
		}
	default:
		addf("question %q condition has unsupported predicate %q", qKey, c.Predicate)
	}
}

func optionKeyExists(q Question, key string) bool {
	if q.Type == TypeYesNo {
		return key == "yes" || key == "no"
	}
	for _, opt := range q.Options {
		if opt.Key == key {
			return true
		}
	}
	return false
}

func (s *Schema) Key() string { return s.key }
func (s *Schema) Title() string { return s.title }
func (s *Schema) Len() int { return len(s.questions) }

// Questions returns a copy of the ordered question list; mutating it never
// touches the schema.
func (s *Schema) Questions() []Question {
	out := make([]Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// Question resolves a question by key in O(1).
func (s *Schema) Question(key string) (Question, bool) {
	i, ok := s.index[key]
	if !ok {
		return Question{}, false
	}
	return s.questions[i], true
}
