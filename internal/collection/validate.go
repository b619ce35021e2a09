package collection

import (
	"fmt"
	"strings"
)

// TypeMismatch records one answer whose stored kind does not match its
// question's declared type.
type TypeMismatch struct {
	Question string       `json:"question"`
	Want     QuestionType `json:"want"`
	Got      AnswerKind   `json:"got"`
}

// ValidationResult aggregates every finalize-time violation so the caller
// can report all problems in one round-trip. Missing lists required, active
// questions lacking a well-typed, non-blank answer; Mismatches lists active
// answers whose kind contradicts the question type.
type ValidationResult struct {
	Missing    []string
	Mismatches []TypeMismatch
}

func (r *ValidationResult) OK() bool {
	return len(r.Missing) == 0 && len(r.Mismatches) == 0
}

// Err converts a failed result into a ValidationError, or nil when clean.
func (r *ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	return &ValidationError{Missing: r.Missing, Mismatches: r.Mismatches}
}

// ValidationError is the finalize-rejection error. It carries the complete
// violation lists, never just the first problem found.
type ValidationError struct {
	Missing    []string       `json:"missing,omitempty"`
	Mismatches []TypeMismatch `json:"type_mismatches,omitempty"`
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "incomplete submission: missing "+strings.Join(e.Missing, ", "))
	}
	for _, m := range e.Mismatches {
		parts = append(parts, fmt.Sprintf("type mismatch on %s: want %s, got %s", m.Question, m.Want, m.Got))
	}
	return strings.Join(parts, "; ")
}

// TypeMismatchError rejects a single answer at input time, before it is
// stored.
type TypeMismatchError struct {
	Question string
	Want     QuestionType
	Got      AnswerKind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("answer for %s must be %s, got %s", e.Question, e.Want, e.Got)
}

// TypeAcceptsKind reports whether an answer kind satisfies a question type.
func TypeAcceptsKind(t QuestionType, k AnswerKind) bool {
	switch t {
	case TypeShortText, TypeLongText:
		return k == AnswerText
	case TypeNumber:
		return k == AnswerNumber
	case TypeDate:
		return k == AnswerDate
	case TypeYesNo:
		return k == AnswerYesNo
	case TypeSingleChoice:
		return k == AnswerChoice
	case TypeMultiChoice:
		return k == AnswerMultiChoice
	default:
		return false
	}
}

// Validate checks an answer set against the currently active questions. It
// is pure: no side effects, deterministic output, and it never fails fast.
// Answers stored for questions that have since become inactive are ignored
// entirely, so re-validating after a branch change never reports a hidden
// question as missing.
func Validate(s *Schema, answers AnswerSet) *ValidationResult {
	active := Resolve(s, answers)
	res := &ValidationResult{}

	for _, q := range s.questions {
		if q.Type == TypeGroup || !active.Contains(q.Key) {
			continue
		}
		a, answered := answers.Get(q.Key)
		if answered && !TypeAcceptsKind(q.Type, a.Kind) {
			res.Mismatches = append(res.Mismatches, TypeMismatch{Question: q.Key, Want: q.Type, Got: a.Kind})
			if q.Required {
				// A mistyped answer does not satisfy a required question.
				res.Missing = append(res.Missing, q.Key)
			}
			continue
		}
		if q.Required && (!answered || a.Blank()) {
			res.Missing = append(res.Missing, q.Key)
		}
	}
	return res
}
