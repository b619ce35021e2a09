package collection

// PredicateKind enumerates the supported visibility predicates. They mirror
// the managed expressions administrators can attach to a question: choice
// matching, answered-ness, and numeric range checks.
type PredicateKind string

const (
	PredicateEquals      PredicateKind = "equals"
	PredicateAnyOf       PredicateKind = "any_of"
	PredicateAnswered    PredicateKind = "answered"
	PredicateNotAnswered PredicateKind = "not_answered"
	PredicateGreaterThan PredicateKind = "greater_than"
	PredicateLessThan    PredicateKind = "less_than"
	PredicateBetween     PredicateKind = "between"
)

// Condition gates a question's visibility on a prior question's answer.
// Question names the referenced question key; which of Value/Values/Min/Max
// is consulted depends on the predicate.
type Condition struct {
	Question  string        `json:"question"`
	Predicate PredicateKind `json:"predicate"`
	Value     string        `json:"value,omitempty"`
	Values    []string      `json:"values,omitempty"`
	Min       *float64      `json:"min,omitempty"`
	Max       *float64      `json:"max,omitempty"`
}

// Evaluate applies the predicate to the referenced question's current
// answer. An absent or blank answer makes every predicate false except
// not_answered, which is the explicit inverse.
func (c Condition) Evaluate(a Answer, answered bool) bool {
	present := answered && !a.Blank()
	switch c.Predicate {
	case PredicateNotAnswered:
		return !present
	case PredicateAnswered:
		return present
	}
	if !present {
		return false
	}

	switch c.Predicate {
	case PredicateEquals:
		return answerMatchesOption(a, c.Value)
	case PredicateAnyOf:
		for _, v := range c.Values {
			if answerMatchesOption(a, v) {
				return true
			}
		}
		return false
	case PredicateGreaterThan:
		return a.Kind == AnswerNumber && c.Min != nil && a.Number > *c.Min
	case PredicateLessThan:
		return a.Kind == AnswerNumber && c.Max != nil && a.Number < *c.Max
	case PredicateBetween:
		return a.Kind == AnswerNumber && c.Min != nil && c.Max != nil &&
			a.Number >= *c.Min && a.Number <= *c.Max
	default:
		return false
	}
}

// answerMatchesOption compares an answer against a single option key. For a
// multi-choice answer the match is containment: the key must be one of the
// selected options.
func answerMatchesOption(a Answer, key string) bool {
	switch a.Kind {
	case AnswerChoice:
		return a.Choice == key
	case AnswerYesNo:
		return (key == "yes") == a.YesNo
	case AnswerMultiChoice:
		for _, c := range a.Choices {
			if c == key {
				return true
			}
		}
	}
	return false
}
