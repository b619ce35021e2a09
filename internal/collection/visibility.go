package collection

// ActiveSet is the derived set of questions currently visible for one
// submission's answers. It preserves schema order and is never persisted.
type ActiveSet struct {
	keys    []string
	members map[string]bool
}

// Contains reports whether a question is active.
func (s ActiveSet) Contains(key string) bool { return s.members[key] }

// Keys returns the active question keys in schema order.
func (s ActiveSet) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s ActiveSet) Len() int { return len(s.keys) }

// Resolve computes the active question set for a (schema, answers) pair in a
// single pass over the schema order. Because conditions only reference
// strictly earlier questions, each question's activity is fully decided by
// the time it is visited; no fixpoint iteration is needed.
//
// A question whose referenced question is itself inactive is inactive, even
// if a stale answer for the referenced question is still stored. Stored
// answers for inactive questions are left in place; the validator and the
// export flattener both treat them as absent.
func Resolve(s *Schema, answers AnswerSet) ActiveSet {
	members := make(map[string]bool, s.Len())
	keys := make([]string, 0, s.Len())

	for _, q := range s.questions {
		active := true
		if q.Group != "" && !members[q.Group] {
			active = false
		}
		if active && q.Condition != nil {
			c := q.Condition
			if !members[c.Question] {
				active = false
			} else {
				a, answered := answers.Get(c.Question)
				active = c.Evaluate(a, answered)
			}
		}
		if active {
			members[q.Key] = true
			keys = append(keys, q.Key)
		}
	}
	return ActiveSet{keys: keys, members: members}
}
