// Package seed produces synthetic submissions for load and demo data. The
// generated answers go through the same validation path as user input.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"grantflow/internal/collection"
)

type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a deterministic generator for the given seed value.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

var sampleWords = []string{
	"community", "outreach", "renovation", "research", "equipment",
	"training", "heritage", "accessibility", "workshop", "youth",
}

// AnswerSet builds a complete answer set for the schema: every question
// active at the time it is reached gets a well-typed, non-blank answer.
// Visibility is re-resolved after each answer because answering one question
// can activate the next.
func (g *Generator) AnswerSet(s *collection.Schema) collection.AnswerSet {
	answers := collection.NewAnswerSet(nil)
	for _, q := range s.Questions() {
		if q.Type == collection.TypeGroup {
			continue
		}
		active := collection.Resolve(s, answers)
		if !active.Contains(q.Key) {
			continue
		}
		answers = answers.With(q.Key, g.answerFor(q))
	}
	return answers
}

func (g *Generator) answerFor(q collection.Question) collection.Answer {
	switch q.Type {
	case collection.TypeShortText:
		return collection.TextAnswer(g.phrase(2))
	case collection.TypeLongText:
		return collection.TextAnswer(g.phrase(12))
	case collection.TypeNumber:
		return collection.NumberAnswer(float64(g.rng.Intn(100000)) / 100)
	case collection.TypeDate:
		base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
		return collection.DateAnswer(base.AddDate(0, 0, g.rng.Intn(730)))
	case collection.TypeYesNo:
		return collection.YesNoAnswer(g.rng.Intn(2) == 0)
	case collection.TypeSingleChoice:
		return collection.ChoiceAnswer(g.pickOption(q))
	case collection.TypeMultiChoice:
		n := 1 + g.rng.Intn(len(q.Options))
		keys := make([]string, 0, n)
		for _, i := range g.rng.Perm(len(q.Options))[:n] {
			keys = append(keys, q.Options[i].Key)
		}
		return collection.MultiChoiceAnswer(keys...)
	default:
		return collection.TextAnswer(g.phrase(2))
	}
}

func (g *Generator) pickOption(q collection.Question) string {
	return q.Options[g.rng.Intn(len(q.Options))].Key
}

func (g *Generator) phrase(words int) string {
	out := ""
	for i := 0; i < words; i++ {
		if i > 0 {
			out += " "
		}
		out += sampleWords[g.rng.Intn(len(sampleWords))]
	}
	return fmt.Sprintf("%s %d", out, g.rng.Intn(1000))
}
