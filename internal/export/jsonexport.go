package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"grantflow/internal/collection"
)

type jsonTask struct {
	Section string         `json:"section"`
	Answers map[string]any `json:"answers"`
}

type jsonSubmission struct {
	Reference   string     `json:"reference"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   string     `json:"created_at"`
	Status      string     `json:"status"`
	SubmittedAt *string    `json:"submitted_at"`
	Tasks       []jsonTask `json:"tasks"`
}

// WriteJSON streams the source as a JSON document of the form
// {"submissions":[...]}. Unlike the tabular encodings it keeps answers
// typed: numbers stay numbers, yes/no becomes a boolean, multi-choice stays
// an array. Questions inactive for a submission are omitted entirely and
// active unanswered questions are null, so the three cell states survive the
// format change. Each submission is encoded and written individually.
func WriteJSON(ctx context.Context, w io.Writer, f *Flattener, src SubmissionSource) (int64, error) {
	if _, err := io.WriteString(w, `{"submissions":[`); err != nil {
		return 0, fmt.Errorf("write json preamble: %w", err)
	}

	var rows int64
	for {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		rec, err := src.Next(ctx)
		if err != nil {
			return rows, fmt.Errorf("read submission: %w", err)
		}
		if rec == nil {
			break
		}

		sub, err := f.jsonSubmission(*rec)
		if err != nil {
			return rows, err
		}
		b, err := json.Marshal(sub)
		if err != nil {
			return rows, fmt.Errorf("encode submission %s: %w", rec.Reference, err)
		}
		if rows > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return rows, fmt.Errorf("write json separator: %w", err)
			}
		}
		if _, err := w.Write(b); err != nil {
			return rows, fmt.Errorf("write submission: %w", err)
		}
		rows++
	}

	if _, err := io.WriteString(w, "]}"); err != nil {
		return rows, fmt.Errorf("write json epilogue: %w", err)
	}
	return rows, nil
}

func (f *Flattener) jsonSubmission(rec SubmissionRecord) (jsonSubmission, error) {
	active := collection.Resolve(f.schema, rec.Answers)

	var tasks []jsonTask
	taskIndex := make(map[string]int)
	for _, q := range f.schema.Questions() {
		if q.Type == collection.TypeGroup || !active.Contains(q.Key) {
			continue
		}
		idx, ok := taskIndex[q.Section]
		if !ok {
			idx = len(tasks)
			taskIndex[q.Section] = idx
			tasks = append(tasks, jsonTask{Section: q.Section, Answers: make(map[string]any)})
		}

		a, answered := rec.Answers.Get(q.Key)
		if !answered {
			tasks[idx].Answers[q.Label] = nil
			continue
		}
		if !collection.TypeAcceptsKind(q.Type, a.Kind) {
			return jsonSubmission{}, fmt.Errorf("submission %s: %w", rec.Reference,
				&collection.TypeMismatchError{Question: q.Key, Want: q.Type, Got: a.Kind})
		}
		if a.Blank() {
			tasks[idx].Answers[q.Label] = nil
			continue
		}
		tasks[idx].Answers[q.Label] = jsonValue(q, a)
	}
	if tasks == nil {
		tasks = []jsonTask{}
	}

	sub := jsonSubmission{
		Reference: rec.Reference,
		CreatedBy: rec.CreatedBy,
		CreatedAt: rec.CreatedAt.UTC().Format(timeLayout),
		Status:    rec.Status,
		Tasks:     tasks,
	}
	if rec.SubmittedAt != nil {
		s := rec.SubmittedAt.UTC().Format(timeLayout)
		sub.SubmittedAt = &s
	}
	return sub, nil
}

func jsonValue(q collection.Question, a collection.Answer) any {
	switch a.Kind {
	case collection.AnswerText:
		return a.Text
	case collection.AnswerNumber:
		return a.Number
	case collection.AnswerDate:
		return a.Date.Format(dateLayout)
	case collection.AnswerYesNo:
		return a.YesNo
	case collection.AnswerChoice:
		return optionLabel(q, a.Choice)
	case collection.AnswerMultiChoice:
		labels := make([]string, 0, len(a.Choices))
		for _, key := range a.Choices {
			labels = append(labels, optionLabel(q, key))
		}
		return labels
	default:
		return nil
	}
}
