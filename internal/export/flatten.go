package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"grantflow/internal/collection"
)

// Export cell markers. A question that was never asked of a submission is
// distinct from one that was asked and left blank, and both are distinct
// from any real answer value.
const (
	NotAskedMarker    = "[not asked]"
	NotAnsweredMarker = "[not answered]"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02 15:04:05"
)

// CellState is the three-valued state of one export cell.
type CellState int

const (
	CellNotApplicable CellState = iota
	CellBlank
	CellValue
)

type Cell struct {
	State CellState
	Value string
}

// ParseCell inverts cellString, mapping marker text back to cell state. It
// is the reference decoder for round-trip checks against written output.
func ParseCell(s string) Cell {
	switch s {
	case NotAskedMarker:
		return Cell{State: CellNotApplicable}
	case NotAnsweredMarker, "":
		return Cell{State: CellBlank}
	default:
		return Cell{State: CellValue, Value: s}
	}
}

func cellString(c Cell) string {
	switch c.State {
	case CellNotApplicable:
		return NotAskedMarker
	case CellBlank:
		return NotAnsweredMarker
	default:
		return c.Value
	}
}

// MetadataHeaders are the fixed leading columns of every export, before any
// question columns.
var MetadataHeaders = []string{
	"Submission reference",
	"Created by",
	"Created at",
	"Status",
	"Submitted at",
}

// Column is one export column. Key is empty for metadata columns and the
// question key otherwise.
type Column struct {
	Key    string
	Header string
}

// SubmissionRecord is one materialised submission as supplied by the
// persistence layer: export metadata plus the raw answer set.
type SubmissionRecord struct {
	Reference   string
	CreatedBy   string
	CreatedAt   time.Time
	Status      string
	SubmittedAt *time.Time
	Answers     collection.AnswerSet
}

// FlatteningError means a value cannot be rendered safely in the chosen
// tabular encoding. The whole export batch fails rather than producing a
// silently corrupt file.
type FlatteningError struct {
	Question string
	Reason   string
}

func (e *FlatteningError) Error() string {
	return fmt.Sprintf("cannot flatten %s: %s", e.Question, e.Reason)
}

type Options struct {
	// Delimiter joins multi-choice selections into one cell. Defaults to ",".
	Delimiter string
}

// Flattener turns heterogeneous, conditionally-shaped submissions into rows
// of a single rectangular table. The column set is derived from the schema
// alone so it is stable across batches; RestrictTo narrows it to the
// branches a particular batch actually took. A Flattener holds no per-batch
// state beyond its column list, so each row is an O(questions) transform and
// arbitrarily many submissions can stream through one instance.
type Flattener struct {
	schema  *collection.Schema
	delim   string
	columns []Column
}

// NewFlattener builds the column model and verifies the multi-choice
// delimiter cannot collide with any option label. The collision check runs
// here, at construction, so a doomed export fails before the first row is
// written.
func NewFlattener(schema *collection.Schema, opts Options) (*Flattener, error) {
	delim := opts.Delimiter
	if delim == "" {
		delim = ","
	}

	for _, q := range schema.Questions() {
		if q.Type != collection.TypeMultiChoice {
			continue
		}
		for _, opt := range q.Options {
			if strings.Contains(opt.Label, delim) {
				return nil, &FlatteningError{
					Question: q.Key,
					Reason:   fmt.Sprintf("option label %q contains the delimiter %q", opt.Label, delim),
				}
			}
		}
	}

	columns := make([]Column, 0, len(MetadataHeaders)+schema.Len())
	for _, h := range MetadataHeaders {
		columns = append(columns, Column{Header: h})
	}
	for _, q := range schema.Questions() {
		if q.Type == collection.TypeGroup {
			continue
		}
		columns = append(columns, Column{Key: q.Key, Header: questionHeader(q)})
	}

	return &Flattener{schema: schema, delim: delim, columns: columns}, nil
}

func questionHeader(q collection.Question) string {
	if q.Section != "" {
		return "[" + q.Section + "] " + q.Label
	}
	return q.Label
}

// Columns returns the current column model in schema order.
func (f *Flattener) Columns() []Column {
	out := make([]Column, len(f.columns))
	copy(out, f.columns)
	return out
}

func (f *Flattener) headers() []string {
	out := make([]string, len(f.columns))
	for i, c := range f.columns {
		out[i] = c.Header
	}
	return out
}

// RestrictTo drops question columns not present in the given active-key
// union. Metadata columns and schema order are preserved, so restricting is
// permutation-invariant with respect to the submissions that produced the
// union.
func (f *Flattener) RestrictTo(active map[string]bool) {
	kept := f.columns[:0]
	for _, c := range f.columns {
		if c.Key == "" || active[c.Key] {
			kept = append(kept, c)
		}
	}
	f.columns = kept
}

// UnionActive computes the set of questions active in at least one of the
// given submissions. It is the pre-pass input for RestrictTo.
func UnionActive(schema *collection.Schema, records []SubmissionRecord) map[string]bool {
	union := make(map[string]bool)
	for _, rec := range records {
		active := collection.Resolve(schema, rec.Answers)
		for _, k := range active.Keys() {
			union[k] = true
		}
	}
	return union
}

// Row flattens one submission against the column model. Cells for questions
// inactive for this submission are marked not-applicable even when a stale
// answer is still stored; a stored answer whose kind contradicts the schema
// surfaces as a type-mismatch error because at export time that means
// upstream corruption, not user input.
func (f *Flattener) Row(rec SubmissionRecord) ([]Cell, error) {
	active := collection.Resolve(f.schema, rec.Answers)

	cells := make([]Cell, 0, len(f.columns))
	for _, col := range f.columns {
		if col.Key == "" {
			cells = append(cells, metadataCell(col.Header, rec))
			continue
		}
		q, ok := f.schema.Question(col.Key)
		if !ok {
			return nil, &FlatteningError{Question: col.Key, Reason: "column does not match a schema question"}
		}
		if !active.Contains(col.Key) {
			cells = append(cells, Cell{State: CellNotApplicable})
			continue
		}
		a, answered := rec.Answers.Get(col.Key)
		if !answered {
			cells = append(cells, Cell{State: CellBlank})
			continue
		}
		// Kind check comes before the blank check: a mistyped answer is
		// corruption even when its value happens to be empty.
		if !collection.TypeAcceptsKind(q.Type, a.Kind) {
			return nil, fmt.Errorf("submission %s: %w", rec.Reference,
				&collection.TypeMismatchError{Question: q.Key, Want: q.Type, Got: a.Kind})
		}
		if a.Blank() {
			cells = append(cells, Cell{State: CellBlank})
			continue
		}
		v := f.renderValue(q, a)
		if v == "" {
			cells = append(cells, Cell{State: CellBlank})
			continue
		}
		cells = append(cells, Cell{State: CellValue, Value: v})
	}
	return cells, nil
}

func metadataCell(header string, rec SubmissionRecord) Cell {
	switch header {
	case "Submission reference":
		return valueCell(rec.Reference)
	case "Created by":
		return valueCell(rec.CreatedBy)
	case "Created at":
		return valueCell(rec.CreatedAt.UTC().Format(timeLayout))
	case "Status":
		return valueCell(rec.Status)
	case "Submitted at":
		if rec.SubmittedAt == nil {
			return Cell{State: CellBlank}
		}
		return valueCell(rec.SubmittedAt.UTC().Format(timeLayout))
	default:
		return Cell{State: CellBlank}
	}
}

func valueCell(v string) Cell {
	if v == "" {
		return Cell{State: CellBlank}
	}
	return Cell{State: CellValue, Value: v}
}

func (f *Flattener) renderValue(q collection.Question, a collection.Answer) string {
	switch a.Kind {
	case collection.AnswerText:
		return a.Text
	case collection.AnswerNumber:
		return strconv.FormatFloat(a.Number, 'f', -1, 64)
	case collection.AnswerDate:
		return a.Date.Format(dateLayout)
	case collection.AnswerYesNo:
		if a.YesNo {
			return "Yes"
		}
		return "No"
	case collection.AnswerChoice:
		return optionLabel(q, a.Choice)
	case collection.AnswerMultiChoice:
		labels := make([]string, 0, len(a.Choices))
		for _, key := range a.Choices {
			labels = append(labels, optionLabel(q, key))
		}
		return strings.Join(labels, f.delim)
	default:
		return ""
	}
}

// optionLabel falls back to the raw key for selections whose option has
// since been removed from the schema.
func optionLabel(q collection.Question, key string) string {
	for _, opt := range q.Options {
		if opt.Key == key {
			return opt.Label
		}
	}
	return key
}
