package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
)

// SubmissionSource yields submissions one at a time. Next returns (nil, nil)
// once the source is exhausted, so an export never holds more than one
// submission in memory.
type SubmissionSource interface {
	Next(ctx context.Context) (*SubmissionRecord, error)
}

// SliceSource adapts an in-memory batch to SubmissionSource. The HTTP path
// streams straight from the database instead.
type SliceSource struct {
	records []SubmissionRecord
	pos     int
}

func NewSliceSource(records []SubmissionRecord) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next(ctx context.Context) (*SubmissionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.records) {
		return nil, nil
	}
	rec := s.records[s.pos]
	s.pos++
	return &rec, nil
}

// WriteCSV streams the source through the flattener as RFC 4180 CSV: one
// header row, then one row per submission. It returns the number of data
// rows written. On error the output is truncated mid-stream; callers must
// treat a non-nil error as an incomplete file.
func WriteCSV(ctx context.Context, w io.Writer, f *Flattener, src SubmissionSource) (int64, error) {
	cw := csv.NewWriter(w)

	if err := cw.Write(f.headers()); err != nil {
		return 0, fmt.Errorf("write header row: %w", err)
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

		cells, err := f.Row(*rec)
		if err != nil {
			return rows, err
		}
		fields := make([]string, len(cells))
		for i, c := range cells {
			fields[i] = cellString(c)
		}
		if err := cw.Write(fields); err != nil {
			return rows, fmt.Errorf("write row: %w", err)
		}
		rows++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, fmt.Errorf("flush csv: %w", err)
	}
	return rows, nil
}
