package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX streams the source into a single-sheet workbook using the
// excelize stream writer, keeping memory flat regardless of batch size. Cell
// semantics match the CSV encoding, including the three-valued markers.
func WriteXLSX(ctx context.Context, w io.Writer, f *Flattener, src SubmissionSource) (int64, error) {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	sheet := book.GetSheetName(0)
	sw, err := book.NewStreamWriter(sheet)
	if err != nil {
		return 0, fmt.Errorf("open stream writer: %w", err)
	}

	headers := f.headers()
	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	cell, _ := excelize.CoordinatesToCellName(1, 1)
	if err := sw.SetRow(cell, headerRow); err != nil {
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
		values := make([]interface{}, len(cells))
		for i, c := range cells {
			values[i] = cellString(c)
		}
		cell, _ := excelize.CoordinatesToCellName(1, int(rows)+2)
		if err := sw.SetRow(cell, values); err != nil {
			return rows, fmt.Errorf("write row: %w", err)
		}
		rows++
	}

	if err := sw.Flush(); err != nil {
		return rows, fmt.Errorf("flush sheet: %w", err)
	}
	if err := book.Write(w); err != nil {
		return rows, fmt.Errorf("write workbook: %w", err)
	}
	return rows, nil
}
