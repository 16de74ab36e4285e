package export

import (
	"fmt"
	"io"

	"casenotes/pkg/table"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// WriteWorkbook writes each snapshot to its own worksheet, header first.
// Dates are written as MM/DD/YYYY text, matching the source sheets.
func WriteWorkbook(w io.Writer, snaps ...*table.Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, snap := range snaps {
		name := snap.Schema.Sheet
		idx, err := f.NewSheet(name)
		if err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := writeRow(f, name, 1, snap.Columns); err != nil {
			return err
		}
		for j, rec := range snap.Records {
			if err := writeRow(f, name, j+2, snap.Serialize(rec)); err != nil {
				return err
			}
		}
	}
	if len(snaps) > 0 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return fmt.Errorf("failed to drop default sheet: %w", err)
		}
	}
	return f.Write(w)
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}
