package sheets

import (
	"context"
	"fmt"
)

// Store is the remote table store the dashboard reads from and writes to.
// Rows and columns are 1-indexed; row 1 is the header row.
type Store interface {
	ReadAll(ctx context.Context, sheet string) ([][]string, error)
	ReadHeader(ctx context.Context, sheet string) ([]string, error)
	AppendRow(ctx context.Context, sheet string, row []string) error
	UpdateRange(ctx context.Context, sheet, a1Range string, row []string) error
	ClearRange(ctx context.Context, sheet, a1Range string) error
}

// lastDefaultColumn is the right edge of a row range when the row is
// narrower than 26 columns.
const lastDefaultColumn = 26

// ColumnLetter converts a 1-based column number to its A1 letters.
func ColumnLetter(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}

// RowRange returns the A1 range covering one physical row, A{row}:Z{row},
// widened when the row has more than 26 columns.
func RowRange(row, width int) string {
	if width < lastDefaultColumn {
		width = lastDefaultColumn
	}
	return fmt.Sprintf("A%d:%s%d", row, ColumnLetter(width), row)
}
