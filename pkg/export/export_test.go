package export

import (
	"bytes"
	"testing"
	"time"

	"casenotes/pkg/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	grit := table.NewSnapshot(table.GRIT, [][]string{
		{"Youth Name", "Date", "", "Case Notes"},
		{"Alex", "1/5/2024", "x", "intake"},
		{},
		{"Sam", "bad", "", "note"},
	}, time.Now())
	ipe := table.EmptySnapshot(table.IPE)

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, grit, ipe))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"GRIT", "IPE"}, f.GetSheetList())
	rows, err := f.GetRows("GRIT")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Youth Name", "Date", "empty_1", "Case Notes"}, rows[0])
	assert.Equal(t, []string{"Alex", "01/05/2024", "x", "intake"}, rows[1])
	for _, cell := range rows[2] {
		assert.Empty(t, cell)
	}
	assert.Equal(t, []string{"Sam", "", "", "note"}, rows[3])
}
