package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"legacyimport/internal"
	"legacyimport/internal/layout"
)

func TestExportRejectsToXLSX(t *testing.T) {
	out := filepath.Join(t.TempDir(), "rejects", "rejects.xlsx")
	rows := []internal.SkippedRow{
		{RowNumber: 2, Reason: internal.SkipInvalidEmail, Cells: []string{"2025/08/22", "", "Jane Doe"}},
		{RowNumber: 7, Reason: internal.SkipAlreadyImported, Email: "old@test.com", Cells: []string{"2025/08/23", "old@test.com", "Old", "3520112345671"}},
	}

	require.NoError(t, ExportRejectsToXLSX(rows, layout.Default(), out))

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	grid, err := f.GetRows(rejectsSheet)
	require.NoError(t, err)
	require.Len(t, grid, 3)

	assert.Equal(t, []string{"row_number", "reason", "timestamp", "email", "full_name"}, grid[0][:5])
	assert.Len(t, grid[0], 2+29)
	assert.Equal(t, []string{"2", "Invalid or missing email", "2025/08/22", "", "Jane Doe"}, grid[1])
	assert.Equal(t, "3520112345671", grid[2][5])
}
