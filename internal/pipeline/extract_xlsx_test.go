package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"legacyimport/internal"
)

func mkXLSX(t *testing.T, sheets map[string][][]any, order ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, f.SetCellValue(name, cell, v))
			}
		}
	}

	buf := bytes.NewBuffer(nil)
	_, err := f.WriteTo(buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseXLSXGrid(t *testing.T) {
	blob := mkXLSX(t, map[string][][]any{
		"Form Responses": {
			{"Timestamp", "Email", "Name"},
			{"2025/08/22 11:06:30 PM GMT+5", "jane@test.com", "Jane Doe"},
			{"2025/08/23 09:00:00 AM GMT+5", "ali@test.com", "Ali Khan", 3520112345671},
		},
		"Notes": {
			{"ignore me"},
		},
	}, "Form Responses", "Notes")

	grid, err := parseXLSXGrid(blob, "")
	require.NoError(t, err)
	require.Len(t, grid, 3)
	assert.Equal(t, []string{"Timestamp", "Email", "Name"}, grid[0])
	assert.Equal(t, "jane@test.com", grid[1][1])
	assert.Len(t, grid[2], 4)

	grid, err = parseXLSXGrid(blob, "Notes")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ignore me"}}, grid)

	_, err = parseXLSXGrid(blob, "Missing")
	assert.ErrorContains(t, err, `sheet "Missing" not found`)

	_, err = parseXLSXGrid([]byte("not a workbook"), "")
	assert.Error(t, err)
}

func TestLoadGridFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.xlsx")
	blob := mkXLSX(t, map[string][][]any{
		"Sheet1": {{"Timestamp", "Email", "Name"}, {"", "a@b.com", "A"}},
	}, "Sheet1")
	require.NoError(t, os.WriteFile(path, blob, 0o644))

	grid, kind, err := LoadGrid(context.Background(), path, GridOptions{})
	require.NoError(t, err)
	assert.Equal(t, internal.SourceXLSX, kind)
	assert.Len(t, grid, 2)

	_, _, err = LoadGrid(context.Background(), filepath.Join(dir, "missing.xlsx"), GridOptions{})
	assert.Error(t, err)

	other := filepath.Join(dir, "export.pdf")
	require.NoError(t, os.WriteFile(other, []byte("%PDF"), 0o644))
	_, _, err = LoadGrid(context.Background(), other, GridOptions{})
	assert.ErrorContains(t, err, "unsupported input type")
}
