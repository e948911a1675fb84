package pipeline

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"legacyimport/internal"
	"legacyimport/internal/layout"
)

const rejectsSheet = "Rejects"

// ExportRejectsToXLSX writes skipped rows for manual remediation: row number and
// reason first, then the original cells under the layout's column names.
func ExportRejectsToXLSX(rows []internal.SkippedRow, l layout.Layout, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), rejectsSheet); err != nil {
		return err
	}

	width := len(l.Columns())
	for _, row := range rows {
		if len(row.Cells) > width {
			width = len(row.Cells)
		}
	}

	headers := []any{"row_number", "reason"}
	for i := 0; i < width; i++ {
		headers = append(headers, l.Header(i))
	}
	if err := f.SetSheetRow(rejectsSheet, "A1", &headers); err != nil {
		return err
	}

	for i, row := range rows {
		values := make([]any, 0, 2+len(row.Cells))
		values = append(values, row.RowNumber, string(row.Reason))
		for _, c := range row.Cells {
			values = append(values, c)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(rejectsSheet, cell, &values); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return errors.Wrapf(f.SaveAs(outputPath), "save %s", outputPath)
}
