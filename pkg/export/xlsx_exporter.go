package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct {
	sheet string
}

// NewXLSXExporter builds an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{sheet: "Report"}
}

// Render writes an optional merged title row, a styled header row, then one row per record.
func (e *XLSXExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName(defaultSheet, e.sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	row := 1
	lastCol, _ := excelize.ColumnNumberToName(len(data.Headers))
	if title != "" {
		if err := f.SetCellValue(e.sheet, "A1", title); err != nil {
			return nil, fmt.Errorf("write title: %w", err)
		}
		if len(data.Headers) > 1 {
			if err := f.MergeCell(e.sheet, "A1", lastCol+"1"); err != nil {
				return nil, fmt.Errorf("merge title: %w", err)
			}
		}
		row++
	}

	headerCells := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		headerCells[i] = h
	}
	start, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(e.sheet, start, &headerCells); err != nil {
		return nil, fmt.Errorf("write headers: %w", err)
	}
	end, _ := excelize.CoordinatesToCellName(len(data.Headers), row)
	if err := f.SetCellStyle(e.sheet, start, end, headerStyle); err != nil {
		return nil, fmt.Errorf("style headers: %w", err)
	}
	if err := f.SetColWidth(e.sheet, "A", lastCol, 22); err != nil {
		return nil, fmt.Errorf("column width: %w", err)
	}

	for _, record := range data.Rows {
		row++
		cells := make([]interface{}, len(data.Headers))
		for i, h := range data.Headers {
			cells[i] = record[h]
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(e.sheet, cell, &cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
