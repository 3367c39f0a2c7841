package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSXExporter renders weekly grids into a workbook, one worksheet per grid.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render builds the workbook bytes.
func (e *XLSXExporter) Render(sheets []GridSheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one sheet")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create cell style: %w", err)
	}

	used := make(map[string]int)
	for i, sheet := range sheets {
		name := uniqueSheetName(sheetName(sheet.Title, i), used)
		idx, err := f.NewSheet(name)
		if err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := writeGrid(f, name, sheet, headerStyle, cellStyle); err != nil {
			return nil, err
		}
	}
	if _, taken := used[defaultSheet]; !taken {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return nil, fmt.Errorf("drop default sheet: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeGrid(f *excelize.File, name string, sheet GridSheet, headerStyle, cellStyle int) error {
	header := make([]interface{}, 0, len(sheet.Columns)+1)
	header = append(header, "Day")
	for _, col := range sheet.Columns {
		header = append(header, col)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write header on %s: %w", name, err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header on %s: %w", name, err)
	}

	for r, row := range sheet.Rows {
		values := make([]interface{}, 0, len(sheet.Columns)+1)
		values = append(values, row.Label)
		for i := range sheet.Columns {
			cell := ""
			if i < len(row.Cells) {
				cell = row.Cells[i]
			}
			values = append(values, cell)
		}
		ref, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, ref, &values); err != nil {
			return fmt.Errorf("write row %d on %s: %w", r+2, name, err)
		}
	}
	if len(sheet.Rows) > 0 {
		last := fmt.Sprintf("%s%d", lastCol, len(sheet.Rows)+1)
		if err := f.SetCellStyle(name, "B2", last, cellStyle); err != nil {
			return fmt.Errorf("style cells on %s: %w", name, err)
		}
	}

	if err := f.SetColWidth(name, "A", "A", 12); err != nil {
		return err
	}
	if len(sheet.Columns) > 0 {
		return f.SetColWidth(name, "B", lastCol, 26)
	}
	return nil
}

// sheetName strips characters excel rejects and enforces the 31 rune limit.
func sheetName(title string, index int) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '?', '*', '[', ']', ':':
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if cleaned == "" {
		cleaned = fmt.Sprintf("Timetable %d", index+1)
	}
	if runes := []rune(cleaned); len(runes) > 31 {
		cleaned = string(runes[:31])
	}
	return cleaned
}

func uniqueSheetName(name string, used map[string]int) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	suffix := fmt.Sprintf(" (%d)", n+1)
	runes := []rune(name)
	if len(runes)+len(suffix) > 31 {
		runes = runes[:31-len(suffix)]
	}
	unique := string(runes) + suffix
	used[unique]++
	return unique
}
