package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth   = 277.0
	pdfLabelWidth  = 28.0
	pdfHeaderLine  = 8.0
	pdfCellLine    = 5.0
	pdfCellPadding = 2.0
)

// PDFExporter renders weekly grids as printable landscape pages.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render writes one page per sheet.
func (e *PDFExporter) Render(sheets []GridSheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("pdf requires at least one sheet")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, sheet := range sheets {
		if len(sheet.Columns) == 0 {
			return nil, fmt.Errorf("sheet %q has no columns", sheet.Title)
		}
		pdf.AddPage()

		if sheet.Title != "" {
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 10, tr(sheet.Title), "", 1, "C", false, 0, "")
			pdf.Ln(3)
		}

		colWidth := (pdfPageWidth - pdfLabelWidth) / float64(len(sheet.Columns))

		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(220, 228, 242)
		pdf.CellFormat(pdfLabelWidth, pdfHeaderLine, "", "1", 0, "C", true, 0, "")
		for _, col := range sheet.Columns {
			pdf.CellFormat(colWidth, pdfHeaderLine, tr(col), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 7)
		for _, row := range sheet.Rows {
			height := rowHeight(pdf, row.Cells, colWidth)
			x, y := pdf.GetXY()
			pdf.SetFont("Arial", "B", 8)
			pdf.CellFormat(pdfLabelWidth, height, tr(row.Label), "1", 0, "C", false, 0, "")
			pdf.SetFont("Arial", "", 7)
			for i := range sheet.Columns {
				cellX := x + pdfLabelWidth + float64(i)*colWidth
				pdf.Rect(cellX, y, colWidth, height, "D")
				if i < len(row.Cells) && row.Cells[i] != "" {
					pdf.SetXY(cellX, y+pdfCellPadding/2)
					pdf.MultiCell(colWidth, pdfCellLine, tr(row.Cells[i]), "", "C", false)
				}
			}
			pdf.SetXY(x, y+height)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func rowHeight(pdf *gofpdf.Fpdf, cells []string, width float64) float64 {
	lines := 1
	for _, cell := range cells {
		if n := len(pdf.SplitLines([]byte(cell), width)); n > lines {
			lines = n
		}
	}
	return float64(lines)*pdfCellLine + pdfCellPadding
}
