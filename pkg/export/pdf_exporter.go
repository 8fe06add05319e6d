package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// landscapeColumns is the column count from which a sheet is laid out on a landscape page.
const landscapeColumns = 8

// PDFExporter renders datasets into tabular PDF pages.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	return e.RenderDocument(Document{Sheets: []Sheet{{Title: title, Data: data}}})
}

// RenderDocument places every sheet on its own page. Wide sheets such as room grids switch to
// landscape orientation.
func (e *PDFExporter) RenderDocument(doc Document) ([]byte, error) {
	if len(doc.Sheets) == 0 {
		return nil, fmt.Errorf("pdf document requires at least one sheet")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	if doc.Title != "" {
		pdf.SetTitle(doc.Title, true)
	}

	for _, sheet := range doc.Sheets {
		if len(sheet.Data.Headers) == 0 {
			return nil, fmt.Errorf("pdf requires at least one header")
		}
		orientation := "P"
		if len(sheet.Data.Headers) >= landscapeColumns {
			orientation = "L"
		}
		pdf.AddPageFormat(orientation, gofpdf.SizeType{Wd: 210, Ht: 297})
		writeSheet(pdf, sheet)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(pdf *gofpdf.Fpdf, sheet Sheet) {
	if sheet.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(sheet.Title), "", 1, "C", false, 0, "")
	}
	if len(sheet.Subtitle) > 0 {
		pdf.SetFont("Arial", "", 10)
		for _, line := range sheet.Subtitle {
			pdf.CellFormat(0, 6, line, "", 1, "C", false, 0, "")
		}
	}
	pdf.Ln(5)

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colWidth := (pageWidth - left - right) / float64(len(sheet.Data.Headers))

	pdf.SetFont("Arial", "B", 9)
	for _, header := range sheet.Data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range sheet.Data.Rows {
		for _, header := range sheet.Data.Headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
}
