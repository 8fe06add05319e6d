package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Sheet is a titled table. Documents hold one sheet per section of an export.
type Sheet struct {
	Title    string
	Subtitle []string
	Data     Dataset
}

// Document is an ordered set of sheets rendered into a single file.
type Document struct {
	Title  string
	Sheets []Sheet
}

// CSVExporter renders Dataset records into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writeTable(writer, data); err != nil {
		return nil, err
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderDocument writes every sheet one after another, each introduced by its title lines
// and separated by an empty record.
func (e *CSVExporter) RenderDocument(doc Document) ([]byte, error) {
	if len(doc.Sheets) == 0 {
		return nil, fmt.Errorf("csv document requires at least one sheet")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if doc.Title != "" {
		if err := writer.Write([]string{doc.Title}); err != nil {
			return nil, fmt.Errorf("write csv title: %w", err)
		}
	}
	for i, sheet := range doc.Sheets {
		if i > 0 || doc.Title != "" {
			if err := writer.Write([]string{""}); err != nil {
				return nil, fmt.Errorf("write csv separator: %w", err)
			}
		}
		for _, line := range append([]string{sheet.Title}, sheet.Subtitle...) {
			if line == "" {
				continue
			}
			if err := writer.Write([]string{line}); err != nil {
				return nil, fmt.Errorf("write csv sheet title: %w", err)
			}
		}
		if err := writeTable(writer, sheet.Data); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTable(writer *csv.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("csv requires at least one header")
	}
	if err := writer.Write(data.Headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	return nil
}
