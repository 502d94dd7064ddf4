// Package orders builds order spreadsheets for tests. It offers a fluent API
// for laying out title rows, headers, and data rows and writes the result as
// an xlsx or csv file inside the test's temp directory.
//
// Example usage:
//
//	path := orders.NewBuilder(t).
//		WithTitle("Spring Order Form").
//		WithFixture(orders.WideOrder).
//		WriteXLSX()
package orders

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet name xlsx files are written with.
const DefaultSheet = "Sheet1"

// Builder lays out an order sheet row by row.
type Builder interface {
	// WithTitle adds a title row followed by a blank row above the header.
	WithTitle(title string) Builder

	// WithHeaders sets the header row.
	WithHeaders(headers ...string) Builder

	// WithRow adds a data row. Values are written as given, so numbers stay
	// numeric in xlsx output.
	WithRow(values ...any) Builder

	// WithBlankRow adds an empty row.
	WithBlankRow() Builder

	// WithFixture replaces the header and data rows with a predefined order.
	WithFixture(fixture Fixture) Builder

	// WithSheet names the xlsx sheet.
	WithSheet(name string) Builder

	// Rows returns the laid out rows, title rows included.
	Rows() [][]any

	// WriteXLSX saves the sheet as an xlsx file and returns its path.
	WriteXLSX() string

	// WriteCSV saves the sheet as a csv file and returns its path.
	WriteCSV() string
}

type builder struct {
	t       *testing.T
	sheet   string
	title   []any
	headers []any
	rows    [][]any
}

// NewBuilder creates an empty builder bound to t.
func NewBuilder(t *testing.T) Builder {
	t.Helper()
	return &builder{t: t, sheet: DefaultSheet}
}

func (b *builder) WithTitle(title string) Builder {
	b.title = []any{title}
	return b
}

func (b *builder) WithHeaders(headers ...string) Builder {
	b.headers = make([]any, len(headers))
	for i, h := range headers {
		b.headers[i] = h
	}
	return b
}

func (b *builder) WithRow(values ...any) Builder {
	b.rows = append(b.rows, values)
	return b
}

func (b *builder) WithBlankRow() Builder {
	b.rows = append(b.rows, nil)
	return b
}

func (b *builder) WithFixture(fixture Fixture) Builder {
	b.WithHeaders(fixture.Headers...)
	b.rows = append([][]any(nil), fixture.Rows...)
	return b
}

func (b *builder) WithSheet(name string) Builder {
	b.sheet = name
	return b
}

func (b *builder) Rows() [][]any {
	var out [][]any
	if b.title != nil {
		out = append(out, b.title, nil)
	}
	if b.headers != nil {
		out = append(out, b.headers)
	}
	return append(out, b.rows...)
}

func (b *builder) WriteXLSX() string {
	b.t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if b.sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, b.sheet); err != nil {
			b.t.Fatalf("failed to name sheet %q: %v", b.sheet, err)
		}
	}

	for r, row := range b.Rows() {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				b.t.Fatalf("invalid cell at row %d column %d: %v", r+1, c+1, err)
			}
			if err := f.SetCellValue(b.sheet, cell, value); err != nil {
				b.t.Fatalf("failed to set %s: %v", cell, err)
			}
		}
	}

	path := filepath.Join(b.t.TempDir(), "order.xlsx")
	if err := f.SaveAs(path); err != nil {
		b.t.Fatalf("failed to save workbook: %v", err)
	}
	return path
}

func (b *builder) WriteCSV() string {
	b.t.Helper()

	path := filepath.Join(b.t.TempDir(), "order.csv")
	file, err := os.Create(path)
	if err != nil {
		b.t.Fatalf("failed to create csv: %v", err)
	}
	defer func() { _ = file.Close() }()

	w := csv.NewWriter(file)
	for _, row := range b.Rows() {
		record := make([]string, len(row))
		for i, value := range row {
			record[i] = fmt.Sprint(value)
		}
		if err := w.Write(record); err != nil {
			b.t.Fatalf("failed to write csv row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		b.t.Fatalf("failed to flush csv: %v", err)
	}
	return path
}
