// Package model defines the core domain models used throughout the application.
package model

import (
	"math"
	"strconv"
	"strings"
)

// CellKind identifies the type of value held by a spreadsheet cell.
type CellKind int

// Cell kinds.
const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
)

// Cell is a single spreadsheet value under a header.
type Cell struct {
	Header string
	Text   string
	Number float64
	Kind   CellKind
}

// NewCell builds a cell from raw text, treating finite numeric-looking text as
// a number. The text is kept as written.
func NewCell(header, text string) Cell {
	text = strings.TrimSpace(text)
	if text == "" {
		return Cell{Header: header, Kind: CellEmpty}
	}
	if n, err := strconv.ParseFloat(text, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return Cell{Header: header, Text: text, Number: n, Kind: CellNumber}
	}
	return Cell{Header: header, Text: text, Kind: CellString}
}

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty
}

// String renders the cell the way a person would read it in the sheet.
// The text is kept as written, except that a whole number with a zero
// fraction drops it, so style codes like 112.0 read as 112.
func (c Cell) String() string {
	if c.Kind == CellNumber {
		return trimZeroFraction(c.Text)
	}
	return c.Text
}

func trimZeroFraction(text string) string {
	whole, frac, ok := strings.Cut(text, ".")
	if !ok || frac == "" || strings.Trim(frac, "0") != "" {
		return text
	}
	digits := strings.TrimPrefix(whole, "-")
	if digits == "" || strings.Trim(digits, "0123456789") != "" {
		return text
	}
	return whole
}

// RawRow is one spreadsheet row as read from the workbook.
// Cells keep the header order of the sheet. A RawRow is never mutated after it is read.
type RawRow struct {
	Cells []Cell
	// Number is the 1-based row number in the sheet.
	Number int
}

// Get returns the first cell whose header matches name case-insensitively.
func (r RawRow) Get(name string) (Cell, bool) {
	for _, c := range r.Cells {
		if strings.EqualFold(strings.TrimSpace(c.Header), strings.TrimSpace(name)) {
			return c, true
		}
	}
	return Cell{}, false
}

// IsBlank reports whether every cell in the row is empty.
func (r RawRow) IsBlank() bool {
	for _, c := range r.Cells {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// Headers returns the row's headers in sheet order.
func (r RawRow) Headers() []string {
	headers := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		headers[i] = c.Header
	}
	return headers
}
