// Package workbook reads order spreadsheets (xlsx and csv) as a stream of rows.
package workbook

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/normalize"
)

// DefaultHeaderScanRows is how many leading rows are searched for the header.
const DefaultHeaderScanRows = 10

// Options selects the sheet and controls header detection.
type Options struct {
	// Sheet is a sheet name, a 1-based sheet index, or empty for the active sheet.
	Sheet          string
	HeaderScanRows int
}

type format int

const (
	formatXLSX format = iota
	formatCSV
)

// Workbook is an opened spreadsheet with a located header row.
type Workbook struct {
	path      string
	sheet     string
	headers   []string
	headerRow int
	format    format
}

// source yields raw row values in file order with their 1-based row numbers.
type source interface {
	next() (values []string, number int, ok bool, err error)
	close() error
}

// Open validates the file, resolves the sheet, and locates the header row.
func Open(path string, opts Options) (*Workbook, error) {
	if opts.HeaderScanRows <= 0 {
		opts.HeaderScanRows = DefaultHeaderScanRows
	}

	f, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrIO, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", common.ErrIO, path)
	}

	wb := &Workbook{path: path, format: f}

	if f == formatXLSX {
		sheet, sheetErr := resolveSheet(path, opts.Sheet)
		if sheetErr != nil {
			return nil, sheetErr
		}
		wb.sheet = sheet
	}

	if err := wb.locateHeader(opts.HeaderScanRows); err != nil {
		return nil, err
	}
	return wb, nil
}

// Path returns the workbook's file path.
func (w *Workbook) Path() string { return w.path }

// Sheet returns the resolved sheet name. CSV files have none.
func (w *Workbook) Sheet() string { return w.sheet }

// Headers returns the header row's column names.
func (w *Workbook) Headers() []string {
	out := make([]string, len(w.headers))
	copy(out, w.headers)
	return out
}

// HeaderRow returns the 1-based row number of the header.
func (w *Workbook) HeaderRow() int { return w.headerRow }

// Rows streams every non-blank row below the header in file order. Each call
// reopens the file, so the sequence can be ranged over more than once. A read
// error is yielded once and ends the sequence.
func (w *Workbook) Rows() iter.Seq2[model.RawRow, error] {
	return func(yield func(model.RawRow, error) bool) {
		src, err := w.open()
		if err != nil {
			yield(model.RawRow{}, err)
			return
		}
		defer func() { _ = src.close() }()

		for {
			values, number, ok, err := src.next()
			if err != nil {
				yield(model.RawRow{}, fmt.Errorf("%w: after row %d: %w", common.ErrIO, number, err))
				return
			}
			if !ok {
				return
			}
			if number <= w.headerRow {
				continue
			}

			row := w.buildRow(number, values)
			if row.IsBlank() {
				continue
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// ReadAll collects every row.
func (w *Workbook) ReadAll() ([]model.RawRow, error) {
	var rows []model.RawRow
	for row, err := range w.Rows() {
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (w *Workbook) buildRow(number int, values []string) model.RawRow {
	width := max(len(w.headers), len(values))
	row := model.RawRow{Number: number, Cells: make([]model.Cell, 0, width)}
	for i := 0; i < width; i++ {
		var header, text string
		if i < len(w.headers) {
			header = w.headers[i]
		} else {
			header = columnName(i)
		}
		if i < len(values) {
			text = values[i]
		}
		row.Cells = append(row.Cells, model.NewCell(header, text))
	}
	return row
}

func (w *Workbook) locateHeader(scanRows int) error {
	src, err := w.open()
	if err != nil {
		return err
	}
	defer func() { _ = src.close() }()

	for {
		values, number, ok, err := src.next()
		if err != nil {
			return fmt.Errorf("%w: reading header: %w", common.ErrIO, err)
		}
		if !ok || number > scanRows {
			break
		}
		if normalize.IsHeaderRow(values) {
			w.headerRow = number
			w.headers = make([]string, len(values))
			for i, v := range values {
				w.headers[i] = strings.TrimSpace(v)
				if w.headers[i] == "" {
					w.headers[i] = columnName(i)
				}
			}
			return nil
		}
	}

	return fmt.Errorf("%w: no header row with a style or quantity column in the first %d rows", common.ErrFileFormat, scanRows)
}

func (w *Workbook) open() (source, error) {
	switch w.format {
	case formatCSV:
		return openCSV(w.path)
	default:
		return openXLSX(w.path, w.sheet)
	}
}

func detectFormat(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return formatXLSX, nil
	case ".csv":
		return formatCSV, nil
	default:
		return 0, fmt.Errorf("%w: unsupported file type %q", common.ErrFileFormat, filepath.Ext(path))
	}
}

// columnName names a header-less column by its 1-based position.
func columnName(i int) string {
	return "Column " + strconv.Itoa(i+1)
}
