package workbook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/xuri/excelize/v2"
)

type xlsxSource struct {
	file   *excelize.File
	rows   *excelize.Rows
	number int
}

func openXLSX(path, sheet string) (*xlsxSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", common.ErrFileFormat, path, err)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: reading sheet %q: %w", common.ErrFileFormat, sheet, err)
	}
	return &xlsxSource{file: f, rows: rows}, nil
}

// next advances one sheet row. The excelize iterator visits gap rows too, so
// the counter matches the sheet's row numbers.
func (s *xlsxSource) next() ([]string, int, bool, error) {
	if !s.rows.Next() {
		return nil, s.number, false, s.rows.Error()
	}
	s.number++
	values, err := s.rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, s.number, false, err
	}
	return values, s.number, true, nil
}

func (s *xlsxSource) close() error {
	rowsErr := s.rows.Close()
	fileErr := s.file.Close()
	if rowsErr != nil {
		return rowsErr
	}
	return fileErr
}

// resolveSheet maps a sheet selector onto a sheet name.
func resolveSheet(path, selector string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: opening %s: %w", common.ErrFileFormat, path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("%w: workbook has no sheets", common.ErrFileFormat)
	}

	selector = strings.TrimSpace(selector)
	if selector == "" {
		return f.GetSheetName(f.GetActiveSheetIndex()), nil
	}

	for _, name := range sheets {
		if strings.EqualFold(name, selector) {
			return name, nil
		}
	}

	if idx, convErr := strconv.Atoi(selector); convErr == nil {
		if idx >= 1 && idx <= len(sheets) {
			return sheets[idx-1], nil
		}
		return "", fmt.Errorf("%w: sheet index %d out of range (workbook has %d sheets)", common.ErrFileFormat, idx, len(sheets))
	}

	return "", fmt.Errorf("%w: sheet %q not found (available: %s)", common.ErrFileFormat, selector, strings.Join(sheets, ", "))
}
