// Package storage keeps the history of submission runs in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/quotesmith/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidReport  = errors.New("invalid report")
	ErrRunNotFound    = errors.New("run not found")
	ErrAmbiguousRunID = errors.New("run ID prefix matches more than one run")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateReport checks the fields the schema requires.
func validateReport(report *model.Report) error {
	if report == nil {
		return fmt.Errorf("%w: report", ErrNilParameter)
	}
	if report.RunID == "" {
		return fmt.Errorf("%w: missing run ID", ErrInvalidReport)
	}
	if report.Status == "" {
		return fmt.Errorf("%w: missing status", ErrInvalidReport)
	}
	if report.StartedAt.IsZero() {
		return fmt.Errorf("%w: missing start time", ErrInvalidReport)
	}

	seen := make(map[int]bool, len(report.Rows))
	for i, row := range report.Rows {
		if seen[row.RowNumber] {
			return fmt.Errorf("%w: row at index %d repeats row number %d", ErrInvalidReport, i, row.RowNumber)
		}
		seen[row.RowNumber] = true
		if row.Outcome.Kind == "" {
			return fmt.Errorf("%w: row %d has no outcome", ErrInvalidReport, row.RowNumber)
		}
	}
	return nil
}
