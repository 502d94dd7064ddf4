package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/service"
)

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 20

// SaveReport stores a report and its row outcomes. Saving a run ID again
// replaces the earlier copy.
func (s *SQLiteStorage) SaveReport(ctx context.Context, report *model.Report) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReport(report); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var finishedAt sql.NullTime
	if !report.FinishedAt.IsZero() {
		finishedAt = sql.NullTime{Time: report.FinishedAt.UTC(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, workbook, sheet, status, abort_reason, abort_kind,
			customer_id, order_id, order_url, dry_run, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workbook = excluded.workbook,
			sheet = excluded.sheet,
			status = excluded.status,
			abort_reason = excluded.abort_reason,
			abort_kind = excluded.abort_kind,
			customer_id = excluded.customer_id,
			order_id = excluded.order_id,
			order_url = excluded.order_url,
			dry_run = excluded.dry_run,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		report.RunID, report.Workbook, report.Sheet, string(report.Status),
		report.AbortReason, string(report.AbortKind), report.CustomerID,
		report.OrderID, report.OrderURL, report.DryRun,
		report.StartedAt.UTC(), finishedAt)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", report.RunID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM row_outcomes WHERE run_id = ?`, report.RunID); err != nil {
		return fmt.Errorf("failed to clear row outcomes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO row_outcomes (run_id, row_number, state, outcome, order_id,
			line_item_id, reason, error_kind, message, style, color, explanation,
			quantity, used_ai)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range report.Rows {
		out := row.Outcome
		_, err = stmt.ExecContext(ctx,
			report.RunID, row.RowNumber, string(row.State), string(out.Kind),
			out.OrderID, out.LineItemID, out.Reason, string(out.ErrorKind), out.Message,
			row.Style, row.Color, row.Explanation, row.Quantity, row.UsedAI)
		if err != nil {
			return fmt.Errorf("failed to save row %d: %w", row.RowNumber, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", report.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first with their outcome counts.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]service.RunSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.workbook, r.status, r.order_id, r.dry_run, r.started_at,
			COALESCE(SUM(CASE WHEN o.outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN o.outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN o.outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN o.outcome = ? THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN row_outcomes o ON o.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?`,
		string(model.OutcomeCreated), string(model.OutcomeSkipped),
		string(model.OutcomeFailed), string(model.OutcomeNotAttempted), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []service.RunSummary
	for rows.Next() {
		var (
			summary service.RunSummary
			status  string
		)
		if err := rows.Scan(&summary.RunID, &summary.Workbook, &status, &summary.OrderID,
			&summary.DryRun, &summary.StartedAt, &summary.Submitted, &summary.Skipped,
			&summary.Failed, &summary.NotAttempted); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		summary.Status = model.RunStatus(status)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return summaries, nil
}

// GetRun loads a stored report with its rows in sheet order.
func (s *SQLiteStorage) GetRun(ctx context.Context, runID string) (*model.Report, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	runID, err := s.resolveRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	var (
		report     model.Report
		status     string
		abortKind  string
		finishedAt sql.NullTime
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT id, workbook, sheet, status, abort_reason, abort_kind, customer_id,
			order_id, order_url, dry_run, started_at, finished_at
		FROM runs WHERE id = ?`, runID).Scan(
		&report.RunID, &report.Workbook, &report.Sheet, &status, &report.AbortReason,
		&abortKind, &report.CustomerID, &report.OrderID, &report.OrderURL,
		&report.DryRun, &report.StartedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	report.Status = model.RunStatus(status)
	report.AbortKind = model.ErrorKind(abortKind)
	if finishedAt.Valid {
		report.FinishedAt = finishedAt.Time
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT row_number, state, outcome, order_id, line_item_id, reason, error_kind,
			message, style, color, explanation, quantity, used_ai
		FROM row_outcomes WHERE run_id = ?
		ORDER BY row_number`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query row outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	report.Rows = []model.RowReport{}
	for rows.Next() {
		var (
			row       model.RowReport
			state     string
			kind      string
			errorKind string
		)
		if err := rows.Scan(&row.RowNumber, &state, &kind, &row.Outcome.OrderID,
			&row.Outcome.LineItemID, &row.Outcome.Reason, &errorKind, &row.Outcome.Message,
			&row.Style, &row.Color, &row.Explanation, &row.Quantity, &row.UsedAI); err != nil {
			return nil, fmt.Errorf("failed to scan row outcome: %w", err)
		}
		row.State = model.RowState(state)
		row.Outcome.Kind = model.OutcomeKind(kind)
		row.Outcome.ErrorKind = model.ErrorKind(errorKind)
		report.Rows = append(report.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating row outcomes: %w", err)
	}
	return &report, nil
}

// resolveRunID expands a unique ID prefix, as printed by the history list,
// to the full run ID.
func (s *SQLiteStorage) resolveRunID(ctx context.Context, prefix string) (string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE id = ? OR substr(id, 1, ?) = ? ORDER BY id = ? DESC LIMIT 2`,
		prefix, len(prefix), prefix, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to look up run %s: %w", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to look up run %s: %w", prefix, err)
	}

	switch {
	case len(ids) == 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case ids[0] == prefix, len(ids) == 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousRunID, prefix)
	}
}
