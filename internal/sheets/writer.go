package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/service"
)

// Writer appends run reports to a spreadsheet with a Runs tab and a Rows tab.
type Writer struct {
	service       *sheets.Service
	logger        *slog.Logger
	loc           *time.Location
	spreadsheetID string
	config        Config
	retryOpts     service.RetryOptions
}

var _ service.ReportExporter = (*Writer)(nil)

// NewWriter creates a new Google Sheets report writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger, opts ...option.ClientOption) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewWriterWithService(srv, config, logger), nil
}

// NewWriterWithService wraps an already authenticated service.
func NewWriterWithService(srv *sheets.Service, config Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	loc := time.UTC
	if config.TimeZone != "" {
		if l, err := time.LoadLocation(config.TimeZone); err == nil {
			loc = l
		}
	}
	attempts := config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &Writer{
		service:       srv,
		logger:        logger,
		loc:           loc,
		config:        config,
		spreadsheetID: config.SpreadsheetID,
		retryOpts: service.RetryOptions{
			MaxAttempts:  attempts,
			InitialDelay: config.RetryDelay,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// SpreadsheetID returns the target spreadsheet, which is empty until the
// first export creates one.
func (w *Writer) SpreadsheetID() string {
	return w.spreadsheetID
}

// Export appends the run summary and its row outcomes.
func (w *Writer) Export(ctx context.Context, report *model.Report) error {
	if report == nil {
		return fmt.Errorf("%w: nil report", common.ErrValidation)
	}

	w.logger.Info("exporting run report",
		"run_id", report.RunID,
		"rows", len(report.Rows))

	newTabs, err := w.ensureSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare spreadsheet: %w", err)
	}

	for title, headers := range map[string][]any{RunsTab: RunHeaders, RowsTab: RowHeaders} {
		if _, ok := newTabs[title]; !ok {
			continue
		}
		if err := w.retry(ctx, func() error { return w.writeHeaders(ctx, title, headers) }); err != nil {
			return fmt.Errorf("failed to write %s headers: %w", title, err)
		}
	}

	runValues := [][]any{NewRunRow(report).Values(w.loc)}
	if err := w.retry(ctx, func() error { return w.appendValues(ctx, RunsTab, runValues) }); err != nil {
		return fmt.Errorf("failed to append run: %w", err)
	}

	outcomes := NewOutcomeRows(report)
	if len(outcomes) > 0 {
		rowValues := make([][]any, 0, len(outcomes))
		for _, row := range outcomes {
			rowValues = append(rowValues, row.Values())
		}
		if err := w.retry(ctx, func() error { return w.appendValues(ctx, RowsTab, rowValues) }); err != nil {
			return fmt.Errorf("failed to append rows: %w", err)
		}
	}

	if w.config.EnableFormatting && len(newTabs) > 0 {
		err := w.retry(ctx, func() error { return w.applyFormatting(ctx, newTabs) })
		if err != nil {
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("report export completed",
		"spreadsheet_id", w.spreadsheetID,
		"rows_written", len(outcomes)+1)

	return nil
}

// ensureSpreadsheet resolves the target spreadsheet and returns the sheet IDs
// of tabs created by this call.
func (w *Writer) ensureSpreadsheet(ctx context.Context) (map[string]int64, error) {
	if w.spreadsheetID == "" {
		return w.createSpreadsheet(ctx)
	}

	var existing *sheets.Spreadsheet
	err := w.retry(ctx, func() error {
		var getErr error
		existing, getErr = w.service.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
		return getErr
	})
	if err != nil {
		return nil, fmt.Errorf("unable to access spreadsheet %s: %w", w.spreadsheetID, err)
	}

	present := make(map[string]bool)
	for _, sheet := range existing.Sheets {
		if sheet.Properties != nil {
			present[sheet.Properties.Title] = true
		}
	}

	var requests []*sheets.Request
	for _, title := range []string{RunsTab, RowsTab} {
		if !present[title] {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: title},
				},
			})
		}
	}
	newTabs := make(map[string]int64)
	if len(requests) == 0 {
		return newTabs, nil
	}

	var resp *sheets.BatchUpdateSpreadsheetResponse
	err = w.retry(ctx, func() error {
		var updateErr error
		resp, updateErr = w.service.Spreadsheets.BatchUpdate(w.spreadsheetID,
			&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
		return updateErr
	})
	if err != nil {
		return nil, fmt.Errorf("unable to add tabs: %w", err)
	}
	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			props := reply.AddSheet.Properties
			newTabs[props.Title] = props.SheetId
		}
	}
	return newTabs, nil
}

func (w *Writer) createSpreadsheet(ctx context.Context) (map[string]int64, error) {
	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: RunsTab}},
			{Properties: &sheets.SheetProperties{Title: RowsTab}},
		},
	}

	// Not retried: a lost response would leave a second spreadsheet behind.
	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create spreadsheet: %w", classify(err))
	}

	w.spreadsheetID = created.SpreadsheetId
	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	newTabs := make(map[string]int64)
	for _, sheet := range created.Sheets {
		if sheet.Properties != nil {
			newTabs[sheet.Properties.Title] = sheet.Properties.SheetId
		}
	}
	return newTabs, nil
}

func (w *Writer) writeHeaders(ctx context.Context, tab string, headers []any) error {
	_, err := w.service.Spreadsheets.Values.Update(w.spreadsheetID, tab+"!A1",
		&sheets.ValueRange{Values: [][]any{headers}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (w *Writer) appendValues(ctx context.Context, tab string, values [][]any) error {
	_, err := w.service.Spreadsheets.Values.Append(w.spreadsheetID, tab+"!A1",
		&sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err == nil {
		w.logger.Debug("appended rows", "tab", tab, "rows", len(values))
	}
	return err
}

// applyFormatting bolds and freezes the header row of newly created tabs.
func (w *Writer) applyFormatting(ctx context.Context, newTabs map[string]int64) error {
	requests := make([]*sheets.Request, 0, 2*len(newTabs))
	for _, sheetID := range newTabs {
		requests = append(requests,
			&sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:       sheetID,
						StartRowIndex: 0,
						EndRowIndex:   1,
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							TextFormat: &sheets.TextFormat{Bold: true},
						},
					},
					Fields: "userEnteredFormat.textFormat",
				},
			},
			&sheets.Request{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId: sheetID,
						GridProperties: &sheets.GridProperties{
							FrozenRowCount: 1,
						},
					},
					Fields: "gridProperties.frozenRowCount",
				},
			},
		)
	}

	_, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	return err
}

func (w *Writer) retry(ctx context.Context, op func() error) error {
	return common.WithRetry(ctx, func() error { return classify(op()) }, w.retryOpts)
}

// classify maps Sheets API failures onto the retry taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return common.Permanent(err)
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return common.Transient(fmt.Errorf("%w: %w", common.ErrServiceUnavailable, err), 0)
	}

	switch {
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return common.Permanent(fmt.Errorf("%w: %w", common.ErrUnauthorized, err))
	case apiErr.Code == http.StatusTooManyRequests:
		return common.Transient(fmt.Errorf("%w: %w", common.ErrRateLimit, err), 0)
	case apiErr.Code >= http.StatusInternalServerError:
		return common.Transient(fmt.Errorf("%w: %w", common.ErrServiceUnavailable, err), 0)
	default:
		return common.Permanent(fmt.Errorf("%w: %w", common.ErrRemote, err))
	}
}
