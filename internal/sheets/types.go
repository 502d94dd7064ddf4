package sheets

import (
	"time"

	"github.com/Veraticus/quotesmith/internal/model"
)

// RunHeaders are the column titles of the Runs tab.
var RunHeaders = []any{
	"Run ID", "Started", "Duration (s)", "Workbook", "Sheet", "Status",
	"Order", "Order URL", "Submitted", "Skipped", "Failed", "Not Attempted", "Abort Reason",
}

// RowHeaders are the column titles of the Rows tab.
var RowHeaders = []any{
	"Run ID", "Row", "Outcome", "Style", "Color", "Quantity",
	"Line Item", "Reason", "Error", "Message", "AI",
}

// RunRow is one line in the Runs tab.
type RunRow struct {
	StartedAt    time.Time
	RunID        string
	Workbook     string
	Sheet        string
	Status       model.RunStatus
	OrderID      string
	OrderURL     string
	AbortReason  string
	Duration     time.Duration
	Submitted    int
	Skipped      int
	Failed       int
	NotAttempted int
}

// NewRunRow summarizes a report for the Runs tab.
func NewRunRow(report *model.Report) RunRow {
	return RunRow{
		StartedAt:    report.StartedAt,
		RunID:        report.RunID,
		Workbook:     report.Workbook,
		Sheet:        report.Sheet,
		Status:       report.Status,
		OrderID:      report.OrderID,
		OrderURL:     report.OrderURL,
		AbortReason:  report.AbortReason,
		Duration:     report.Duration(),
		Submitted:    report.Submitted(),
		Skipped:      report.SkippedCount(),
		Failed:       report.FailedCount(),
		NotAttempted: report.NotAttemptedCount(),
	}
}

// Values renders the row in column order.
func (r RunRow) Values(loc *time.Location) []any {
	return []any{
		r.RunID,
		r.StartedAt.In(loc).Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond).Seconds(),
		r.Workbook,
		r.Sheet,
		string(r.Status),
		r.OrderID,
		r.OrderURL,
		r.Submitted,
		r.Skipped,
		r.Failed,
		r.NotAttempted,
		r.AbortReason,
	}
}

// OutcomeRow is one line in the Rows tab.
type OutcomeRow struct {
	RunID      string
	Outcome    model.OutcomeKind
	Style      string
	Color      string
	LineItemID string
	Reason     string
	ErrorKind  model.ErrorKind
	Message    string
	RowNumber  int
	Quantity   int
	UsedAI     bool
}

// NewOutcomeRows lists a report's row outcomes in sheet order.
func NewOutcomeRows(report *model.Report) []OutcomeRow {
	rows := make([]OutcomeRow, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, OutcomeRow{
			RunID:      report.RunID,
			Outcome:    row.Outcome.Kind,
			Style:      row.Style,
			Color:      row.Color,
			LineItemID: row.Outcome.LineItemID,
			Reason:     row.Outcome.Reason,
			ErrorKind:  row.Outcome.ErrorKind,
			Message:    row.Outcome.Message,
			RowNumber:  row.RowNumber,
			Quantity:   row.Quantity,
			UsedAI:     row.UsedAI,
		})
	}
	return rows
}

// Values renders the row in column order.
func (r OutcomeRow) Values() []any {
	ai := ""
	if r.UsedAI {
		ai = "yes"
	}
	return []any{
		r.RunID,
		r.RowNumber,
		string(r.Outcome),
		r.Style,
		r.Color,
		r.Quantity,
		r.LineItemID,
		r.Reason,
		string(r.ErrorKind),
		r.Message,
		ai,
	}
}
