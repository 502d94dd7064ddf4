package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/service"
)

// FormatSizes renders size quantities as "S:2 M:4".
func FormatSizes(sizes model.SizeQuantities) string {
	parts := make([]string, 0, len(sizes))
	for _, sq := range sizes {
		parts = append(parts, fmt.Sprintf("%s:%d", sq.Size, sq.Quantity))
	}
	return strings.Join(parts, " ")
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtleStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return BoldStyle.PaddingRight(1)
			}
			return TableCellStyle.PaddingRight(1)
		})
}

// RenderReport prints the run summary and the rows that need attention.
// With verbose set every row is listed.
func RenderReport(w io.Writer, report *model.Report, verbose bool) error {
	var b strings.Builder

	title := "Quote submitted"
	switch {
	case report.DryRun:
		title = "Dry run"
	case report.Status == model.RunAborted:
		title = "Run aborted"
	case report.OrderID == "":
		title = "No quote created"
	}

	fmt.Fprintf(&b, "Workbook:      %s\n", report.Workbook)
	if report.Sheet != "" {
		fmt.Fprintf(&b, "Sheet:         %s\n", report.Sheet)
	}
	fmt.Fprintf(&b, "Status:        %s\n", StatusStyle(report.Status).Render(string(report.Status)))
	if report.OrderID != "" {
		fmt.Fprintf(&b, "Quote:         %s\n", report.OrderID)
	}
	if report.OrderURL != "" {
		fmt.Fprintf(&b, "URL:           %s\n", report.OrderURL)
	}
	fmt.Fprintf(&b, "Rows:          %d\n", len(report.Rows))
	fmt.Fprintf(&b, "  • Submitted:     %d\n", report.Submitted())
	fmt.Fprintf(&b, "  • Skipped:       %d\n", report.SkippedCount())
	fmt.Fprintf(&b, "  • Failed:        %d\n", report.FailedCount())
	fmt.Fprintf(&b, "  • Not attempted: %d\n", report.NotAttemptedCount())
	if report.AbortReason != "" {
		fmt.Fprintf(&b, "Abort reason:  %s\n", ErrorStyle.Render(report.AbortReason))
	}
	fmt.Fprintf(&b, "Duration:      %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "Run ID:        %s", SubtleStyle.Render(report.RunID))

	if _, err := fmt.Fprintln(w, RenderBox(QuoteIcon+" "+title, b.String())); err != nil {
		return err
	}

	t := newTable("", "Row", "Outcome", "Style", "Color", "Qty", "Detail")
	listed := 0
	for _, row := range report.Rows {
		if !verbose && row.Outcome.Kind == model.OutcomeCreated {
			continue
		}
		listed++
		t.Row(
			OutcomeIcon(row.Outcome.Kind),
			strconv.Itoa(row.RowNumber),
			string(row.Outcome.Kind),
			row.Style,
			row.Color,
			strconv.Itoa(row.Quantity),
			rowDetail(row),
		)
	}
	if listed == 0 {
		return nil
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func rowDetail(row model.RowReport) string {
	out := row.Outcome
	var parts []string
	switch out.Kind {
	case model.OutcomeCreated:
		parts = append(parts, "line item "+out.LineItemID)
	case model.OutcomeSkipped:
		parts = append(parts, out.Reason)
	case model.OutcomeFailed:
		parts = append(parts, string(out.ErrorKind))
	case model.OutcomeNotAttempted:
		parts = append(parts, out.Reason)
	}
	if out.Message != "" {
		parts = append(parts, out.Message)
	}
	if row.UsedAI {
		parts = append(parts, RobotIcon)
	}
	return strings.Join(parts, ": ")
}

// RenderHistory prints stored runs, newest first.
func RenderHistory(w io.Writer, runs []service.RunSummary) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No runs recorded yet."))
		return err
	}

	t := newTable("Started", "Run", "Workbook", "Status", "Quote", "Sent", "Skip", "Fail", "N/A")
	for _, run := range runs {
		status := string(run.Status)
		if run.DryRun {
			status += " (dry run)"
		}
		t.Row(
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			shortID(run.RunID),
			run.Workbook,
			StatusStyle(run.Status).Render(status),
			run.OrderID,
			strconv.Itoa(run.Submitted),
			strconv.Itoa(run.Skipped),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.NotAttempted),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RenderPreview prints the normalized rows of a workbook without submitting.
func RenderPreview(w io.Writer, drafts []model.DraftLineItem) error {
	if len(drafts) == 0 {
		_, err := fmt.Fprintln(w, FormatWarning("No data rows found."))
		return err
	}

	t := newTable("Row", "Style", "Color", "Description", "Sizes", "Price", "Status")
	ambiguous := 0
	for _, d := range drafts {
		price := ""
		if d.UnitPrice != nil {
			price = d.UnitPrice.StringFixed(2)
		}
		status := SuccessStyle.Render("ready")
		if d.Ambiguous {
			ambiguous++
			reasons := make([]string, len(d.Reasons))
			for i, r := range d.Reasons {
				reasons[i] = string(r)
			}
			status = WarningStyle.Render("needs AI: " + strings.Join(reasons, ", "))
		}
		sizes := FormatSizes(d.Sizes.NonZero())
		if d.Tall {
			sizes += " (tall)"
		}
		t.Row(strconv.Itoa(d.RowNumber), d.Style, d.Color, d.Description, sizes, price, status)
	}
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}

	summary := fmt.Sprintf("%d rows, %d ready, %d need AI extraction", len(drafts), len(drafts)-ambiguous, ambiguous)
	_, err := fmt.Fprintln(w, FormatInfo(summary))
	return err
}
