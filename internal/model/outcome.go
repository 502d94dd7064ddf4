package model

import (
	"fmt"
	"sort"
	"time"
)

// ErrorKind names a class of failure in the error taxonomy.
type ErrorKind string

// Error kinds reported per row and per run.
const (
	KindNone               ErrorKind = ""
	KindIO                 ErrorKind = "IOError"
	KindFileFormat         ErrorKind = "FileFormatError"
	KindValidation         ErrorKind = "ValidationError"
	KindServiceUnavailable ErrorKind = "ServiceUnavailable"
	KindMalformedResponse  ErrorKind = "MalformedResponse"
	KindServiceRejected    ErrorKind = "ServiceRejected"
	KindUnauthorized       ErrorKind = "Unauthorized"
	KindRateLimited        ErrorKind = "RateLimited"
	KindAmbiguousOutcome   ErrorKind = "AmbiguousOutcome"
	KindRemote             ErrorKind = "RemoteError"
	KindCanceled           ErrorKind = "Canceled"
	KindUnknown            ErrorKind = "Unknown"
)

// OutcomeKind is the final fate of a row.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeCreated      OutcomeKind = "CREATED"
	OutcomeSkipped      OutcomeKind = "SKIPPED"
	OutcomeFailed       OutcomeKind = "FAILED"
	OutcomeNotAttempted OutcomeKind = "NOT_ATTEMPTED"
)

// SubmissionOutcome is the per-row result of a run.
type SubmissionOutcome struct {
	Kind       OutcomeKind `json:"kind"`
	OrderID    string      `json:"order_id,omitempty"`
	LineItemID string      `json:"line_item_id,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	ErrorKind  ErrorKind   `json:"error_kind,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// Created records a row whose line item was added to the order.
func Created(orderID, lineItemID string) SubmissionOutcome {
	return SubmissionOutcome{Kind: OutcomeCreated, OrderID: orderID, LineItemID: lineItemID}
}

// Skipped records a row excluded from the order. The reason is usually an error kind.
func Skipped(reason ErrorKind, message string) SubmissionOutcome {
	return SubmissionOutcome{Kind: OutcomeSkipped, Reason: string(reason), ErrorKind: reason, Message: message}
}

// Failed records a row whose submission failed.
func Failed(kind ErrorKind, message string) SubmissionOutcome {
	return SubmissionOutcome{Kind: OutcomeFailed, ErrorKind: kind, Message: message}
}

// NotAttempted records a row that a run abort or cancellation short-circuited.
func NotAttempted(reason string) SubmissionOutcome {
	return SubmissionOutcome{Kind: OutcomeNotAttempted, Reason: reason}
}

func (o SubmissionOutcome) String() string {
	switch o.Kind {
	case OutcomeCreated:
		return fmt.Sprintf("Created(%s/%s)", o.OrderID, o.LineItemID)
	case OutcomeSkipped:
		return fmt.Sprintf("Skipped(%s)", o.Reason)
	case OutcomeFailed:
		return fmt.Sprintf("Failed(%s, %s)", o.ErrorKind, o.Message)
	case OutcomeNotAttempted:
		return fmt.Sprintf("NotAttempted(%s)", o.Reason)
	default:
		return string(o.Kind)
	}
}

// RowState is a step in the per-row state machine.
type RowState string

// Row states.
const (
	StateRead         RowState = "READ"
	StateNormalized   RowState = "NORMALIZED"
	StateAmbiguous    RowState = "AMBIGUOUS"
	StateExtracting   RowState = "EXTRACTING"
	StateResolved     RowState = "RESOLVED"
	StateUnambiguous  RowState = "UNAMBIGUOUS"
	StateAssembled    RowState = "ASSEMBLED"
	StateSubmitted    RowState = "SUBMITTED"
	StateSkipped      RowState = "SKIPPED"
	StateFailed       RowState = "FAILED"
	StateNotAttempted RowState = "NOT_ATTEMPTED"
)

var rowTransitions = map[RowState][]RowState{
	StateRead:        {StateNormalized},
	StateNormalized:  {StateAmbiguous, StateUnambiguous},
	StateAmbiguous:   {StateExtracting, StateSkipped},
	StateExtracting:  {StateResolved, StateSkipped, StateFailed},
	StateResolved:    {StateAssembled, StateSkipped},
	StateUnambiguous: {StateAssembled, StateSkipped},
	StateAssembled:   {StateSubmitted, StateFailed},
}

// Terminal reports whether no further transition is possible.
func (s RowState) Terminal() bool {
	switch s {
	case StateSubmitted, StateSkipped, StateFailed, StateNotAttempted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is legal.
// Any non-terminal state may move to NotAttempted when a run stops early.
func (s RowState) CanTransition(next RowState) bool {
	if s.Terminal() {
		return false
	}
	if next == StateNotAttempted {
		return true
	}
	for _, allowed := range rowTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RunStatus is the overall result of a run.
type RunStatus string

// Run statuses.
const (
	RunCompleted           RunStatus = "Completed"
	RunCompletedWithErrors RunStatus = "CompletedWithErrors"
	RunAborted             RunStatus = "Aborted"
)

// RowReport is one row's entry in the final report.
type RowReport struct {
	Outcome     SubmissionOutcome `json:"outcome"`
	State       RowState          `json:"state"`
	Style       string            `json:"style,omitempty"`
	Color       string            `json:"color,omitempty"`
	Explanation string            `json:"explanation,omitempty"`
	RowNumber   int               `json:"row"`
	Quantity    int               `json:"quantity"`
	UsedAI      bool              `json:"used_ai"`
}

// Report is the result of one run over a workbook.
type Report struct {
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	RunID       string      `json:"run_id"`
	Workbook    string      `json:"workbook"`
	Sheet       string      `json:"sheet,omitempty"`
	Status      RunStatus   `json:"status"`
	AbortReason string      `json:"abort_reason,omitempty"`
	AbortKind   ErrorKind   `json:"abort_kind,omitempty"`
	CustomerID  string      `json:"customer_id,omitempty"`
	OrderID     string      `json:"order_id,omitempty"`
	OrderURL    string      `json:"order_url,omitempty"`
	Rows        []RowReport `json:"rows"`
	DryRun      bool        `json:"dry_run,omitempty"`
}

// Count returns how many rows ended with the given outcome kind.
func (r *Report) Count(kind OutcomeKind) int {
	n := 0
	for _, row := range r.Rows {
		if row.Outcome.Kind == kind {
			n++
		}
	}
	return n
}

// Submitted returns the number of rows whose line item was created.
func (r *Report) Submitted() int { return r.Count(OutcomeCreated) }

// SkippedCount returns the number of skipped rows.
func (r *Report) SkippedCount() int { return r.Count(OutcomeSkipped) }

// FailedCount returns the number of failed rows.
func (r *Report) FailedCount() int { return r.Count(OutcomeFailed) }

// NotAttemptedCount returns the number of rows short-circuited by an abort.
func (r *Report) NotAttemptedCount() int { return r.Count(OutcomeNotAttempted) }

// SkipReasons tallies skipped rows by reason.
func (r *Report) SkipReasons() map[string]int {
	reasons := make(map[string]int)
	for _, row := range r.Rows {
		if row.Outcome.Kind == OutcomeSkipped {
			reasons[row.Outcome.Reason]++
		}
	}
	return reasons
}

// FailureKinds tallies failed rows by error kind.
func (r *Report) FailureKinds() map[ErrorKind]int {
	kinds := make(map[ErrorKind]int)
	for _, row := range r.Rows {
		if row.Outcome.Kind == OutcomeFailed {
			kinds[row.Outcome.ErrorKind]++
		}
	}
	return kinds
}

// LineItemIDs returns the distinct created line item IDs in row order.
func (r *Report) LineItemIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, row := range r.Rows {
		id := row.Outcome.LineItemID
		if row.Outcome.Kind == OutcomeCreated && id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// Row returns the entry for a sheet row number.
func (r *Report) Row(number int) (RowReport, bool) {
	for _, row := range r.Rows {
		if row.RowNumber == number {
			return row, true
		}
	}
	return RowReport{}, false
}

// SortRows orders entries by sheet row number.
func (r *Report) SortRows() {
	sort.Slice(r.Rows, func(i, j int) bool { return r.Rows[i].RowNumber < r.Rows[j].RowNumber })
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
