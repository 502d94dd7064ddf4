package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/quotesmith/internal/assembly"
	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/normalize"
	"golang.org/x/sync/errgroup"
)

// Reasons recorded on rows a run never finished.
const (
	reasonAbortedBeforeSubmission = "run aborted before submission"
	reasonAborted                 = "run aborted"
	reasonCanceled                = "run canceled"
	reasonDryRun                  = "dry run"
)

type rowRecord struct {
	extraction *model.ExtractionResult
	item       *model.OrderLineItem
	outcome    model.SubmissionOutcome
	state      model.RowState
	raw        model.RawRow
	draft      model.DraftLineItem
	usedAI     bool
}

// run is the state of one Orchestrator.Run call.
type run struct {
	abortErr   error
	o          *Orchestrator
	report     *model.Report
	logger     *slog.Logger
	cancel     context.CancelFunc
	records    []*rowRecord
	mu         sync.Mutex
	progressMu sync.Mutex
	dryRun     bool
}

// prepare reads, normalizes, extracts, and assembles every row. It returns
// the line items ready for submission.
func (r *run) prepare(ctx context.Context, src Source) []model.OrderLineItem {
	g := new(errgroup.Group)
	g.SetLimit(r.o.cfg.Concurrency)

	for raw, err := range src.Rows() {
		if err != nil {
			r.abort(fmt.Errorf("reading workbook: %w", err))
			break
		}

		rec := &rowRecord{raw: raw, state: model.StateRead}
		r.records = append(r.records, rec)

		rec.draft = normalize.Normalize(raw)
		r.advance(rec, model.StateNormalized)

		if !rec.draft.Ambiguous {
			r.advance(rec, model.StateUnambiguous)
			continue
		}
		r.advance(rec, model.StateAmbiguous)

		if r.stopped(ctx) {
			continue
		}
		if r.o.extractor == nil {
			r.settle(rec, model.StateSkipped, model.Skipped(model.KindValidation,
				"ambiguous row and AI extraction is disabled: "+reasonList(rec.draft.Reasons)))
			continue
		}

		g.Go(func() error {
			r.extract(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()

	if r.stopped(ctx) {
		return nil
	}

	var items []model.OrderLineItem
	for _, rec := range r.records {
		if rec.state != model.StateUnambiguous && rec.state != model.StateResolved {
			continue
		}
		item, err := assembly.Merge(rec.draft, rec.extraction, r.o.cfg.Assembly)
		if err != nil {
			r.settle(rec, model.StateSkipped, model.Skipped(common.KindOf(err), err.Error()))
			continue
		}
		rec.item = &item
		r.advance(rec, model.StateAssembled)
		items = append(items, item)
	}

	r.logger.Info("Rows prepared", "rows", len(r.records), "line_items", len(items))
	return items
}

func (r *run) extract(ctx context.Context, rec *rowRecord) {
	if r.stopped(ctx) {
		return
	}
	r.advance(rec, model.StateExtracting)

	callCtx, done := r.callContext(ctx)
	defer done()

	result, err := r.o.extractor.Extract(callCtx, rec.draft, rec.raw)
	rec.usedAI = true

	if err != nil {
		kind := common.KindOf(err)
		switch {
		case common.IsFatal(err):
			r.settle(rec, model.StateFailed, model.Failed(kind, err.Error()))
			r.abort(fmt.Errorf("extracting row %d: %w", rec.raw.Number, err))
		case kind == model.KindCanceled, errors.Is(err, context.Canceled) && r.stopped(ctx):
			r.settle(rec, model.StateNotAttempted, model.NotAttempted(reasonCanceled))
		default:
			if result.Status == model.ExtractionUnparseable {
				rec.extraction = &result
			}
			r.logger.Warn("Row skipped", "row", rec.raw.Number, "kind", kind, "error", err)
			r.settle(rec, model.StateSkipped, model.Skipped(kind, err.Error()))
		}
		return
	}

	rec.extraction = &result
	r.advance(rec, model.StateResolved)
}

// submit resolves the customer, creates the order once, then adds every line
// item. No line item call starts before the order exists.
func (r *run) submit(ctx context.Context, items []model.OrderLineItem) {
	platform := r.o.platform
	cfg := r.o.cfg

	callCtx, done := r.callContext(ctx)
	defer done()

	customer, err := assembly.ResolveCustomer(callCtx, platform, cfg.Customer)
	if err != nil {
		r.abort(fmt.Errorf("resolving customer: %w", err))
		return
	}
	if !customer.Resolved() {
		if r.stopped(ctx) {
			return
		}
		id, err := platform.CreateCustomer(callCtx, *customer.New)
		if err != nil {
			r.abort(fmt.Errorf("creating customer: %w", err))
			return
		}
		customer = model.CustomerRef{ID: id}
	}
	r.report.CustomerID = customer.ID

	quote := assembly.BuildOrder(customer, items, assembly.NewMetadata(r.o.now(), cfg.Metadata), cfg.Assembly.Consolidate)
	if err := quote.Validate(); err != nil {
		r.abort(fmt.Errorf("%w: %w", common.ErrValidation, err))
		return
	}

	r.emit(Event{Phase: PhaseSubmitting, Total: len(quote.LineItems)})

	if r.stopped(ctx) {
		return
	}
	order, err := platform.CreateOrder(callCtx, customer.ID, quote.Metadata)
	r.report.OrderID = order.ID
	r.report.OrderURL = order.URL
	if err != nil {
		r.abort(fmt.Errorf("creating order: %w", err))
		return
	}
	r.logger.Info("Order created", "order_id", order.ID, "line_items", len(quote.LineItems))

	byRow := make(map[int]*rowRecord, len(r.records))
	for _, rec := range r.records {
		byRow[rec.raw.Number] = rec
	}

	g := new(errgroup.Group)
	g.SetLimit(cfg.Concurrency)
	for i, item := range quote.LineItems {
		recs := make([]*rowRecord, 0, len(item.SourceRows))
		for _, n := range item.SourceRows {
			if rec, ok := byRow[n]; ok {
				recs = append(recs, rec)
			}
		}
		position := i + 1
		g.Go(func() error {
			r.addLineItem(ctx, order, position, item, recs)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *run) addLineItem(ctx context.Context, order model.PlatformOrder, position int, item model.OrderLineItem, recs []*rowRecord) {
	if r.stopped(ctx) {
		return
	}

	callCtx, done := r.callContext(ctx)
	defer done()

	id, err := r.o.platform.AddLineItem(callCtx, order, position, item)
	if err != nil {
		kind := common.KindOf(err)
		r.logger.Warn("Line item failed", "position", position, "rows", item.SourceRows, "kind", kind, "error", err)
		for _, rec := range recs {
			r.settle(rec, model.StateFailed, model.Failed(kind, err.Error()))
		}
		if common.IsFatal(err) {
			r.abort(fmt.Errorf("adding line item %d: %w", position, err))
		}
		return
	}

	for _, rec := range recs {
		r.settle(rec, model.StateSubmitted, model.Created(order.ID, id))
	}
}

// finish settles unfinished rows, derives the run status, and builds the
// report rows.
func (r *run) finish(parent context.Context) (*model.Report, error) {
	r.mu.Lock()
	runErr := r.abortErr
	r.mu.Unlock()

	canceled := runErr == nil && parent.Err() != nil
	if canceled {
		runErr = fmt.Errorf("%s: %w", reasonCanceled, parent.Err())
	}

	for _, rec := range r.records {
		if rec.state.Terminal() {
			continue
		}
		reason := reasonDryRun
		switch {
		case canceled:
			reason = reasonCanceled
		case runErr != nil && isSubmittable(rec.state):
			reason = reasonAbortedBeforeSubmission
		case runErr != nil:
			reason = reasonAborted
		}
		r.settle(rec, model.StateNotAttempted, model.NotAttempted(reason))
	}

	report := r.report
	report.Rows = make([]model.RowReport, 0, len(r.records))
	for _, rec := range r.records {
		report.Rows = append(report.Rows, rowReport(rec))
	}
	report.SortRows()
	report.FinishedAt = r.o.now()

	switch {
	case runErr != nil:
		report.Status = model.RunAborted
		report.AbortReason = runErr.Error()
		report.AbortKind = common.KindOf(runErr)
	case report.SkippedCount()+report.FailedCount() > 0:
		report.Status = model.RunCompletedWithErrors
	case !r.dryRun && report.NotAttemptedCount() > 0:
		report.Status = model.RunCompletedWithErrors
	default:
		report.Status = model.RunCompleted
	}

	r.logger.Info("Run finished",
		"status", report.Status,
		"submitted", report.Submitted(),
		"skipped", report.SkippedCount(),
		"failed", report.FailedCount(),
		"not_attempted", report.NotAttemptedCount(),
		"line_items", len(report.LineItemIDs()),
		"duration", report.Duration())
	if report.SkippedCount() > 0 {
		r.logger.Info("Skipped rows", "reasons", report.SkipReasons())
	}
	if report.FailedCount() > 0 {
		r.logger.Warn("Failed rows", "kinds", report.FailureKinds())
	}
	r.emit(Event{Phase: PhaseDone, Total: len(report.Rows)})

	return report, runErr
}

func rowReport(rec *rowRecord) model.RowReport {
	entry := model.RowReport{
		RowNumber: rec.raw.Number,
		State:     rec.state,
		Outcome:   rec.outcome,
		UsedAI:    rec.usedAI,
		Style:     rec.draft.Style,
		Color:     rec.draft.Color,
		Quantity:  rec.draft.Sizes.Total(),
	}
	if rec.extraction != nil {
		entry.Explanation = rec.extraction.Explanation
	}
	if rec.item != nil {
		entry.Style = rec.item.Style
		entry.Color = rec.item.Color
		entry.Quantity = rec.item.TotalQuantity()
	}
	return entry
}

func isSubmittable(state model.RowState) bool {
	switch state {
	case model.StateUnambiguous, model.StateResolved, model.StateAssembled:
		return true
	default:
		return false
	}
}

// advance moves a row to its next state.
func (r *run) advance(rec *rowRecord, next model.RowState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !rec.state.CanTransition(next) {
		r.logger.Error("Illegal row transition", "row", rec.raw.Number, "from", rec.state, "to", next)
		return false
	}
	rec.state = next
	return true
}

// settle moves a row to a terminal state with its outcome.
func (r *run) settle(rec *rowRecord, state model.RowState, outcome model.SubmissionOutcome) {
	if !r.advance(rec, state) {
		return
	}
	r.mu.Lock()
	rec.outcome = outcome
	r.mu.Unlock()
	r.emit(Event{Row: rec.raw.Number, State: state, Outcome: outcome})
}

// abort records the first run-level error and stops new work.
func (r *run) abort(err error) {
	r.mu.Lock()
	if r.abortErr == nil {
		r.abortErr = err
		r.logger.Error("Run aborted", "error", err, "kind", common.KindOf(err))
	}
	r.mu.Unlock()
	r.cancel()
}

func (r *run) stopped(ctx context.Context) bool {
	return ctx.Err() != nil
}

// callContext returns a context for one remote call that survives
// cancellation of ctx for up to the drain timeout, so a call already in
// flight can finish and be recorded. Retries stop once ctx is done.
func (r *run) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	drain := r.o.cfg.DrainTimeout
	stop := context.AfterFunc(ctx, func() {
		timer := time.NewTimer(drain)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel()
		case <-callCtx.Done():
		}
	})
	return common.WithAttemptScope(callCtx, ctx), func() {
		stop()
		cancel()
	}
}

func (r *run) emit(ev Event) {
	if r.o.progress == nil {
		return
	}
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.o.progress(ev)
}

func reasonList(reasons []model.AmbiguityReason) string {
	parts := make([]string, len(reasons))
	for i, reason := range reasons {
		parts[i] = string(reason)
	}
	return strings.Join(parts, ", ")
}
