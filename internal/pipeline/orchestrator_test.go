package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/quotesmith/internal/assembly"
	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/llm"
	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(concurrency int) Config {
	cfg := DefaultConfig()
	cfg.Concurrency = concurrency
	cfg.DrainTimeout = 5 * time.Second
	cfg.Customer = model.CustomerCriteria{Email: "coach@league.org"}
	return cfg
}

func resolved(style, description string) extractFunc {
	return func(model.DraftLineItem) (model.ExtractionResult, error) {
		return model.Resolved(model.ExtractionFields{Style: style, Description: description}, "filled by model", 0.9), nil
	}
}

func failing(err error) extractFunc {
	return func(model.DraftLineItem) (model.ExtractionResult, error) {
		return model.ExtractionResult{}, err
	}
}

func assertRow(t *testing.T, report *model.Report, number int, kind model.OutcomeKind) model.RowReport {
	t.Helper()
	row, ok := report.Row(number)
	require.True(t, ok, "row %d missing from report", number)
	assert.Equal(t, kind, row.Outcome.Kind, "row %d outcome: %s", number, row.Outcome)
	return row
}

func assertAllTerminal(t *testing.T, report *model.Report) {
	t.Helper()
	for _, row := range report.Rows {
		assert.True(t, row.State.Terminal(), "row %d ended in %s", row.RowNumber, row.State)
	}
}

func TestRun_ThreeRowScenario(t *testing.T) {
	source := &sliceSource{rows: []model.RawRow{
		sheetRow(2, "G500", "Heavy Cotton Tee", "Black", "4.00", "2", "0", "3"),
		sheetRow(3, "", "", "Navy", "", "1", "1", ""),
		sheetRow(4, "", "mystery", "", "", "", "", ""),
	}}
	extractor := &fakeExtractor{byRow: map[int]extractFunc{
		3: resolved("PC61", "Essential Tee"),
		4: func(model.DraftLineItem) (model.ExtractionResult, error) {
			return model.Unparseable("??", "no JSON object in response"),
				fmt.Errorf("extracting row 4: %w", common.ErrMalformedResponse)
		},
	}}
	platform := newFakePlatform()

	report, err := New(testConfig(4), extractor, platform, nil).Run(context.Background(), Request{Source: source})
	require.NoError(t, err)

	assert.Equal(t, model.RunCompletedWithErrors, report.Status)
	assert.Equal(t, 2, report.Submitted())
	assert.Equal(t, 1, report.SkippedCount())
	assertAllTerminal(t, report)

	first := assertRow(t, report, 2, model.OutcomeCreated)
	assert.Equal(t, "q-1", first.Outcome.OrderID)
	assert.Equal(t, 5, first.Quantity)
	assert.False(t, first.UsedAI)

	second := assertRow(t, report, 3, model.OutcomeCreated)
	assert.Equal(t, "PC61", second.Style)
	assert.True(t, second.UsedAI)
	assert.Equal(t, "filled by model", second.Explanation)

	skipped := assertRow(t, report, 4, model.OutcomeSkipped)
	assert.Equal(t, string(model.KindMalformedResponse), skipped.Outcome.Reason)
	assert.Equal(t, model.StateSkipped, skipped.State)

	assert.Equal(t, 1, platform.count("order"))
	assert.Equal(t, 2, platform.count("line"))
	assert.Equal(t, "cust-1", platform.orderContact)
	assert.Equal(t, "q-1", report.OrderID)
	assert.Equal(t, "cust-1", report.CustomerID)
	assert.Equal(t, 2, extractor.calls())

	require.Len(t, platform.lines, 2)
	positions := []int{platform.lines[0].position, platform.lines[1].position}
	slices.Sort(positions)
	assert.Equal(t, []int{1, 2}, positions)
	for _, line := range platform.lines {
		assert.Equal(t, "g-1", line.order.GroupID)
	}
}

func TestRun_OneOrderPerWorkbook(t *testing.T) {
	rows := make([]model.RawRow, 0, 5)
	for i := range 5 {
		rows = append(rows, sheetRow(i+2, fmt.Sprintf("S%d", i), "Tee", "Red", "3", "1", "1", "1"))
	}
	platform := newFakePlatform()

	report, err := New(testConfig(3), nil, platform, nil).Run(context.Background(), Request{Source: &sliceSource{rows: rows}})
	require.NoError(t, err)

	assert.Equal(t, model.RunCompleted, report.Status)
	assert.Equal(t, 5, report.Submitted())
	assert.Equal(t, 1, platform.count("order"))
	assert.Equal(t, 5, platform.count("line"))
	assert.Len(t, report.LineItemIDs(), 5)

	calls := platform.callLog()
	orderAt := slices.Index(calls, "order")
	firstLine := slices.Index(calls, "line")
	assert.Less(t, orderAt, firstLine, "order is created before any line item")
}

func TestRun_NoValidRowsCreatesNoOrder(t *testing.T) {
	source := &sliceSource{rows: []model.RawRow{
		sheetRow(2, "", "", "", "", "0", "0", "0"),
		sheetRow(3, "G500", "", "", "", "", "", ""),
	}}
	platform := newFakePlatform()

	report, err := New(testConfig(2), nil, platform, nil).Run(context.Background(), Request{Source: source})
	require.NoError(t, err)

	assert.Equal(t, model.RunCompletedWithErrors, report.Status)
	assert.Equal(t, 2, report.SkippedCount())
	assert.Empty(t, platform.callLog())

	row := assertRow(t, report, 2, model.OutcomeSkipped)
	assert.Contains(t, row.Outcome.Message, "AI extraction is disabled")
}

func TestRun_EmptyWorkbook(t *testing.T) {
	platform := newFakePlatform()
	report, err := New(testConfig(2), nil, platform, nil).Run(context.Background(), Request{Source: &sliceSource{}})
	require.NoError(t, err)

	assert.Equal(t, model.RunCompleted, report.Status)
	assert.Empty(t, report.Rows)
	assert.Empty(t, platform.callLog())
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "orders.xlsx", report.Workbook)
}

func TestRun_ServiceRejectedAbortsRun(t *testing.T) {
	source := &sliceSource{rows: []model.RawRow{
		sheetRow(2, "", "", "Black", "", "1", "", ""),
		sheetRow(3, "", "", "White", "", "1", "", ""),
		sheetRow(4, "", "", "Grey", "", "1", "", ""),
		sheetRow(5, "G500", "Tee", "Red", "4", "1", "", ""),
	}}
	rejected := fmt.Errorf("extracting row 3: %w", common.Permanent(common.ErrServiceRejected))
	extractor := &fakeExtractor{byRow: map[int]extractFunc{
		2: resolved("A1", "Tee"),
		3: failing(rejected),
		4: resolved("A3", "Tee"),
	}}
	platform := newFakePlatform()

	report, err := New(testConfig(1), extractor, platform, nil).Run(context.Background(), Request{Source: source})
	require.Error(t, err)
	assert.True(t, common.IsFatal(err))
	require.NotNil(t, report)

	assert.Equal(t, model.RunAborted, report.Status)
	assert.Equal(t, model.KindServiceRejected, report.AbortKind)
	assert.Len(t, report.Rows, 4)
	assertAllTerminal(t, report)

	failed := assertRow(t, report, 3, model.OutcomeFailed)
	assert.Equal(t, model.KindServiceRejected, failed.Outcome.ErrorKind)

	assert.Equal(t, reasonAbortedBeforeSubmission, assertRow(t, report, 2, model.OutcomeNotAttempted).Outcome.Reason)
	assert.Equal(t, reasonAborted, assertRow(t, report, 4, model.OutcomeNotAttempted).Outcome.Reason)
	assert.Equal(t, reasonAbortedBeforeSubmission, assertRow(t, report, 5, model.OutcomeNotAttempted).Outcome.Reason)

	assert.Equal(t, 2, extractor.calls())
	assert.Empty(t, platform.callLog())
}

func TestRun_UnauthorizedLineItemAbortsRemaining(t *testing.T) {
	source := &sliceSource{rows: []model.RawRow{
		sheetRow(2, "A", "Tee", "", "1", "1", "", ""),
		sheetRow(3, "B", "Tee", "", "1", "1", "", ""),
		sheetRow(4, "C", "Tee", "", "1", "1", "", ""),
	}}
	platform := newFakePlatform()
	platform.lineErrs[2] = fmt.Errorf("printavo lineItemCreate: %w", common.ErrUnauthorized)

	report, err := New(testConfig(1), nil, platform, nil).Run(context.Background(), Request{Source: source})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	assert.Equal(t, model.RunAborted, report.Status)
	assert.Equal(t, model.KindUnauthorized, report.AbortKind)
	assertRow(t, report, 2, model.OutcomeCreated)
	assert.Equal(t, model.KindUnauthorized, assertRow(t, report, 3, model.OutcomeFailed).Outcome.ErrorKind)
	assert.Equal(t, reasonAbortedBeforeSubmission, assertRow(t, report, 4, model.OutcomeNotAttempted).Outcome.Reason)
	assert.Equal(t, 2, platform.count("line"))
	assertAllTerminal(t, report)
}

func TestRun_LineItemFailureIsRowLevel(t *testing.T) {
	source := &sliceSource{rows: []model.RawRow{
		sheetRow(2, "A", "Tee", "", "1", "1", "", ""),
		sheetRow(3, "B", "Tee", "", "1", "1", "", ""),
	}}
	platform := newFakePlatform()
	platform.lineErrs[1] = fmt.Errorf("printavo lineItemCreate: %w", common.ErrAmbiguousOutcome)

	report, err := New(testConfig(2), nil, platform, nil).Run(context.Background(), Request{Source: source})
	require.NoError(t, err)

	assert.Equal(t, model.RunCompletedWithErrors, report.Status)
	assert.Equal(t, model.KindAmbiguousOutcome, assertRow(t, report, 2, model.OutcomeFailed).Outcome.ErrorKind)
	assertRow(t, report, 3, model.OutcomeCreated)
	assert.Equal(t, map[model.ErrorKind]int{model.KindAmbiguousOutcome: 1}, report.FailureKinds())
}

func TestRun_ResolvedRowStillMissingFieldsIsSkipped(t *testing.T) {
	source := &sliceSource{rows: []model.RawRow{
		sheetRow(2, "", "", "Black", "", "2", "", ""),
		sheetRow(3, "G500", "Tee", "", "", "1", "", ""),
	}}
	extractor := &fakeExtractor{byRow: map[int]extractFunc{2: resolved("G500", "")}}
	platform := newFakePlatform()

	report, err := New(testConfig(2), extractor, platform, nil).Run(context.Background(), Request{Source: source})
	require.NoError(t, err)

	row := assertRow(t, report, 2, model.OutcomeSkipped)
	assert.Equal(t, model.KindValidation, row.Outcome.ErrorKind)
	assert.Contains(t, row.Outcome.Message, "missing description")
	assertRow(t, report, 3, model.OutcomeCreated)
	assert.Equal(t, 1, platform.count("line"))
}

func TestRun_CreatesCustomerWhenNoMatch(t *testing.T) {
	platform := newFakePlatform()
	platform.notFound = true
	cfg := testConfig(1)
	cfg.Customer.FirstName = "Pat"

	source := &sliceSource{rows: []model.RawRow{sheetRow(2, "A", "Tee", "", "", "1", "", "")}}
	report, err := New(cfg, nil, platform, nil).Run(context.Background(), Request{Source: source})
	require.NoError(t, err)

	require.Len(t, platform.newCustomers, 1)
	assert.Equal(t, "coach@league.org", platform.newCustomers[0].Email)
	assert.Equal(t, "Pat", platform.newCustomers[0].FirstName)
	assert.Equal(t, "new-contact", platform.orderContact)
	assert.Equal(t, "new-contact", report.CustomerID)
}

func TestRun_OrderFailureAborts(t *testing.T) {
	platform := newFakePlatform()
	platform.orderErr = fmt.Errorf("printavo lineItemGroupCreate: %w", common.ErrRemote)
	platform.partialOrder = model.PlatformOrder{ID: "q-9"}

	source := &sliceSource{rows: []model.RawRow{
		sheetRow(2, "A", "Tee", "", "", "1", "", ""),
		sheetRow(3, "", "", "", "", "", "", ""),
	}}
	report, err := New(testConfig(2), nil, platform, nil).Run(context.Background(), Request{Source: source})
	require.Error(t, err)

	assert.Equal(t, model.RunAborted, report.Status)
	assert.Equal(t, model.KindRemote, report.AbortKind)
	assert.Equal(t, "q-9", report.OrderID)
	assert.Equal(t, reasonAbortedBeforeSubmission, assertRow(t, report, 2, model.OutcomeNotAttempted).Outcome.Reason)
	assertRow(t, report, 3, model.OutcomeSkipped)
	assert.Equal(t, 0, platform.count("line"))
}

func TestRun_CustomerLookupFailureAborts(t *testing.T) {
	platform := newFakePlatform()
	platform.findErr = fmt.Errorf("printavo contacts: %w", common.ErrUnauthorized)

	source := &sliceSource{rows: []model.RawRow{sheetRow(2, "A", "Tee", "", "", "1", "", "")}}
	report, err := New(testConfig(1), nil, platform, nil).Run(context.Background(), Request{Source: source})
	require.Error(t, err)
	assert.True(t, common.IsFatal(err))
	assert.Equal(t, model.KindUnauthorized, report.AbortKind)
	assert.Equal(t, 0, platform.count("order"))
}

func TestRun_DryRun(t *testing.T) {
	source := &sliceSource{rows: []model.RawRow{
		sheetRow(2, "A", "Tee", "", "2.50", "1", "2", ""),
		sheetRow(3, "", "", "", "", "", "", ""),
	}}

	report, err := New(testConfig(1), nil, nil, nil).Run(context.Background(), Request{Source: source, DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, model.RunCompletedWithErrors, report.Status)
	row := assertRow(t, report, 2, model.OutcomeNotAttempted)
	assert.Equal(t, reasonDryRun, row.Outcome.Reason)
	assert.Equal(t, model.StateNotAttempted, row.State)
	assert.Equal(t, 3, row.Quantity)
	assertRow(t, report, 3, model.OutcomeSkipped)
}

func TestRun_RequiresPlatformUnlessDryRun(t *testing.T) {
	_, err := New(testConfig(1), nil, nil, nil).Run(context.Background(), Request{Source: &sliceSource{}})
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = New(testConfig(1), nil, newFakePlatform(), nil).Run(context.Background(), Request{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestRun_Consolidate(t *testing.T) {
	source := &sliceSource{rows: []model.RawRow{
		sheetRow(2, "G500", "Tee", "Black", "4", "1", "", ""),
		sheetRow(3, "G500", "Tee", "White", "4", "", "1", ""),
		sheetRow(4, "G500", "Tee", "Black", "4", "", "2", "1"),
	}}
	cfg := testConfig(2)
	cfg.Assembly = assembly.Options{Consolidate: true}
	platform := newFakePlatform()

	report, err := New(cfg, nil, platform, nil).Run(context.Background(), Request{Source: source})
	require.NoError(t, err)

	assert.Equal(t, model.RunCompleted, report.Status)
	assert.Equal(t, 2, platform.count("line"))

	black2 := assertRow(t, report, 2, model.OutcomeCreated)
	black4 := assertRow(t, report, 4, model.OutcomeCreated)
	assert.Equal(t, black2.Outcome.LineItemID, black4.Outcome.LineItemID)
	assert.Len(t, report.LineItemIDs(), 2)

	for _, line := range platform.lines {
		if line.item.Color == "Black" {
			assert.Equal(t, []int{2, 4}, line.item.SourceRows)
			assert.Equal(t, 4, line.item.TotalQuantity())
		}
	}
}

func TestRun_ReadErrorAborts(t *testing.T) {
	source := &sliceSource{
		rows:     []model.RawRow{sheetRow(2, "A", "Tee", "", "", "1", "", ""), sheetRow(3, "B", "Tee", "", "", "1", "", "")},
		err:      fmt.Errorf("%w: zip: checksum error", common.ErrIO),
		errAfter: 1,
	}
	platform := newFakePlatform()

	report, err := New(testConfig(1), nil, platform, nil).Run(context.Background(), Request{Source: source})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrIO)
	assert.Equal(t, model.KindIO, report.AbortKind)
	assert.Len(t, report.Rows, 1)
	assertRow(t, report, 2, model.OutcomeNotAttempted)
	assert.Empty(t, platform.callLog())
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &sliceSource{rows: []model.RawRow{
		sheetRow(2, "A", "Tee", "", "", "1", "", ""),
		sheetRow(3, "", "", "", "", "1", "", ""),
	}}
	extractor := &fakeExtractor{}
	platform := newFakePlatform()

	report, err := New(testConfig(1), extractor, platform, nil).Run(ctx, Request{Source: source})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.RunAborted, report.Status)
	assert.Equal(t, model.KindCanceled, report.AbortKind)
	assert.Equal(t, 2, report.NotAttemptedCount())
	assert.Equal(t, 0, extractor.calls())
	assert.Empty(t, platform.callLog())
}

func TestRun_InFlightCallFinishesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	var callErr error
	var once sync.Once

	platform := newFakePlatform()
	platform.addHook = func(callCtx context.Context, position int) error {
		if position != 1 {
			return nil
		}
		once.Do(func() { close(started) })
		select {
		case <-release:
			callErr = callCtx.Err()
			return nil
		case <-callCtx.Done():
			return callCtx.Err()
		}
	}

	source := &sliceSource{rows: []model.RawRow{
		sheetRow(2, "A", "Tee", "", "", "1", "", ""),
		sheetRow(3, "B", "Tee", "", "", "1", "", ""),
	}}

	type result struct {
		report *model.Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := New(testConfig(1), nil, platform, nil).Run(ctx, Request{Source: source})
		done <- result{report, err}
	}()

	<-started
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(release)

	res := <-done
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, context.Canceled)
	assert.NoError(t, callErr, "in-flight call keeps a live context")

	assertRow(t, res.report, 2, model.OutcomeCreated)
	assert.Equal(t, reasonCanceled, assertRow(t, res.report, 3, model.OutcomeNotAttempted).Outcome.Reason)
	assert.Equal(t, model.RunAborted, res.report.Status)
	assert.Equal(t, 1, platform.count("line"))
}

// cancelingClient cancels the run during its first completion and fails it
// with a retryable error.
type cancelingClient struct {
	cancel context.CancelFunc
	calls  int
	mu     sync.Mutex
}

func (c *cancelingClient) Complete(_ context.Context, _ llm.Request) (llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls == 1 {
		c.cancel()
		return llm.Response{}, common.ErrServiceUnavailable
	}
	return llm.Response{Text: `{"style": "G500", "description": "Tee", "sizes": {"M": 1}}`}, nil
}

func TestRun_NoRetryAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &cancelingClient{cancel: cancel}
	extractor := llm.NewExtractorWithClient(client, llm.Config{MaxRetries: 3, RetryDelay: time.Millisecond}, nil)
	platform := newFakePlatform()
	source := &sliceSource{rows: []model.RawRow{sheetRow(2, "", "Tee", "", "", "", "1", "")}}

	report, err := New(testConfig(1), extractor, platform, nil).Run(ctx, Request{Source: source})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	client.mu.Lock()
	calls := client.calls
	client.mu.Unlock()
	assert.Equal(t, 1, calls, "no request is sent once the run is canceled")
	assert.Equal(t, reasonCanceled, assertRow(t, report, 2, model.OutcomeNotAttempted).Outcome.Reason)
	assert.Empty(t, platform.callLog())
}

func TestRun_DrainTimeoutBoundsInFlightCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	platform := newFakePlatform()
	platform.addHook = func(callCtx context.Context, _ int) error {
		close(started)
		<-callCtx.Done()
		return callCtx.Err()
	}

	cfg := testConfig(1)
	cfg.DrainTimeout = 10 * time.Millisecond
	source := &sliceSource{rows: []model.RawRow{sheetRow(2, "A", "Tee", "", "", "1", "", "")}}

	done := make(chan *model.Report, 1)
	go func() {
		report, _ := New(cfg, nil, platform, nil).Run(ctx, Request{Source: source})
		done <- report
	}()

	<-started
	cancel()

	select {
	case report := <-done:
		row := assertRow(t, report, 2, model.OutcomeFailed)
		assert.Equal(t, model.KindCanceled, row.Outcome.ErrorKind)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after the drain timeout")
	}
}

func TestRun_ProgressEvents(t *testing.T) {
	source := &sliceSource{rows: []model.RawRow{
		sheetRow(2, "A", "Tee", "", "", "1", "", ""),
		sheetRow(3, "B", "Tee", "", "", "1", "", ""),
		sheetRow(4, "", "", "", "", "", "", ""),
	}}

	var events []Event
	orch := New(testConfig(2), nil, newFakePlatform(), nil)
	orch.OnProgress(func(ev Event) { events = append(events, ev) })

	_, err := orch.Run(context.Background(), Request{Source: source})
	require.NoError(t, err)

	var phases []Phase
	rowEvents := 0
	for _, ev := range events {
		if ev.Row != 0 {
			rowEvents++
			assert.True(t, ev.State.Terminal())
			continue
		}
		phases = append(phases, ev.Phase)
		if ev.Phase == PhaseSubmitting {
			assert.Equal(t, 2, ev.Total)
		}
	}
	assert.Equal(t, []Phase{PhasePreparing, PhaseSubmitting, PhaseDone}, phases)
	assert.Equal(t, 3, rowEvents)
}
