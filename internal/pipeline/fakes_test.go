package pipeline

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/Veraticus/quotesmith/internal/model"
)

var testHeaders = []string{"Style", "Description", "Color", "Price", "S", "M", "L"}

// sheetRow builds a row under testHeaders.
func sheetRow(number int, values ...string) model.RawRow {
	cells := make([]model.Cell, len(testHeaders))
	for i, h := range testHeaders {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		cells[i] = model.NewCell(h, v)
	}
	return model.RawRow{Number: number, Cells: cells}
}

type sliceSource struct {
	err      error
	rows     []model.RawRow
	errAfter int
}

func (s *sliceSource) Rows() iter.Seq2[model.RawRow, error] {
	return func(yield func(model.RawRow, error) bool) {
		for i, row := range s.rows {
			if s.err != nil && i == s.errAfter {
				yield(model.RawRow{}, s.err)
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

func (s *sliceSource) Path() string  { return "orders.xlsx" }
func (s *sliceSource) Sheet() string { return "Sheet1" }

type extractFunc func(draft model.DraftLineItem) (model.ExtractionResult, error)

type fakeExtractor struct {
	byRow map[int]extractFunc
	rows  []int
	mu    sync.Mutex
}

func (f *fakeExtractor) Extract(_ context.Context, draft model.DraftLineItem, _ model.RawRow) (model.ExtractionResult, error) {
	f.mu.Lock()
	f.rows = append(f.rows, draft.RowNumber)
	fn := f.byRow[draft.RowNumber]
	f.mu.Unlock()

	if fn == nil {
		return model.ExtractionResult{}, fmt.Errorf("no scripted extraction for row %d", draft.RowNumber)
	}
	return fn(draft)
}

func (f *fakeExtractor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type lineCall struct {
	item     model.OrderLineItem
	order    model.PlatformOrder
	position int
}

type fakePlatform struct {
	findErr      error
	orderErr     error
	lineErrs     map[int]error
	addHook      func(ctx context.Context, position int) error
	partialOrder model.PlatformOrder
	customerID   string
	calls        []string
	lines        []lineCall
	newCustomers []model.NewCustomer
	orderContact string
	orders       int
	mu           sync.Mutex
	notFound     bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{customerID: "cust-1", lineErrs: make(map[int]error)}
}

func (f *fakePlatform) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakePlatform) FindCustomer(_ context.Context, _ model.CustomerCriteria) (string, bool, error) {
	f.record("find")
	if f.findErr != nil {
		return "", false, f.findErr
	}
	if f.notFound {
		return "", false, nil
	}
	return f.customerID, true, nil
}

func (f *fakePlatform) CreateCustomer(_ context.Context, c model.NewCustomer) (string, error) {
	f.record("customer")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newCustomers = append(f.newCustomers, c)
	return "new-contact", nil
}

func (f *fakePlatform) CreateOrder(_ context.Context, contactID string, _ model.OrderMetadata) (model.PlatformOrder, error) {
	f.record("order")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders++
	f.orderContact = contactID
	if f.orderErr != nil {
		return f.partialOrder, f.orderErr
	}
	return model.PlatformOrder{ID: "q-1", VisualID: "1001", URL: "https://example.test/q/1001", GroupID: "g-1"}, nil
}

func (f *fakePlatform) AddLineItem(ctx context.Context, order model.PlatformOrder, position int, item model.OrderLineItem) (string, error) {
	f.record("line")
	if f.addHook != nil {
		if err := f.addHook(ctx, position); err != nil {
			return "", err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, lineCall{order: order, position: position, item: item})
	if err := f.lineErrs[position]; err != nil {
		return "", err
	}
	return fmt.Sprintf("li-%d", position), nil
}

func (f *fakePlatform) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakePlatform) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
