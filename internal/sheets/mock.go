package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/service"
)

// MockExporter is a mock implementation of ReportExporter for testing.
type MockExporter struct {
	ExportFunc  func(ctx context.Context, report *model.Report) error
	LastReport  *model.Report
	ExportCalls []ExportCall
	mu          sync.Mutex
}

var _ service.ReportExporter = (*MockExporter)(nil)

// ExportCall represents a single call to Export.
type ExportCall struct {
	Error  error
	Report *model.Report
}

// NewMockExporter creates a new mock exporter.
func NewMockExporter() *MockExporter {
	return &MockExporter{}
}

// Export implements the ReportExporter interface.
func (m *MockExporter) Export(ctx context.Context, report *model.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastReport = report

	var err error
	if m.ExportFunc != nil {
		err = m.ExportFunc(ctx, report)
	}

	m.ExportCalls = append(m.ExportCalls, ExportCall{Report: report, Error: err})
	return err
}

// CallCount returns how many times Export was called.
func (m *MockExporter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ExportCalls)
}

// SetExportError configures the mock to fail every Export call with err.
func (m *MockExporter) SetExportError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExportFunc = func(context.Context, *model.Report) error {
		return err
	}
}
