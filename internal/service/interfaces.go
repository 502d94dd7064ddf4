// Package service defines the interfaces shared between pipeline components.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/quotesmith/internal/model"
)

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Extractor resolves an ambiguous draft line item with a language model.
type Extractor interface {
	Extract(ctx context.Context, draft model.DraftLineItem, row model.RawRow) (model.ExtractionResult, error)
}

// CustomerFinder looks up existing customers on the order platform.
type CustomerFinder interface {
	FindCustomer(ctx context.Context, criteria model.CustomerCriteria) (string, bool, error)
}

// OrderPlatform is the subset of the order platform API the pipeline uses.
type OrderPlatform interface {
	CustomerFinder
	CreateCustomer(ctx context.Context, customer model.NewCustomer) (string, error)
	CreateOrder(ctx context.Context, customerID string, meta model.OrderMetadata) (model.PlatformOrder, error)
	AddLineItem(ctx context.Context, order model.PlatformOrder, position int, item model.OrderLineItem) (string, error)
}

// RunSummary is a stored run without its per-row entries.
type RunSummary struct {
	StartedAt    time.Time
	RunID        string
	Workbook     string
	Status       model.RunStatus
	OrderID      string
	Submitted    int
	Skipped      int
	Failed       int
	NotAttempted int
	DryRun       bool
}

// RunStore persists run reports.
type RunStore interface {
	SaveReport(ctx context.Context, report *model.Report) error
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	GetRun(ctx context.Context, runID string) (*model.Report, error)
	Close() error
}

// ReportExporter publishes a finished report to an external destination.
type ReportExporter interface {
	Export(ctx context.Context, report *model.Report) error
}
