// Package pipeline coordinates one run from workbook rows to a submitted quote.
package pipeline

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/Veraticus/quotesmith/internal/assembly"
	"github.com/Veraticus/quotesmith/internal/common"
	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/service"
	"github.com/google/uuid"
)

// Source yields the rows of one workbook sheet.
type Source interface {
	Rows() iter.Seq2[model.RawRow, error]
	Path() string
	Sheet() string
}

// Request describes one run.
type Request struct {
	Source Source
	// DryRun stops after assembly without calling the order platform.
	DryRun bool
}

// Config holds the settings a run is built from.
type Config struct {
	Customer     model.CustomerCriteria
	Metadata     assembly.MetadataOptions
	Assembly     assembly.Options
	Concurrency  int
	DrainTimeout time.Duration
}

// DefaultConfig returns a config with the standard limits and quote timeline.
func DefaultConfig() Config {
	return Config{
		Metadata:     assembly.DefaultMetadataOptions(),
		Concurrency:  4,
		DrainTimeout: 30 * time.Second,
	}
}

// Phase names a stage of a run.
type Phase string

// Run phases.
const (
	PhasePreparing  Phase = "preparing"
	PhaseSubmitting Phase = "submitting"
	PhaseDone       Phase = "done"
)

// Event is a progress notification. Row events carry the row number and its
// final state; phase events carry the number of units the phase will process
// when known.
type Event struct {
	Outcome model.SubmissionOutcome
	Phase   Phase
	State   model.RowState
	Row     int
	Total   int
}

// ProgressFunc receives events. Calls are serialized.
type ProgressFunc func(Event)

// Orchestrator runs the pipeline. Pass a nil extractor to skip ambiguous rows
// instead of sending them to a language model.
type Orchestrator struct {
	extractor service.Extractor
	platform  service.OrderPlatform
	logger    *slog.Logger
	progress  ProgressFunc
	now       func() time.Time
	cfg       Config
}

// New creates an orchestrator.
func New(cfg Config, extractor service.Extractor, platform service.OrderPlatform, logger *slog.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		extractor: extractor,
		platform:  platform,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// OnProgress registers a progress callback.
func (o *Orchestrator) OnProgress(fn ProgressFunc) {
	o.progress = fn
}

// Run processes every row of the request's workbook and, unless it is a dry
// run, submits one quote. The report lists every row read.
//
// A non-nil error means the run was aborted or canceled; the partial report is
// returned with it.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*model.Report, error) {
	if req.Source == nil {
		return nil, fmt.Errorf("%w: no workbook to process", common.ErrValidation)
	}
	if !req.DryRun && o.platform == nil {
		return nil, fmt.Errorf("%w: no order platform configured", common.ErrMissingConfig)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		o:      o,
		cancel: cancel,
		dryRun: req.DryRun,
		report: &model.Report{
			RunID:     uuid.NewString(),
			StartedAt: o.now(),
			Workbook:  req.Source.Path(),
			Sheet:     req.Source.Sheet(),
			DryRun:    req.DryRun,
		},
	}
	r.logger = o.logger.With("run_id", r.report.RunID)
	r.logger.Info("Starting run", "workbook", r.report.Workbook, "sheet", r.report.Sheet, "dry_run", req.DryRun)

	r.emit(Event{Phase: PhasePreparing})
	items := r.prepare(runCtx, req.Source)

	if !req.DryRun && len(items) > 0 && !r.stopped(runCtx) {
		r.submit(runCtx, items)
	}

	return r.finish(ctx)
}
