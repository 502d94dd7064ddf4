package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/quotesmith/internal/model"
	"github.com/Veraticus/quotesmith/internal/pipeline"
)

// Progress drives a terminal progress indicator from pipeline events.
// The row count is unknown while the workbook streams, so the bar spins and
// counts settled rows.
type Progress struct {
	bar    *progressbar.ProgressBar
	writer io.Writer
	counts map[model.OutcomeKind]int
	mu     sync.Mutex
}

// NewProgress creates a progress indicator writing to w.
func NewProgress(w io.Writer) *Progress {
	p := &Progress{
		writer: w,
		counts: make(map[model.OutcomeKind]int),
	}
	p.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription("[cyan][bold]Reading rows...[reset]"),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Handle consumes one pipeline event. It matches pipeline.ProgressFunc.
func (p *Progress) Handle(ev pipeline.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Phase {
	case pipeline.PhasePreparing:
		p.bar.Describe("[cyan][bold]Reading rows...[reset]")
	case pipeline.PhaseSubmitting:
		p.bar.Describe(fmt.Sprintf("[cyan][bold]Submitting %d line items...[reset]", ev.Total))
	case pipeline.PhaseDone:
		if err := p.bar.Finish(); err != nil {
			slog.Warn("Failed to finish progress bar", "error", err)
		}
	default:
		if ev.Row == 0 {
			return
		}
		p.counts[ev.Outcome.Kind]++
		if err := p.bar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
}

// Count returns how many settled rows ended with kind.
func (p *Progress) Count(kind model.OutcomeKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[kind]
}

// Settled returns the number of rows that reached a final outcome.
func (p *Progress) Settled() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.counts {
		total += n
	}
	return total
}
