package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// InterruptHandler turns the first interrupt into a graceful cancellation and
// a second one into an immediate exit.
type InterruptHandler struct {
	writer      io.Writer
	cancelFunc  context.CancelFunc
	notify      func(chan<- os.Signal)
	stop        func(chan<- os.Signal)
	exit        func(int)
	quit        chan struct{}
	drain       time.Duration
	interrupted bool
	stopOnce    sync.Once
	mu          sync.Mutex
}

// NewInterruptHandler creates a new interrupt handler. drain is how long
// in-flight requests may keep running after the first interrupt.
func NewInterruptHandler(writer io.Writer, drain time.Duration) *InterruptHandler {
	if writer == nil {
		writer = os.Stderr
	}
	return &InterruptHandler{
		writer: writer,
		drain:  drain,
		notify: func(c chan<- os.Signal) { signal.Notify(c, os.Interrupt, syscall.SIGTERM) },
		stop:   func(c chan<- os.Signal) { signal.Stop(c) },
		exit:   os.Exit,
	}
}

// HandleInterrupts returns a context that is canceled on the first interrupt.
// Signals are watched until Stop is called, or until ctx ends without an
// interrupt.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	h.cancelFunc = cancel
	h.quit = make(chan struct{})

	sigChan := make(chan os.Signal, 2)
	h.notify(sigChan)

	go func() {
		defer h.stop(sigChan)
		done := ctx.Done()
		for {
			select {
			case <-sigChan:
				if h.markInterrupted() {
					h.showInterruptMessage()
					cancel()
					done = nil
					continue
				}
				_, _ = fmt.Fprintln(h.writer, "\n"+FormatError("Forced exit; the quote may be incomplete."))
				h.exit(130)
				return
			case <-done:
				return
			case <-h.quit:
				return
			}
		}
	}()

	return ctx
}

// Stop releases signal handling.
func (h *InterruptHandler) Stop() {
	h.stopOnce.Do(func() {
		if h.quit != nil {
			close(h.quit)
		}
		if h.cancelFunc != nil {
			h.cancelFunc()
		}
	})
}

// markInterrupted records the first interrupt and reports whether this was it.
func (h *InterruptHandler) markInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.interrupted {
		return false
	}
	h.interrupted = true
	return true
}

// showInterruptMessage displays what happens to requests already sent.
func (h *InterruptHandler) showInterruptMessage() {
	msg := "\n\n" + FormatWarning("Submission interrupted!")
	if h.drain > 0 {
		msg += "\n" + FormatInfo(fmt.Sprintf("Waiting up to %s for requests already sent to finish.", h.drain))
	}
	msg += "\n" + FormatInfo("Press Ctrl+C again to exit immediately.") + "\n"

	if _, err := fmt.Fprint(h.writer, msg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted returns true if the process was interrupted.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
