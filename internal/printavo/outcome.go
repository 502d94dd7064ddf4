package printavo

import (
	"errors"
	"fmt"
	"time"
)

// Outcome classifies the result of one API call.
type Outcome int

// Call outcomes.
const (
	Success Outcome = iota
	TransientFailure
	AmbiguousOutcome
	PermanentFailure
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case TransientFailure:
		return "transient"
	case AmbiguousOutcome:
		return "ambiguous"
	case PermanentFailure:
		return "permanent"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// CallError describes a failed call.
type CallError struct {
	Err        error
	Op         string
	Outcome    Outcome
	StatusCode int
	RetryAfter time.Duration
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("printavo %s (%s, status %d): %v", e.Op, e.Outcome, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("printavo %s (%s): %v", e.Op, e.Outcome, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// OutcomeOf reports the outcome carried by err. Errors that did not come
// from a call are permanent.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Success
	}
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Outcome
	}
	return PermanentFailure
}
