package ledger

import (
	"errors"
	"fmt"

	"go.trai.ch/zerr"
)

// ErrRowVanished means the current-state row read at the start of a mutation
// was gone when the mutation came to write it.
var ErrRowVanished = zerr.New("current state row no longer exists")

// Step names one write in a mutation sequence.
type Step string

const (
	StepAppendLedger Step = "append_ledger"
	StepWriteCurrent Step = "write_current"
	StepCompensate   Step = "compensate"
)

// ValidationError rejects a request before anything was written.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string { return e.Op + ": " + e.Reason }

func invalid(op, format string, args ...any) error {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// StepError reports a write that failed part way through a mutation. Steps
// before Step completed and are not rolled back: a failure at
// StepWriteCurrent means the ledger already records a change the current
// state does not reflect.
type StepError struct {
	Op   string
	Step Step
	Err  error
	// Compensated is set when a transfer's source was re-credited after the
	// destination write failed.
	Compensated bool
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s: %s failed: %v", e.Op, e.Step, e.Err)
	switch {
	case e.Compensated:
		msg += " (source re-credited)"
	case e.Step == StepWriteCurrent:
		msg += " (ledger entry recorded, current state not updated)"
	case e.Step == StepCompensate:
		msg += " (source debited, destination not credited)"
	}
	return msg
}

func (e *StepError) Unwrap() error { return e.Err }

// FailedStep returns the step of a wrapped *StepError, or "".
func FailedStep(err error) Step {
	var s *StepError
	if errors.As(err, &s) {
		return s.Step
	}
	return ""
}
