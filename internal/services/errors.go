package services

import (
	"errors"
	"fmt"
	"strings"

	"scribe/internal/job"
)

var (
	ErrCanceled      = errors.New("canceled by user")
	ErrAcceleration  = errors.New("acceleration failure")
	ErrWorkerCrash   = errors.New("worker crashed")
	ErrExternalTool  = errors.New("external tool error")
	ErrComputation   = errors.New("computation error")
	ErrSaveConflict  = errors.New("save conflict")
	ErrSaveFailed    = errors.New("save failed")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Kind names the error taxonomy bucket an error falls into.
type Kind string

const (
	KindCanceled      Kind = "canceled"
	KindAcceleration  Kind = "acceleration"
	KindWorkerCrash   Kind = "worker_crash"
	KindExternalTool  Kind = "external_tool"
	KindComputation   Kind = "computation"
	KindSaveConflict  Kind = "save_conflict"
	KindSaveFailed    Kind = "save_failed"
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindUnknown       Kind = "unknown"
)

var markerKinds = []struct {
	marker error
	kind   Kind
}{
	{ErrCanceled, KindCanceled},
	{ErrAcceleration, KindAcceleration},
	{ErrWorkerCrash, KindWorkerCrash},
	{ErrExternalTool, KindExternalTool},
	{ErrComputation, KindComputation},
	{ErrSaveFailed, KindSaveFailed},
	{ErrSaveConflict, KindSaveConflict},
	{ErrValidation, KindValidation},
	{ErrConfiguration, KindConfiguration},
}

// PhaseError is the structured form produced by Wrap.
type PhaseError struct {
	Marker    error
	Phase     string
	Operation string
	Message   string
	Trace     string
	Err       error
}

func (e *PhaseError) Error() string {
	if e.Phase == "" && e.Operation == "" && e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	detail := buildDetail(e.Phase, e.Operation, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

// Unwrap exposes both the marker and the cause to errors.Is / errors.As.
func (e *PhaseError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap builds an error message that includes phase context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, phase, operation, message string, err error) error {
	if marker == nil {
		marker = ErrComputation
	}
	return &PhaseError{
		Marker:    marker,
		Phase:     strings.TrimSpace(phase),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// WithTrace attaches a technical trace (for example a worker stack trace) to err.
// The trace is kept out of Error() and surfaces through Details.
func WithTrace(err error, trace string) error {
	trace = strings.TrimSpace(trace)
	if err == nil || trace == "" {
		return err
	}
	var pe *PhaseError
	if errors.As(err, &pe) && pe.Trace == "" {
		pe.Trace = trace
		return err
	}
	return &PhaseError{Marker: markerOf(err), Trace: trace, Err: err}
}

// ErrorDetails summarises an error for logs and user-facing job fields.
type ErrorDetails struct {
	Kind      Kind
	Phase     string
	Operation string
	Message   string
	Trace     string
	Cause     error
}

// Details extracts the outermost structured context from err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: KindOf(err)}
	var pe *PhaseError
	if errors.As(err, &pe) {
		details.Phase = pe.Phase
		details.Operation = pe.Operation
		details.Message = pe.Message
		details.Trace = pe.Trace
		details.Cause = pe.Err
		if details.Trace == "" {
			var inner *PhaseError
			if errors.As(pe.Err, &inner) {
				details.Trace = inner.Trace
			}
		}
	}
	if details.Message == "" {
		details.Message = strings.TrimSpace(err.Error())
	}
	return details
}

// KindOf classifies err into the error taxonomy.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.kind
		}
	}
	return KindUnknown
}

// FailureStatus maps a phase error to the terminal job status the
// orchestrator should record.
func FailureStatus(err error) job.Status {
	if errors.Is(err, ErrCanceled) {
		return job.StatusCanceled
	}
	return job.StatusError
}

func markerOf(err error) error {
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.marker
		}
	}
	return ErrComputation
}

func buildDetail(phase, operation, message string) string {
	parts := make([]string, 0, 3)
	if phase = strings.TrimSpace(phase); phase != "" {
		parts = append(parts, phase)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
