// Package apperr defines the error taxonomy every stage of the extraction
// pipeline reports through. Every code but InternalInvariantViolated is
// per-item: the orchestrator catches it, logs it, and moves to the next
// job. InternalInvariantViolated signals a broken invariant and is the one
// code Fatal reports: orchestrator.Run returns it as its own error value
// (not inside Result.Err), and the batch driver stops and returns it. No
// panic is involved.
package apperr

import "fmt"

// Code classifies the failure a pipeline stage reported.
type Code string

const (
	InputMalformed        Code = "input_malformed"
	SourceMissing         Code = "source_missing"
	UnknownFormat         Code = "unknown_format"
	BibcodeUnresolved     Code = "bibcode_unresolved"
	UnpackFailed          Code = "unpack_failed"
	NoMainFile            Code = "no_main_file"
	CompileTimeout        Code = "compile_timeout"
	CompileOutputMissing  Code = "compile_output_missing"
	TextConversionFailed  Code = "text_conversion_failed"
	NoReferencesFound     Code = "no_references_found"
	TooFewReferences      Code = "too_few_references"
	OutputIOError         Code = "output_io_error"
	WithdrawnItem         Code = "withdrawn_item"
	InternalInvariantViolated Code = "internal_invariant_violated"
)

// Error is the concrete error type every stage returns. Details carries
// free-form context (file names, exit codes) useful in logs but not part
// of identity; callers should switch on Code, not on the message text.
type Error struct {
	Code    Code
	Message string
	Details string
	Cause   error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new Error, preserving the original error's
// text as Details so both survive in logs.
func Wrap(code Code, message string, cause error) *Error {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &Error{Code: code, Message: message, Details: details, Cause: cause}
}

// WithDetails returns a copy of e with Details set, for stages that know
// the code and message up front but add context afterward (e.g. after a
// subprocess runs and produces exit-code/stderr information).
func (e *Error) WithDetails(details string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Is reports whether err (or something it wraps) carries the given code.
// It supports plain errors.Is-style unwrapping via repeated Unwrap calls.
func Is(err error, code Code) bool {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			if ae.Code == code {
				return true
			}
			err = ae.Cause
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Fatal reports whether code represents a process-aborting condition
// rather than a per-item failure the orchestrator can recover from.
func Fatal(code Code) bool {
	return code == InternalInvariantViolated
}
