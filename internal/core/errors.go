package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so the HTTP layer can map it without
// inspecting messages.
type ErrorKind string

const (
	KindUnsupportedFormat         ErrorKind = "unsupported_format"
	KindConversionFailed          ErrorKind = "conversion_failed"
	KindExtractionFailed          ErrorKind = "extraction_failed"
	KindClassificationUnavailable ErrorKind = "classification_unavailable"
	KindValidation                ErrorKind = "validation_error"
	KindInternal                  ErrorKind = "internal"
)

// Stage names a pipeline step.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageExtract   Stage = "extract"
	StageClassify  Stage = "classify"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// PipelineError is returned by every pipeline stage.
type PipelineError struct {
	Kind      ErrorKind
	Stage     Stage
	Filename  string
	RequestID string
	Retryable bool
	Err       error
}

func (e *PipelineError) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg = fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	if e.Filename != "" {
		msg += fmt.Sprintf(" (%s)", e.Filename)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError builds a non-retryable stage error.
func NewPipelineError(kind ErrorKind, stage Stage, err error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Err: err}
}

// KindOf returns the kind carried by err, or "" when err is not a PipelineError.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// PanicError carries a value recovered from a panicking stage.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// ValidationError reports bad user input such as malformed credentials.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}
