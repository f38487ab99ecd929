// Package errs defines the error kinds shared by every stage of a render.
//
// Stage failures are wrapped in a StageError so the CLI can name the stage
// that failed, while callers still match the underlying kind with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when audio input cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrInvalidConfig is returned for bad parameters such as ratio <= 0.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrDimension is returned when the logo region does not fit the background.
	ErrDimension = errors.New("dimension")

	// ErrInconsistentFrameSize is returned when a frame differs in size from the first.
	ErrInconsistentFrameSize = errors.New("inconsistent frame size")

	// ErrMuxFailure is returned when the muxing process fails, times out or cannot start.
	ErrMuxFailure = errors.New("mux failure")

	// ErrIO covers unreadable inputs and unwritable outputs.
	ErrIO = errors.New("io")
)

// Stage names used by the pipeline.
const (
	StageConfig  = "config"
	StageDecode  = "decode"
	StageAnalyse = "analyse"
	StageLoad    = "load"
	StageRender  = "render"
	StageEncode  = "encode"
	StageMux     = "mux"
	StageOutput  = "output"
)

// StageError records which pipeline stage produced Err.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Wrap returns err wrapped in a StageError, or nil when err is nil.
// An error that already names a stage is returned unchanged, so the
// innermost stage wins.
func Wrap(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded in err, or "" if there is none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ExitError describes a failed external process.
type ExitError struct {
	Kind     error
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%v: %s exited with code %d", e.Kind, e.Command, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

// Unwrap exposes both the error kind and the underlying cause.
func (e *ExitError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
