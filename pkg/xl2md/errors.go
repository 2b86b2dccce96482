package xl2md

import (
	"errors"
	"fmt"
)

// ErrInvalidWorkbook indicates the input cannot be parsed as a workbook.
var ErrInvalidWorkbook = errors.New("invalid workbook format")

// ErrOutputWrite indicates the output path cannot be created or written.
var ErrOutputWrite = errors.New("output not writable")

// ConversionError wraps a fatal error with the stage it occurred in.
// Per-sheet and per-object failures are handled inside the pipeline and
// never surface as ConversionError.
type ConversionError struct {
	Stage string // "load" or "write"
	Path  string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion failed at %s (%s): %v", e.Stage, e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

func newLoadError(path string, err error) *ConversionError {
	return &ConversionError{Stage: "load", Path: path, Err: fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)}
}

func newWriteError(path string, err error) *ConversionError {
	return &ConversionError{Stage: "write", Path: path, Err: fmt.Errorf("%w: %v", ErrOutputWrite, err)}
}
