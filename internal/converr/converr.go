// Package converr defines the failure kinds a conversion run can end with.
// Every kind is terminal: callers report it and stop, nothing is retried.
package converr

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected failure modes
var (
	ErrToolMissing    = errors.New("transcoder executable missing")
	ErrNoSources      = errors.New("no download source for platform")
	ErrUnknownArchive = errors.New("unrecognised archive format")
)

// ArgumentError reports bad or missing conversion arguments.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string {
	return e.Msg
}

// Argumentf creates an ArgumentError with a formatted message.
func Argumentf(format string, args ...any) *ArgumentError {
	return &ArgumentError{Msg: fmt.Sprintf(format, args...)}
}

// ProvisionError reports a failure to fetch or install the transcoder.
type ProvisionError struct {
	Op  string // "download", "extract", "install", "locate"
	Err error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision ffmpeg (%s): %v", e.Op, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// IOError reports a filesystem failure on a specific path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ConversionError reports that the transcoder failed on one input file.
type ConversionError struct {
	File string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.File, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Kind names the failure category of err for status output, or "error" when
// err is none of the known kinds.
func Kind(err error) string {
	var (
		argErr  *ArgumentError
		provErr *ProvisionError
		ioErr   *IOError
		convErr *ConversionError
	)
	switch {
	case errors.As(err, &argErr):
		return "argument error"
	case errors.As(err, &provErr):
		return "provision error"
	case errors.As(err, &ioErr):
		return "io error"
	case errors.As(err, &convErr):
		return "conversion error"
	default:
		return "error"
	}
}
