// Package fault defines the categorized error taxonomy surfaced to callers.
package fault

import (
	"context"
	"errors"
	"fmt"
)

// Code is a stable, user-facing error category.
type Code string

const (
	CodeConfiguration        Code = "configuration"
	CodeModelNotFound        Code = "model_not_found"
	CodeSampleRateMismatch   Code = "sample_rate_mismatch"
	CodeEmptyAudio           Code = "empty_audio"
	CodeSegmentTranscription Code = "segment_transcription"
	CodeNotInitialized       Code = "not_initialized"
	CodeCancelled            Code = "cancelled"
	CodeInvalidInput         Code = "invalid_input"
	CodeInternal             Code = "internal"
)

var (
	// ErrConfiguration indicates an unknown variant or missing required fields.
	ErrConfiguration = errors.New("invalid engine configuration")
	// ErrModelNotFound indicates a model artifact is missing on disk.
	ErrModelNotFound = errors.New("model artifact not found")
	// ErrSampleRateMismatch is recoverable: the caller resamples.
	ErrSampleRateMismatch = errors.New("sample rate mismatch")
	// ErrEmptyAudio indicates zero-length input.
	ErrEmptyAudio = errors.New("empty audio")
	// ErrSegmentTranscription wraps a backend failure on one segment.
	ErrSegmentTranscription = errors.New("segment transcription failed")
	// ErrNotInitialized indicates no successful apply for a capability.
	ErrNotInitialized = errors.New("backend not initialized")
	// ErrCancelled indicates the request context ended before completion.
	ErrCancelled = errors.New("request cancelled")
	// ErrInvalidInput indicates unreadable or undecodable input audio.
	ErrInvalidInput = errors.New("invalid input audio")
)

var sentinels = map[Code]error{
	CodeConfiguration:        ErrConfiguration,
	CodeModelNotFound:        ErrModelNotFound,
	CodeSampleRateMismatch:   ErrSampleRateMismatch,
	CodeEmptyAudio:           ErrEmptyAudio,
	CodeSegmentTranscription: ErrSegmentTranscription,
	CodeNotInitialized:       ErrNotInitialized,
	CodeCancelled:            ErrCancelled,
	CodeInvalidInput:         ErrInvalidInput,
}

// Error carries a stable code, a safe message, and the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the category sentinel so errors.Is(err, ErrModelNotFound) works
// without the sentinel being part of the wrap chain.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Code]
	return ok && sentinel == target
}

// New builds a categorized error.
func New(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Configuration reports an unknown variant or missing required field.
func Configuration(format string, args ...any) *Error {
	return New(CodeConfiguration, nil, format, args...)
}

// ModelNotFound reports the missing artifact path.
func ModelNotFound(field string, path string) *Error {
	return New(CodeModelNotFound, nil, "%s: model file %q does not exist", field, path)
}

// NotInitialized reports that a capability was never applied successfully.
func NotInitialized(capability string) *Error {
	return New(CodeNotInitialized, nil, "%s backend is not initialized", capability)
}

// SegmentTranscription reports the failing segment's time bounds.
func SegmentTranscription(start, end float64, err error) *Error {
	return New(CodeSegmentTranscription, err, "transcribe segment [%.3fs, %.3fs)", start, end)
}

// CodeOf maps any error to its stable category; unknown errors are internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancelled
	}
	for code, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeInternal
}

// Message renders a categorized, user-safe message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	code := CodeOf(err)
	var fe *Error
	if errors.As(err, &fe) {
		return fmt.Sprintf("%s: %s", code, fe.Message)
	}
	if code == CodeInternal {
		return fmt.Sprintf("%s: unexpected failure", code)
	}
	return fmt.Sprintf("%s: %v", code, err)
}

// Detail renders the category followed by the full error chain. It is meant
// for the local operator; Message is the one safe to send over the wire.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", CodeOf(err), err)
}
