// Package exception provides the error types used by the importer.
// Every error raised by an import execution is a *BatchError whose cause chain carries one of the
// sentinel errors below, so callers classify failures with errors.Is.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	// ErrSourceUnavailable means the source blob could not be located or read.
	// No status report is produced for it.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrUnsupportedFormat means the declared source format cannot be decoded.
	// It is raised before any fetch is attempted.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrPersistence means a chunk write raised an error. It is terminal for the lineage.
	ErrPersistence = errors.New("persistence failure")
	// ErrDispatch means the checkpoint could not be handed to the next execution.
	ErrDispatch = errors.New("dispatch failure")
	// ErrReportDelivery means a terminal report was built but a sink rejected it.
	ErrReportDelivery = errors.New("report delivery failure")
	// ErrInvalidCheckpoint means a continuation payload could not be decoded.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
)

// BatchError is the error type raised by importer components.
// It holds the module where the error occurred, a message, the wrapped cause,
// retry/skip hints and the stack trace captured at construction.
type BatchError struct {
	// Module indicates the module where the error occurred (e.g., "fetcher", "persister", "dispatch", "config").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped cause.
	OriginalErr error
	isRetryable bool
	isSkippable bool
	// StackTrace is the stack trace at the time of the error. It is copied into FAILED reports.
	StackTrace string
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// NewBatchError creates a new BatchError instance.
//
// Parameters:
//
//	module: The module where the error occurred.
//	message: The error message.
//	originalErr: The cause to wrap (may be nil).
//	isSkippable: Whether this error is skippable.
//	isRetryable: Whether this error is retryable.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewBatchErrorf creates a new BatchError using a format string.
// A trailing error argument is taken as the cause and is not used for formatting.
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	if len(a) > 0 {
		if err, ok := a[len(a)-1].(error); ok {
			originalErr = err
			a = a[:len(a)-1]
		}
	}
	return &BatchError{
		Module:      module,
		Message:     fmt.Sprintf(format, a...),
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
	}
}

// classified builds a BatchError whose cause chain contains the sentinel.
func classified(sentinel error, module, message string, cause error, retryable bool) *BatchError {
	wrapped := sentinel
	if cause != nil {
		wrapped = errors.Join(sentinel, cause)
	}
	return NewBatchError(module, message, wrapped, false, retryable)
}

// NewSourceUnavailableError classifies a fetch failure.
func NewSourceUnavailableError(module, message string, cause error) *BatchError {
	return classified(ErrSourceUnavailable, module, message, cause, false)
}

// NewUnsupportedFormatError classifies a decode or declared-format failure.
func NewUnsupportedFormatError(module, message string, cause error) *BatchError {
	return classified(ErrUnsupportedFormat, module, message, cause, false)
}

// NewPersistenceError classifies a failed chunk write.
func NewPersistenceError(module, message string, cause error) *BatchError {
	return classified(ErrPersistence, module, message, cause, false)
}

// NewDispatchError classifies a failed checkpoint hand-off.
func NewDispatchError(module, message string, cause error) *BatchError {
	return classified(ErrDispatch, module, message, cause, true)
}

// NewReportDeliveryError classifies a sink failure after a terminal state. The lineage has ended,
// so it is never retryable.
func NewReportDeliveryError(module, message string, cause error) *BatchError {
	return classified(ErrReportDelivery, module, message, cause, false)
}

// NewInvalidCheckpointError classifies an undecodable continuation payload.
func NewInvalidCheckpointError(module, message string, cause error) *BatchError {
	return classified(ErrInvalidCheckpoint, module, message, cause, false)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Is / errors.As.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether this error is skippable.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// IsBatchError reports whether err (or anything in its chain) is a *BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// IsRetryable reports whether err is a BatchError flagged retryable.
func IsRetryable(err error) bool {
	var be *BatchError
	if errors.As(err, &be) {
		return be.IsRetryable()
	}
	return false
}

// Classify returns the sentinel that err carries, or nil when it carries none.
func Classify(err error) error {
	for _, sentinel := range []error{
		ErrUnsupportedFormat,
		ErrSourceUnavailable,
		ErrPersistence,
		ErrDispatch,
		ErrReportDelivery,
		ErrInvalidCheckpoint,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

// ExtractErrorMessage extracts the error message string from an error.
// For BatchError, it returns the cleaner Message field.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

// ExtractStackTrace returns the captured stack trace of a BatchError, or the error string otherwise.
func ExtractStackTrace(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) && be.StackTrace != "" {
		return be.StackTrace
	}
	return err.Error()
}
