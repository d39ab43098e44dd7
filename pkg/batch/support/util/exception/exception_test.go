package exception_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
)

func TestClassifiedErrors_MatchSentinels(t *testing.T) {
	cause := errors.New("boom")

	cases := []struct {
		err       error
		sentinel  error
		retryable bool
	}{
		{exception.NewSourceUnavailableError("fetcher", "missing", cause), exception.ErrSourceUnavailable, false},
		{exception.NewUnsupportedFormatError("reader", "xlsx", nil), exception.ErrUnsupportedFormat, false},
		{exception.NewPersistenceError("persister", "write", cause), exception.ErrPersistence, false},
		{exception.NewDispatchError("dispatch", "xadd", cause), exception.ErrDispatch, true},
		{exception.NewReportDeliveryError("report", "sink", cause), exception.ErrReportDelivery, false},
		{exception.NewInvalidCheckpointError("remote", "json", cause), exception.ErrInvalidCheckpoint, false},
	}
	for _, c := range cases {
		assert.True(t, errors.Is(c.err, c.sentinel), c.err.Error())
		assert.Equal(t, c.sentinel, exception.Classify(c.err))
		assert.True(t, exception.IsBatchError(c.err))
		assert.Equal(t, c.retryable, exception.IsRetryable(c.err), c.err.Error())
	}
	assert.True(t, errors.Is(cases[0].err, cause))
}

func TestClassify_WrappedAndUnclassified(t *testing.T) {
	inner := exception.NewPersistenceError("persister", "write", io.ErrUnexpectedEOF)
	wrapped := fmt.Errorf("execution: %w", inner)

	assert.Equal(t, exception.ErrPersistence, exception.Classify(wrapped))
	assert.Equal(t, "write", exception.ExtractErrorMessage(wrapped))
	assert.Nil(t, exception.Classify(errors.New("plain")))
}

func TestNewBatchErrorf(t *testing.T) {
	err := exception.NewBatchErrorf("config", "chunk_size %d out of range", 40, io.EOF)

	assert.Equal(t, "chunk_size 40 out of range", err.Message)
	assert.Equal(t, io.EOF, err.OriginalErr)
	assert.Equal(t, "[config] chunk_size 40 out of range: EOF", err.Error())
	assert.False(t, err.IsRetryable())
}

func TestExtractStackTrace(t *testing.T) {
	err := exception.NewPersistenceError("persister", "write", nil)
	assert.Contains(t, exception.ExtractStackTrace(err), "goroutine")
	assert.Equal(t, "plain", exception.ExtractStackTrace(errors.New("plain")))
	assert.Equal(t, "", exception.ExtractStackTrace(nil))
	assert.True(t, exception.IsRetryable(exception.NewDispatchError("dispatch", "x", nil)))
}
