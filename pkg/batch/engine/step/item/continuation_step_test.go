package item_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	component "github.com/tigerroll/recipient-import/pkg/batch/component/item"
	reader "github.com/tigerroll/recipient-import/pkg/batch/component/step/reader"
	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/engine/step/deadline"
	item "github.com/tigerroll/recipient-import/pkg/batch/engine/step/item"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

type mockFetcher struct{ mock.Mock }

func (m *mockFetcher) FetchSource(ctx context.Context, locator model.SourceLocator) (port.Source, error) {
	args := m.Called(ctx, locator)
	return args.Get(0).(port.Source), args.Error(1)
}

type mockWriter struct{ mock.Mock }

func (m *mockWriter) PersistBatch(ctx context.Context, entities []model.RecipientEntity) (port.BatchWriteResult, error) {
	args := m.Called(ctx, entities)
	return args.Get(0).(port.BatchWriteResult), args.Error(1)
}

type mockRedispatcher struct{ mock.Mock }

func (m *mockRedispatcher) Redispatch(ctx context.Context, cp model.Checkpoint) error {
	return m.Called(ctx, cp).Error(0)
}

type mockSink struct{ mock.Mock }

func (m *mockSink) Deliver(ctx context.Context, report model.ImportStatusReport) error {
	return m.Called(ctx, report).Error(0)
}

// scriptedTime returns the scripted values in order and repeats the last one.
type scriptedTime struct {
	values []int64
	calls  int
}

func (s *scriptedTime) RemainingTimeMs() int64 {
	i := s.calls
	if i >= len(s.values) {
		i = len(s.values) - 1
	}
	s.calls++
	return s.values[i]
}

type harness struct {
	fetcher      *mockFetcher
	writer       *mockWriter
	redispatcher *mockRedispatcher
	sink         *mockSink
	step         *item.ContinuationStep
}

func newHarness(stallLimit int) *harness {
	h := &harness{
		fetcher:      new(mockFetcher),
		writer:       new(mockWriter),
		redispatcher: new(mockRedispatcher),
		sink:         new(mockSink),
	}
	cfg := config.ImportConfig{EmailColumn: "email"}
	h.step = item.NewContinuationStep(
		item.StepConfig{ChunkSize: model.MaxChunkSize, ExecutionThresholdMs: model.DefaultExecutionThresholdMs, StallLimit: stallLimit},
		reader.NewDecoderRegistry(reader.NewCSVDecoder()),
		h.fetcher,
		component.NewRecordNormalizer(cfg),
		component.NewValidationFilter(),
		h.writer,
		h.redispatcher,
		h.sink,
	).WithClock(func() time.Time { return fixedNow })
	return h
}

func csvOf(emails ...string) []byte {
	return []byte("email,name\n" + strings.Join(func() []string {
		rows := make([]string, len(emails))
		for i, e := range emails {
			rows[i] = fmt.Sprintf("%s,name-%d", e, i)
		}
		return rows
	}(), "\n"))
}

func validEmails(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("user%02d@example.com", i)
	}
	return out
}

func newJob(t *testing.T, offset int) model.ImportJob {
	t.Helper()
	job, err := model.NewImportJob(model.Checkpoint{
		SourceLocator: model.SourceLocator{Bucket: "uploads", Key: "user-7/list-9.csv"},
		Offset:        offset,
	})
	require.NoError(t, err)
	return job
}

func withLen(n int) interface{} {
	return mock.MatchedBy(func(e []model.RecipientEntity) bool { return len(e) == n })
}

func fullyWritten() port.BatchWriteResult { return port.BatchWriteResult{} }

func plenty() port.RemainingTimeSource { return deadline.FixedSource(10 * 60 * 1000) }

func TestContinuationStep_SmallListSucceedsInOneChunk(t *testing.T) {
	h := newHarness(3)
	h.fetcher.On("FetchSource", mock.Anything, mock.Anything).Return(port.Source{Body: csvOf(validEmails(10)...)}, nil)
	h.writer.On("PersistBatch", mock.Anything, withLen(10)).Return(fullyWritten(), nil).Once()
	h.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	out, err := h.step.Execute(context.Background(), newJob(t, 0), plenty())

	require.NoError(t, err)
	assert.Equal(t, item.StateDoneSuccess, out.State)
	require.NotNil(t, out.Report)
	assert.Equal(t, model.ImportStatusSuccess, out.Report.ImportStatus)
	assert.Equal(t, 10, out.Report.ImportedCount)
	assert.Equal(t, 10, out.Report.TotalRecipientsCount)
	assert.Equal(t, 0, out.Report.CorruptedEmailsCount)
	assert.Equal(t, "list-9", out.Report.ListID)
	assert.Equal(t, "user-7", out.Report.UserID)
	assert.Equal(t, fixedNow, out.Report.UpdatedAt)
	assert.Nil(t, out.Checkpoint)
	h.writer.AssertNumberOfCalls(t, "PersistBatch", 1)
	h.redispatcher.AssertNotCalled(t, "Redispatch", mock.Anything, mock.Anything)
	h.sink.AssertNumberOfCalls(t, "Deliver", 1)
}

func TestContinuationStep_CheckpointsAndResumes(t *testing.T) {
	body := csvOf(validEmails(30)...)

	// First execution: time runs out after the first chunk.
	first := newHarness(3)
	first.fetcher.On("FetchSource", mock.Anything, mock.Anything).Return(port.Source{Body: body}, nil)
	first.writer.On("PersistBatch", mock.Anything, withLen(25)).Return(fullyWritten(), nil).Once()
	first.redispatcher.On("Redispatch", mock.Anything, mock.Anything).Return(nil)

	out, err := first.step.Execute(context.Background(), newJob(t, 0), deadline.FixedSource(30000))

	require.NoError(t, err)
	assert.Equal(t, item.StateCheckpointDispatch, out.State)
	assert.Nil(t, out.Report)
	require.NotNil(t, out.Checkpoint)
	assert.Equal(t, 25, out.Checkpoint.Offset)
	assert.Equal(t, "user-7/list-9.csv", out.Checkpoint.SourceLocator.Key)
	first.redispatcher.AssertCalled(t, "Redispatch", mock.Anything, *out.Checkpoint)
	first.sink.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)

	// Second execution resumes from the dispatched checkpoint.
	second := newHarness(3)
	second.fetcher.On("FetchSource", mock.Anything, mock.Anything).Return(port.Source{Body: body}, nil)
	second.writer.On("PersistBatch", mock.Anything, mock.MatchedBy(func(e []model.RecipientEntity) bool {
		return len(e) == 5 && e[0].Email == "user25@example.com"
	})).Return(fullyWritten(), nil).Once()
	second.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	job, err := model.NewImportJob(*out.Checkpoint)
	require.NoError(t, err)
	final, err := second.step.Execute(context.Background(), job, plenty())

	require.NoError(t, err)
	assert.Equal(t, item.StateDoneSuccess, final.State)
	assert.Equal(t, 30, final.Report.ImportedCount)
	assert.Equal(t, 30, final.Report.TotalRecipientsCount)
	second.writer.AssertExpectations(t)
	second.redispatcher.AssertNotCalled(t, "Redispatch", mock.Anything, mock.Anything)
}

func TestContinuationStep_LoopsLocallyWhileTimeRemains(t *testing.T) {
	h := newHarness(3)
	h.fetcher.On("FetchSource", mock.Anything, mock.Anything).Return(port.Source{Body: csvOf(validEmails(60)...)}, nil)
	h.writer.On("PersistBatch", mock.Anything, withLen(25)).Return(fullyWritten(), nil).Twice()
	h.writer.On("PersistBatch", mock.Anything, withLen(10)).Return(fullyWritten(), nil).Once()
	h.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	remaining := &scriptedTime{values: []int64{120000, 90000}}
	out, err := h.step.Execute(context.Background(), newJob(t, 0), remaining)

	require.NoError(t, err)
	assert.Equal(t, item.StateDoneSuccess, out.State)
	assert.Equal(t, 60, out.Report.ImportedCount)
	assert.Equal(t, 2, remaining.calls, "no deadline check after the last chunk")
	h.writer.AssertExpectations(t)
}

func TestContinuationStep_MixedInputPartitions(t *testing.T) {
	h := newHarness(3)
	h.fetcher.On("FetchSource", mock.Anything, mock.Anything).Return(port.Source{Body: csvOf("a@b.com", "not-an-email", "c@d.com")}, nil)
	h.writer.On("PersistBatch", mock.Anything, mock.MatchedBy(func(e []model.RecipientEntity) bool {
		return len(e) == 2 && e[0].Email == "a@b.com" && e[1].Email == "c@d.com"
	})).Return(fullyWritten(), nil).Once()
	h.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	out, err := h.step.Execute(context.Background(), newJob(t, 0), plenty())

	require.NoError(t, err)
	assert.Equal(t, 3, out.Report.TotalRecipientsCount)
	assert.Equal(t, 2, out.Report.ImportedCount)
	assert.Equal(t, 1, out.Report.CorruptedEmailsCount)
	assert.Equal(t, []string{"not-an-email"}, out.Report.CorruptedEmails)
	h.writer.AssertExpectations(t)
}

func TestContinuationStep_PersistenceFailureEndsLineage(t *testing.T) {
	h := newHarness(3)
	h.fetcher.On("FetchSource", mock.Anything, mock.Anything).Return(port.Source{Body: csvOf(validEmails(40)...)}, nil)
	h.writer.On("PersistBatch", mock.Anything, withLen(25)).Return(fullyWritten(), nil).Once()
	h.writer.On("PersistBatch", mock.Anything, withLen(15)).Return(port.BatchWriteResult{}, errors.New("throughput exceeded")).Once()
	h.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	out, err := h.step.Execute(context.Background(), newJob(t, 0), plenty())

	require.NoError(t, err, "a FAILED report is the failure signal")
	assert.Equal(t, item.StateDoneFailed, out.State)
	require.NotNil(t, out.Report)
	assert.Equal(t, model.ImportStatusFailed, out.Report.ImportStatus)
	assert.Equal(t, 25, out.Report.ImportedCount)
	assert.Contains(t, out.Report.Message, "throughput exceeded")
	assert.NotEmpty(t, out.Report.Trace)
	assert.True(t, errors.Is(out.Cause, exception.ErrPersistence))
	h.redispatcher.AssertNotCalled(t, "Redispatch", mock.Anything, mock.Anything)
	h.sink.AssertNumberOfCalls(t, "Deliver", 1)
}

func TestContinuationStep_UnsupportedFormatRejectedBeforeFetch(t *testing.T) {
	h := newHarness(3)
	job, err := model.NewImportJob(model.Checkpoint{SourceLocator: model.SourceLocator{Bucket: "uploads", Key: "user-7/list-9.xlsx"}})
	require.NoError(t, err)

	out, err := h.step.Execute(context.Background(), job, plenty())

	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrUnsupportedFormat))
	assert.Equal(t, item.StateFetching, out.State)
	assert.Nil(t, out.Report)
	h.fetcher.AssertNotCalled(t, "FetchSource", mock.Anything, mock.Anything)
	h.writer.AssertNotCalled(t, "PersistBatch", mock.Anything, mock.Anything)
	h.sink.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestContinuationStep_SourceUnavailable(t *testing.T) {
	h := newHarness(3)
	h.fetcher.On("FetchSource", mock.Anything, mock.Anything).Return(port.Source{}, errors.New("object does not exist"))

	out, err := h.step.Execute(context.Background(), newJob(t, 0), plenty())

	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrSourceUnavailable))
	assert.Nil(t, out.Report)
	h.sink.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestContinuationStep_ZeroRows(t *testing.T) {
	h := newHarness(3)
	h.fetcher.On("FetchSource", mock.Anything, mock.Anything).Return(port.Source{Body: []byte("email,name\n")}, nil)
	h.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	out, err := h.step.Execute(context.Background(), newJob(t, 0), deadline.FixedSource(0))

	require.NoError(t, err)
	assert.Equal(t, item.StateDoneSuccess, out.State)
	assert.Equal(t, 0, out.Report.ImportedCount)
	assert.Equal(t, 0, out.Report.CorruptedEmailsCount)
	assert.Empty(t, out.Report.CorruptedEmails)
	h.writer.AssertNotCalled(t, "PersistBatch", mock.Anything, mock.Anything)
}

func TestContinuationStep_DispatchFailurePropagates(t *testing.T) {
	h := newHarness(3)
	h.fetcher.On("FetchSource", mock.Anything, mock.Anything).Return(port.Source{Body: csvOf(validEmails(30)...)}, nil)
	h.writer.On("PersistBatch", mock.Anything, withLen(25)).Return(fullyWritten(), nil).Once()
	h.redispatcher.On("Redispatch", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	out, err := h.step.Execute(context.Background(), newJob(t, 0), deadline.FixedSource(1000))

	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrDispatch))
	assert.Equal(t, item.StateCheckpointDispatch, out.State)
	assert.Nil(t, out.Report)
	h.sink.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestContinuationStep_PartialWritesAdvanceByConfirmedCount(t *testing.T) {
	h := newHarness(3)
	h.fetcher.On("FetchSource", mock.Anything, mock.Anything).Return(port.Source{Body: csvOf(validEmails(30)...)}, nil)
	var seen []int
	h.writer.On("PersistBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		seen = append(seen, len(args.Get(1).([]model.RecipientEntity)))
	}).Return(port.BatchWriteResult{Unwritten: make([]model.RecipientEntity, 3)}, nil).Once()
	h.writer.On("PersistBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		seen = append(seen, len(args.Get(1).([]model.RecipientEntity)))
	}).Return(fullyWritten(), nil)
	h.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	out, err := h.step.Execute(context.Background(), newJob(t, 0), plenty())

	require.NoError(t, err)
	assert.Equal(t, item.StateDoneSuccess, out.State)
	assert.Equal(t, []int{25, 8}, seen, "offset advanced by 22 after the partial chunk")
	assert.Equal(t, 30, out.Report.ImportedCount)
	for _, n := range seen {
		assert.LessOrEqual(t, n, model.MaxChunkSize)
	}
}

func TestContinuationStep_StallGuardFailsLineage(t *testing.T) {
	h := newHarness(2)
	h.fetcher.On("FetchSource", mock.Anything, mock.Anything).Return(port.Source{Body: csvOf(validEmails(5)...)}, nil)
	h.writer.On("PersistBatch", mock.Anything, withLen(5)).Return(port.BatchWriteResult{Unwritten: make([]model.RecipientEntity, 5)}, nil)
	h.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	out, err := h.step.Execute(context.Background(), newJob(t, 0), plenty())

	require.NoError(t, err)
	assert.Equal(t, item.StateDoneFailed, out.State)
	assert.Equal(t, 0, out.Report.ImportedCount)
	assert.Contains(t, out.Report.Message, "no progress")
	h.writer.AssertNumberOfCalls(t, "PersistBatch", 2)
}

func TestContinuationStep_ReportDeliveryFailure(t *testing.T) {
	h := newHarness(3)
	h.fetcher.On("FetchSource", mock.Anything, mock.Anything).Return(port.Source{Body: csvOf("a@b.com")}, nil)
	h.writer.On("PersistBatch", mock.Anything, withLen(1)).Return(fullyWritten(), nil)
	h.sink.On("Deliver", mock.Anything, mock.Anything).Return(errors.New("db down"))

	out, err := h.step.Execute(context.Background(), newJob(t, 0), plenty())

	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrReportDelivery))
	assert.Equal(t, item.StateDoneSuccess, out.State)
	require.NotNil(t, out.Report)
	assert.Equal(t, 1, out.Report.ImportedCount)
}

func TestContinuationStep_OffsetBeyondSourceIsClamped(t *testing.T) {
	h := newHarness(3)
	h.fetcher.On("FetchSource", mock.Anything, mock.Anything).Return(port.Source{Body: csvOf(validEmails(3)...)}, nil)
	h.sink.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	out, err := h.step.Execute(context.Background(), newJob(t, 10), plenty())

	require.NoError(t, err)
	assert.Equal(t, item.StateDoneSuccess, out.State)
	assert.Equal(t, 3, out.Report.ImportedCount)
	h.writer.AssertNotCalled(t, "PersistBatch", mock.Anything, mock.Anything)
}

func TestBatchPersister_PersistNext(t *testing.T) {
	w := new(mockWriter)
	entities := make([]model.RecipientEntity, 30)
	w.On("PersistBatch", mock.Anything, withLen(25)).Return(fullyWritten(), nil).Once()
	w.On("PersistBatch", mock.Anything, withLen(5)).Return(port.BatchWriteResult{Unwritten: entities[:2]}, nil).Once()

	p := item.NewBatchPersister(w, 100)
	assert.Equal(t, model.MaxChunkSize, p.ChunkSize())

	first, err := p.PersistNext(context.Background(), entities, 0)
	require.NoError(t, err)
	assert.Equal(t, port.ChunkOutcome{Offset: 0, Attempted: 25, Written: 25}, first)

	second, err := p.PersistNext(context.Background(), entities, 25)
	require.NoError(t, err)
	assert.Equal(t, port.ChunkOutcome{Offset: 25, Attempted: 5, Written: 3, Unwritten: 2}, second)

	done, err := p.PersistNext(context.Background(), entities, 30)
	require.NoError(t, err)
	assert.Zero(t, done.Attempted)
	w.AssertExpectations(t)
}

func TestBatchPersister_WrapsWriterError(t *testing.T) {
	w := new(mockWriter)
	w.On("PersistBatch", mock.Anything, mock.Anything).Return(port.BatchWriteResult{}, errors.New("boom"))

	_, err := item.NewBatchPersister(w, 25).PersistNext(context.Background(), make([]model.RecipientEntity, 3), 0)

	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrPersistence))
	assert.False(t, exception.IsRetryable(err))
}
