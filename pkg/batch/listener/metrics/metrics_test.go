package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	listenermetrics "github.com/tigerroll/recipient-import/pkg/batch/listener/metrics"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordExecutionStart(ctx context.Context, job model.ImportJob) {
	m.Called(job.ListID)
}

func (m *mockRecorder) RecordExecutionEnd(ctx context.Context, job model.ImportJob, state string, duration time.Duration) {
	m.Called(job.ListID, state, duration)
}

func (m *mockRecorder) RecordRecordsDecoded(ctx context.Context, total int, corrupted int) {
	m.Called(total, corrupted)
}

func (m *mockRecorder) RecordChunkWrite(ctx context.Context, written int, unwritten int) {
	m.Called(written, unwritten)
}

func (m *mockRecorder) RecordCheckpoint(ctx context.Context, offset int) {
	m.Called(offset)
}

func (m *mockRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	m.Called(name, duration)
}

var job = model.ImportJob{UserID: "user-1", ListID: "list-1", Source: model.SourceLocator{Key: "user-1/list-1.csv"}}

func TestMetricsExecutionListener_ForwardsEvents(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("RecordRecordsDecoded", 10, 2).Once()
	rec.On("RecordChunkWrite", 7, 1).Once()
	rec.On("RecordCheckpoint", 7).Once()

	l := listenermetrics.NewMetricsExecutionListener(rec)
	ctx := context.Background()
	l.BeforeExecution(ctx, job, 10, 8)
	l.AfterChunk(ctx, job, port.ChunkOutcome{Offset: 0, Attempted: 8, Written: 7, Unwritten: 1})
	l.OnCheckpoint(ctx, job, job.Checkpoint(7))
	l.AfterExecution(ctx, job, model.ImportStatusReport{ListID: "list-1"})

	rec.AssertExpectations(t)
}

func TestAsyncMetricRecorder_DrainsOnClose(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("RecordExecutionStart", "list-1").Once()
	rec.On("RecordChunkWrite", 25, 0).Times(3)
	rec.On("RecordCheckpoint", 75).Once()
	rec.On("RecordExecutionEnd", "list-1", "CHECKPOINT_DISPATCH", 2*time.Second).Once()
	rec.On("RecordDuration", "fetch", time.Second).Once()

	async := listenermetrics.NewAsyncMetricRecorder(16, rec)
	ctx := context.Background()
	async.RecordExecutionStart(ctx, job)
	for i := 0; i < 3; i++ {
		async.RecordChunkWrite(ctx, 25, 0)
	}
	async.RecordCheckpoint(ctx, 75)
	async.RecordExecutionEnd(ctx, job, "CHECKPOINT_DISPATCH", 2*time.Second)
	async.RecordDuration(ctx, "fetch", time.Second, nil)
	async.Close()
	async.Close()

	rec.AssertExpectations(t)
}
