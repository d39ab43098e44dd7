package metrics

import (
	"context"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/core/metrics"
)

// MetricsExecutionListener forwards execution events to a MetricRecorder.
// Execution start and end are recorded by the launcher, which knows the final state and duration.
type MetricsExecutionListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsExecutionListener(recorder metrics.MetricRecorder) *MetricsExecutionListener {
	return &MetricsExecutionListener{recorder: recorder}
}

func (l *MetricsExecutionListener) BeforeExecution(ctx context.Context, job model.ImportJob, total int, valid int) {
	l.recorder.RecordRecordsDecoded(ctx, total, total-valid)
}

func (l *MetricsExecutionListener) AfterChunk(ctx context.Context, job model.ImportJob, outcome port.ChunkOutcome) {
	l.recorder.RecordChunkWrite(ctx, outcome.Written, outcome.Unwritten)
}

func (l *MetricsExecutionListener) OnCheckpoint(ctx context.Context, job model.ImportJob, checkpoint model.Checkpoint) {
	l.recorder.RecordCheckpoint(ctx, checkpoint.Offset)
}

func (l *MetricsExecutionListener) AfterExecution(ctx context.Context, job model.ImportJob, report model.ImportStatusReport) {
}

var _ port.ExecutionListener = (*MetricsExecutionListener)(nil)
