package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder is a MetricRecorder that does nothing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordExecutionStart(ctx context.Context, job model.ImportJob) {}
func (r *NoOpMetricRecorder) RecordExecutionEnd(ctx context.Context, job model.ImportJob, state string, duration time.Duration) {
}
func (r *NoOpMetricRecorder) RecordRecordsDecoded(ctx context.Context, total int, corrupted int) {}
func (r *NoOpMetricRecorder) RecordChunkWrite(ctx context.Context, written int, unwritten int)   {}
func (r *NoOpMetricRecorder) RecordCheckpoint(ctx context.Context, offset int)                  {}
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

// NoOpTracer is a Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartExecutionSpan(ctx context.Context, job model.ImportJob) (context.Context, func()) {
	return ctx, func() {}
}
func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var (
	_ MetricRecorder = (*NoOpMetricRecorder)(nil)
	_ Tracer         = (*NoOpTracer)(nil)
)
