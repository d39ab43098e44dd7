package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
)

// Span represents a single unit of work in distributed tracing.
type Span interface {
	End()
}

// MetricRecorder records metrics about import executions.
// Implementations must not attach per-list labels: list ids are unbounded.
type MetricRecorder interface {
	// RecordExecutionStart records that an execution of a lineage has started.
	RecordExecutionStart(ctx context.Context, job model.ImportJob)

	// RecordExecutionEnd records the state an execution ended in and how long it ran.
	//
	// state: the final controller state (e.g. "DONE_SUCCESS", "CHECKPOINT_DISPATCH").
	RecordExecutionEnd(ctx context.Context, job model.ImportJob, state string, duration time.Duration)

	// RecordRecordsDecoded records the normalized record count and how many failed validation.
	RecordRecordsDecoded(ctx context.Context, total int, corrupted int)

	// RecordChunkWrite records the outcome of one persistence call.
	RecordChunkWrite(ctx context.Context, written int, unwritten int)

	// RecordCheckpoint records a dispatched checkpoint.
	RecordCheckpoint(ctx context.Context, offset int)

	// RecordDuration records an arbitrary named duration.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
