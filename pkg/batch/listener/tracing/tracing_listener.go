package tracing

import (
	"context"
	"errors"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/core/metrics"
)

// TracingExecutionListener adds execution events to the span the launcher started on ctx.
type TracingExecutionListener struct {
	tracer metrics.Tracer
}

func NewTracingExecutionListener(tracer metrics.Tracer) *TracingExecutionListener {
	return &TracingExecutionListener{tracer: tracer}
}

func (l *TracingExecutionListener) BeforeExecution(ctx context.Context, job model.ImportJob, total int, valid int) {
	l.tracer.RecordEvent(ctx, "source.decoded", map[string]interface{}{
		"records.total":     total,
		"records.valid":     valid,
		"records.corrupted": total - valid,
	})
}

func (l *TracingExecutionListener) AfterChunk(ctx context.Context, job model.ImportJob, outcome port.ChunkOutcome) {
	l.tracer.RecordEvent(ctx, "chunk.persisted", map[string]interface{}{
		"chunk.offset":    outcome.Offset,
		"chunk.attempted": outcome.Attempted,
		"chunk.written":   outcome.Written,
		"chunk.unwritten": outcome.Unwritten,
	})
}

func (l *TracingExecutionListener) OnCheckpoint(ctx context.Context, job model.ImportJob, checkpoint model.Checkpoint) {
	l.tracer.RecordEvent(ctx, "checkpoint.dispatched", map[string]interface{}{
		"checkpoint.offset": checkpoint.Offset,
	})
}

func (l *TracingExecutionListener) AfterExecution(ctx context.Context, job model.ImportJob, report model.ImportStatusReport) {
	l.tracer.RecordEvent(ctx, "report.built", map[string]interface{}{
		"report.status":    string(report.ImportStatus),
		"report.imported":  report.ImportedCount,
		"report.corrupted": report.CorruptedEmailsCount,
	})
	if !report.Succeeded() {
		l.tracer.RecordError(ctx, "continuation", errors.New(report.Message))
	}
}

var _ port.ExecutionListener = (*TracingExecutionListener)(nil)
