package metrics

import (
	"context"

	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
)

// Tracer abstracts distributed tracing for import executions.
type Tracer interface {
	// StartExecutionSpan starts a span covering one execution. The returned function ends it.
	StartExecutionSpan(ctx context.Context, job model.ImportJob) (context.Context, func())

	// RecordError records an error on the current span.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records a named event with attributes on the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
