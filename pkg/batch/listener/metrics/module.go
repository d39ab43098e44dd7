// Package metrics provides the execution listener that feeds the MetricRecorder,
// and the asynchronous decorator applied to the recorder.
package metrics

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
)

// Module contributes the metrics listener and wraps the MetricRecorder asynchronously.
var Module = fx.Options(
	fx.Decorate(NewAsyncMetricRecorderWrapper),
	fx.Provide(fx.Annotate(
		NewMetricsExecutionListener,
		fx.As(new(port.ExecutionListener)),
		fx.ResultTags(`group:"execution_listeners"`),
	)),
)
