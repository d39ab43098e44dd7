package tracing

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
)

// Module contributes the tracing listener to the "execution_listeners" group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewTracingExecutionListener,
		fx.As(new(port.ExecutionListener)),
		fx.ResultTags(`group:"execution_listeners"`),
	)),
)
