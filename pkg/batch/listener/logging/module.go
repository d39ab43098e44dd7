// Package logging provides an execution listener that logs every execution event.
package logging

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
)

// Module contributes the logging listener to the "execution_listeners" group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLoggingExecutionListener,
		fx.As(new(port.ExecutionListener)),
		fx.ResultTags(`group:"execution_listeners"`),
	)),
)
