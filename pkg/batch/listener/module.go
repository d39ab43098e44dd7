package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/recipient-import/pkg/batch/listener/logging"
	"github.com/tigerroll/recipient-import/pkg/batch/listener/metrics"
	"github.com/tigerroll/recipient-import/pkg/batch/listener/notification"
	"github.com/tigerroll/recipient-import/pkg/batch/listener/tracing"
)

// Module wires the execution listeners and the report notifier.
var Module = fx.Options(
	logging.Module,
	metrics.Module,
	tracing.Module,
	notification.Module,
)
