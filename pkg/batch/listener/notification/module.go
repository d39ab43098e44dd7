// Package notification fans a terminal report out to the registered report sinks.
package notification

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
)

// NotifierParams collects the sinks contributed to the "report_sinks" group.
type NotifierParams struct {
	fx.In
	Sinks []port.ReportSink `group:"report_sinks"`
}

// NewReportNotifierFromParams builds the ReportNotifier the continuation step delivers to.
func NewReportNotifierFromParams(p NotifierParams) *ReportNotifier {
	return NewReportNotifier(p.Sinks...)
}

// Module provides the ReportNotifier as the single port.ReportSink.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewReportNotifierFromParams,
		fx.As(new(port.ReportSink)),
	)),
)
