package notification

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// ReportNotifier delivers a terminal report to every registered sink.
// Every sink is attempted; the failures are returned together.
type ReportNotifier struct {
	sinks []port.ReportSink
}

// NewReportNotifier creates a ReportNotifier over sinks.
func NewReportNotifier(sinks ...port.ReportSink) *ReportNotifier {
	logger.Infof("Notification: Initializing report notifier with %d sink(s).", len(sinks))
	return &ReportNotifier{sinks: sinks}
}

// Deliver implements port.ReportSink.
func (n *ReportNotifier) Deliver(ctx context.Context, report model.ImportStatusReport) error {
	message := fmt.Sprintf(
		"Report Notification: list '%s' of user '%s' finished with status %s. Imported: %d/%d, Corrupted: %d",
		report.ListID,
		report.UserID,
		report.ImportStatus,
		report.ImportedCount,
		report.TotalRecipientsCount,
		report.CorruptedEmailsCount,
	)
	if report.Succeeded() {
		logger.Infof("%s", message)
	} else {
		logger.Warnf("%s", message)
	}

	var result *multierror.Error
	for i, sink := range n.sinks {
		if err := sink.Deliver(ctx, report); err != nil {
			logger.Errorf("Notification: sink %d (%T) rejected the report of list '%s': %v", i, sink, report.ListID, err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

var _ port.ReportSink = (*ReportNotifier)(nil)
