package logging

import (
	"context"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// LoggingExecutionListener writes one log line per execution event.
type LoggingExecutionListener struct{}

func NewLoggingExecutionListener() *LoggingExecutionListener {
	return &LoggingExecutionListener{}
}

func (l *LoggingExecutionListener) BeforeExecution(ctx context.Context, job model.ImportJob, total int, valid int) {
	logger.Infof("ExecutionListener: BeforeExecution - List: %s, User: %s, Source: %s, Offset: %d, Records: %d, Valid: %d",
		job.ListID, job.UserID, job.Source.String(), job.Offset, total, valid)
}

func (l *LoggingExecutionListener) AfterChunk(ctx context.Context, job model.ImportJob, outcome port.ChunkOutcome) {
	logger.Debugf("ExecutionListener: AfterChunk - List: %s, Offset: %d, Attempted: %d, Written: %d, Unwritten: %d",
		job.ListID, outcome.Offset, outcome.Attempted, outcome.Written, outcome.Unwritten)
	if outcome.Unwritten > 0 {
		logger.Warnf("ExecutionListener: List %s: %d of %d recipients at offset %d were not written and will be retried.",
			job.ListID, outcome.Unwritten, outcome.Attempted, outcome.Offset)
	}
}

func (l *LoggingExecutionListener) OnCheckpoint(ctx context.Context, job model.ImportJob, checkpoint model.Checkpoint) {
	logger.Infof("ExecutionListener: OnCheckpoint - List: %s, Source: %s, Offset: %d",
		job.ListID, checkpoint.SourceLocator.String(), checkpoint.Offset)
}

func (l *LoggingExecutionListener) AfterExecution(ctx context.Context, job model.ImportJob, report model.ImportStatusReport) {
	if report.Succeeded() {
		logger.Infof("ExecutionListener: AfterExecution - List: %s, Status: %s, Imported: %d/%d, Corrupted: %d",
			report.ListID, report.ImportStatus, report.ImportedCount, report.TotalRecipientsCount, report.CorruptedEmailsCount)
		return
	}
	logger.Errorf("ExecutionListener: AfterExecution - List: %s, Status: %s, Imported: %d/%d, Message: %s",
		report.ListID, report.ImportStatus, report.ImportedCount, report.TotalRecipientsCount, report.Message)
}

var _ port.ExecutionListener = (*LoggingExecutionListener)(nil)
