package usecase

import (
	"context"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	item "github.com/tigerroll/recipient-import/pkg/batch/engine/step/item"
)

// ImportLauncher starts one execution of a lineage from a checkpoint.
type ImportLauncher interface {
	// Launch reconstructs the job for checkpoint and runs one execution of it.
	// An undecodable checkpoint is an exception.ErrInvalidCheckpoint error and runs nothing.
	Launch(ctx context.Context, checkpoint model.Checkpoint) (item.Outcome, error)
}

// ImportExplorer queries the results of finished lineages.
type ImportExplorer interface {
	// GetStatusReport returns the terminal report of a list or repository.ErrStatusReportNotFound.
	GetStatusReport(ctx context.Context, listID string) (*model.ImportStatusReport, error)

	// CountRecipients returns the number of recipients stored for a list.
	CountRecipients(ctx context.Context, listID string) (int64, error)
}

// StepExecutor runs one execution of a job. *item.ContinuationStep implements it.
type StepExecutor interface {
	Execute(ctx context.Context, job model.ImportJob, remaining port.RemainingTimeSource) (item.Outcome, error)
}
