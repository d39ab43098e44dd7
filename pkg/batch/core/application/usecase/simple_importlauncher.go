package usecase

import (
	"context"
	"time"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/recipient-import/pkg/batch/core/metrics"
	deadline "github.com/tigerroll/recipient-import/pkg/batch/engine/step/deadline"
	item "github.com/tigerroll/recipient-import/pkg/batch/engine/step/item"
	exception "github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// StateError labels executions that returned an error in metrics.
const StateError = "ERROR"

// SimpleImportLauncher runs executions in the calling goroutine.
type SimpleImportLauncher struct {
	step     StepExecutor
	formats  item.FormatChecker
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
	budget   time.Duration
	now      func() time.Time
}

// NewSimpleImportLauncher creates a launcher. The execution budget applies only when ctx carries no deadline.
func NewSimpleImportLauncher(
	step StepExecutor,
	formats item.FormatChecker,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
	cfg config.ImportConfig,
) *SimpleImportLauncher {
	return &SimpleImportLauncher{
		step:     step,
		formats:  formats,
		recorder: recorder,
		tracer:   tracer,
		budget:   time.Duration(cfg.ExecutionBudgetMs) * time.Millisecond,
		now:      time.Now,
	}
}

// Launch implements ImportLauncher.
func (l *SimpleImportLauncher) Launch(ctx context.Context, checkpoint model.Checkpoint) (item.Outcome, error) {
	const op = "launcher"

	if err := checkpoint.Validate(); err != nil {
		return item.Outcome{}, exception.NewInvalidCheckpointError(op, "checkpoint cannot start an execution", err)
	}
	// The declared format is checked before the key is parsed for its identity, so an unsupported
	// upload is reported as such whatever its key looks like.
	if _, err := l.formats.CheckFormat(checkpoint.SourceLocator); err != nil {
		return item.Outcome{State: item.StateFetching, Offset: checkpoint.Offset}, err
	}
	job, err := model.NewImportJob(checkpoint)
	if err != nil {
		return item.Outcome{}, exception.NewSourceUnavailableError(op, "source key does not identify a list", err)
	}

	startedAt := l.now()
	ctx, endSpan := l.tracer.StartExecutionSpan(ctx, job)
	defer endSpan()

	logger.Infof("Launching import of list '%s' (user '%s') from %s at offset %d.", job.ListID, job.UserID, job.Source.String(), job.Offset)
	l.recorder.RecordExecutionStart(ctx, job)

	outcome, err := l.step.Execute(ctx, job, l.remainingTime(ctx, startedAt))

	elapsed := l.now().Sub(startedAt)
	state := string(outcome.State)
	if err != nil {
		state = StateError
		l.tracer.RecordError(ctx, op, err)
		logger.Errorf("Import of list '%s' ended in %s after %s: %v", job.ListID, outcome.State, elapsed, err)
	} else {
		logger.Infof("Import of list '%s' ended in %s after %s (offset %d).", job.ListID, outcome.State, elapsed, outcome.Offset)
	}
	l.recorder.RecordExecutionEnd(ctx, job, state, elapsed)
	return outcome, err
}

// remainingTime reads the context deadline when there is one and counts down the budget otherwise.
func (l *SimpleImportLauncher) remainingTime(ctx context.Context, startedAt time.Time) port.RemainingTimeSource {
	if _, ok := ctx.Deadline(); ok {
		return deadline.NewContextSource(ctx)
	}
	return deadline.NewBudgetSource(startedAt, l.budget, l.now)
}

var _ ImportLauncher = (*SimpleImportLauncher)(nil)
