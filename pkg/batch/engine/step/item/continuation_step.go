package item

import (
	"context"
	"errors"
	"fmt"
	"time"

	component "github.com/tigerroll/recipient-import/pkg/batch/component/item"
	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/engine/step/deadline"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// State is a state of the continuation state machine.
type State string

const (
	StateFetching           State = "FETCHING"
	StatePersisting         State = "PERSISTING"
	StateContinueLocal      State = "CONTINUE_LOCAL"
	StateCheckpointDispatch State = "CHECKPOINT_DISPATCH"
	StateDoneSuccess        State = "DONE_SUCCESS"
	StateDoneFailed         State = "DONE_FAILED"
)

// Terminal reports whether the state ends the lineage.
func (s State) Terminal() bool {
	return s == StateDoneSuccess || s == StateDoneFailed
}

// StepConfig holds the explicit settings of a ContinuationStep.
type StepConfig struct {
	ChunkSize            int
	ExecutionThresholdMs int64
	// StallLimit is the number of consecutive zero-progress chunks tolerated. 0 disables the guard.
	StallLimit int
}

// NewStepConfig derives a StepConfig from the import configuration.
func NewStepConfig(cfg config.ImportConfig) StepConfig {
	return StepConfig{
		ChunkSize:            cfg.ChunkSize,
		ExecutionThresholdMs: cfg.ExecutionThresholdMs,
		StallLimit:           cfg.EffectiveStallLimit(),
	}
}

// FormatChecker resolves the decoder for a source before it is fetched.
type FormatChecker interface {
	CheckFormat(locator model.SourceLocator) (port.RecordDecoder, error)
}

// Normalizer turns a decoded record into a candidate entity.
type Normalizer interface {
	Normalize(job model.ImportJob, raw map[string]string, createdAt time.Time) model.RecipientEntity
}

// Filter folds candidates into a valid/corrupted partition.
type Filter interface {
	Apply(acc component.FilterResult, candidate model.RecipientEntity) component.FilterResult
}

// Outcome is the result of one execution.
type Outcome struct {
	State State
	// Checkpoint is set when the execution handed the rest of the lineage off.
	Checkpoint *model.Checkpoint
	// Report is set when the lineage reached a terminal state.
	Report *model.ImportStatusReport
	// Cause is the persistence error that ended the lineage in StateDoneFailed.
	Cause error
	// Offset is the lineage offset when the execution stopped.
	Offset int
}

// ContinuationStep runs one execution of an import lineage.
type ContinuationStep struct {
	cfg          StepConfig
	formats      FormatChecker
	fetcher      port.SourceFetcher
	normalizer   Normalizer
	filter       Filter
	persister    *BatchPersister
	redispatcher port.Redispatcher
	sink         port.ReportSink
	listeners    []port.ExecutionListener
	now          func() time.Time
}

// NewContinuationStep creates a ContinuationStep.
func NewContinuationStep(
	cfg StepConfig,
	formats FormatChecker,
	fetcher port.SourceFetcher,
	normalizer Normalizer,
	filter Filter,
	writer port.BatchWriter,
	redispatcher port.Redispatcher,
	sink port.ReportSink,
	listeners ...port.ExecutionListener,
) *ContinuationStep {
	return &ContinuationStep{
		cfg:          cfg,
		formats:      formats,
		fetcher:      fetcher,
		normalizer:   normalizer,
		filter:       filter,
		persister:    NewBatchPersister(writer, cfg.ChunkSize),
		redispatcher: redispatcher,
		sink:         sink,
		listeners:    listeners,
		now:          time.Now,
	}
}

// WithClock replaces the clock used for createdAt and updatedAt.
func (s *ContinuationStep) WithClock(now func() time.Time) *ContinuationStep {
	s.now = now
	return s
}

// Execute runs one execution of job until it finishes the lineage or runs short of time.
//
// Errors:
//   - ErrUnsupportedFormat / ErrSourceUnavailable: raised while fetching, no report is built.
//   - ErrDispatch: the checkpoint could not be handed off, no report is built.
//   - ErrReportDelivery: a terminal report was built (and is returned) but the sink rejected it.
//
// A persistence failure is not returned as an error: it ends the lineage in StateDoneFailed with a FAILED report.
func (s *ContinuationStep) Execute(ctx context.Context, job model.ImportJob, remaining port.RemainingTimeSource) (Outcome, error) {
	startedAt := s.now()
	tracker := deadline.NewTracker(remaining, s.cfg.ExecutionThresholdMs)

	logger.Debugf("ContinuationStep: list '%s' -> %s (offset %d).", job.ListID, StateFetching, job.Offset)
	job, partition, err := s.fetch(ctx, job, startedAt)
	if err != nil {
		logger.Warnf("ContinuationStep: list '%s' rejected while fetching: %v", job.ListID, err)
		return Outcome{State: StateFetching, Offset: job.Offset}, err
	}

	valid := partition.Valid
	offset := job.Offset
	if offset > len(valid) {
		logger.Warnf("ContinuationStep: list '%s' offset %d exceeds %d valid recipients; the source changed between executions.", job.ListID, offset, len(valid))
		offset = len(valid)
	}
	for _, l := range s.listeners {
		l.BeforeExecution(ctx, job, partition.Total, len(valid))
	}

	logger.Debugf("ContinuationStep: list '%s' -> %s (%d valid, %d corrupted).", job.ListID, StatePersisting, len(valid), partition.CorruptedCount())
	stalled := 0
	for offset < len(valid) {
		chunk, err := s.persister.PersistNext(ctx, valid, offset)
		if err != nil {
			logger.Errorf("ContinuationStep: list '%s' chunk at offset %d failed: %v", job.ListID, offset, err)
			return s.finish(ctx, job, partition, offset, err)
		}
		offset += chunk.Written
		for _, l := range s.listeners {
			l.AfterChunk(ctx, job, chunk)
		}

		if chunk.Written == 0 {
			stalled++
			if s.cfg.StallLimit > 0 && stalled >= s.cfg.StallLimit {
				stallErr := exception.NewPersistenceError("persister",
					fmt.Sprintf("no progress after %d consecutive chunks at offset %d", stalled, offset), nil)
				logger.Errorf("ContinuationStep: list '%s' stalled: %v", job.ListID, stallErr)
				return s.finish(ctx, job, partition, offset, stallErr)
			}
		} else {
			stalled = 0
		}

		if offset >= len(valid) {
			break
		}
		if !tracker.HasTimeFor("chunk") {
			return s.checkpoint(ctx, job, offset, tracker.RemainingTimeMs())
		}
		logger.Debugf("ContinuationStep: list '%s' -> %s (offset %d/%d).", job.ListID, StateContinueLocal, offset, len(valid))
	}

	return s.finish(ctx, job, partition, offset, nil)
}

// fetch runs the FETCHING state: format check, fetch, decode, normalize and filter.
func (s *ContinuationStep) fetch(ctx context.Context, job model.ImportJob, createdAt time.Time) (model.ImportJob, component.FilterResult, error) {
	var acc component.FilterResult

	decoder, err := s.formats.CheckFormat(job.Source)
	if err != nil {
		return job, acc, asClassified(err, exception.ErrUnsupportedFormat, exception.NewUnsupportedFormatError, "declared format check failed")
	}

	src, err := s.fetcher.FetchSource(ctx, job.Source)
	if err != nil {
		return job, acc, asClassified(err, exception.ErrSourceUnavailable, exception.NewSourceUnavailableError, fmt.Sprintf("failed to fetch %s", job.Source.String()))
	}
	job.ColumnMapping = src.ColumnMapping
	if job.ColumnMapping == nil {
		job.ColumnMapping = map[string]string{}
	}

	stream, err := decoder.Decode(src.Body)
	if err != nil {
		return job, acc, asClassified(err, exception.ErrUnsupportedFormat, exception.NewUnsupportedFormatError, "failed to decode source")
	}

	acc.Valid = []model.RecipientEntity{}
	acc.CorruptedEmails = []string{}
	for {
		raw, err := stream.Next()
		if errors.Is(err, port.ErrNoMoreRecords) {
			break
		}
		if err != nil {
			return job, acc, asClassified(err, exception.ErrUnsupportedFormat, exception.NewUnsupportedFormatError, "failed to decode source")
		}
		acc = s.filter.Apply(acc, s.normalizer.Normalize(job, raw, createdAt))
	}
	return job, acc, nil
}

func (s *ContinuationStep) checkpoint(ctx context.Context, job model.ImportJob, offset int, remainingMs int64) (Outcome, error) {
	cp := job.Checkpoint(offset)
	logger.Infof("ContinuationStep: list '%s' -> %s at offset %d (%d ms left).", job.ListID, StateCheckpointDispatch, offset, remainingMs)

	out := Outcome{State: StateCheckpointDispatch, Checkpoint: &cp, Offset: offset}
	if err := s.redispatcher.Redispatch(ctx, cp); err != nil {
		return out, asClassified(err, exception.ErrDispatch, exception.NewDispatchError, fmt.Sprintf("failed to re-dispatch list '%s' at offset %d", job.ListID, offset))
	}
	for _, l := range s.listeners {
		l.OnCheckpoint(ctx, job, cp)
	}
	return out, nil
}

func (s *ContinuationStep) finish(ctx context.Context, job model.ImportJob, partition component.FilterResult, offset int, cause error) (Outcome, error) {
	report := model.ImportStatusReport{
		ListID:               job.ListID,
		UserID:               job.UserID,
		TotalRecipientsCount: partition.Total,
		ImportedCount:        offset,
		CorruptedEmailsCount: partition.CorruptedCount(),
		CorruptedEmails:      append([]string{}, partition.CorruptedEmails...),
		ImportStatus:         model.ImportStatusSuccess,
		UpdatedAt:            s.now(),
	}
	state := StateDoneSuccess
	if cause != nil {
		state = StateDoneFailed
		report.ImportStatus = model.ImportStatusFailed
		report.Message = exception.ExtractErrorMessage(cause)
		report.Trace = exception.ExtractStackTrace(cause)
	}
	logger.Infof("ContinuationStep: list '%s' -> %s (imported %d of %d, %d corrupted).",
		job.ListID, state, report.ImportedCount, report.TotalRecipientsCount, report.CorruptedEmailsCount)

	for _, l := range s.listeners {
		l.AfterExecution(ctx, job, report)
	}

	out := Outcome{State: state, Report: &report, Cause: cause, Offset: offset}
	if err := s.sink.Deliver(ctx, report); err != nil {
		return out, asClassified(err, exception.ErrReportDelivery, exception.NewReportDeliveryError, fmt.Sprintf("failed to deliver report of list '%s'", job.ListID))
	}
	return out, nil
}

type classifier func(module, message string, cause error) *exception.BatchError

// asClassified keeps errors that already carry sentinel and wraps the rest.
func asClassified(err error, sentinel error, wrap classifier, message string) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return wrap("continuation", message, err)
}
