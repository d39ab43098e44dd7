package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/fx"

	usecase "github.com/tigerroll/recipient-import/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/infrastructure/remote"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// CheckpointFromEnv builds the first checkpoint of a lineage from IMPORT_SOURCE_BUCKET, IMPORT_SOURCE_KEY
// and IMPORT_OFFSET. The key may also be given as gs://bucket/key.
func CheckpointFromEnv() (model.Checkpoint, error) {
	locator, err := model.ParseSourceLocator(os.Getenv("IMPORT_SOURCE_KEY"))
	if err != nil {
		return model.Checkpoint{}, exception.NewInvalidCheckpointError("app", "IMPORT_SOURCE_KEY is invalid", err)
	}
	if bucket := os.Getenv("IMPORT_SOURCE_BUCKET"); bucket != "" {
		locator.Bucket = bucket
	}

	offset := 0
	if raw := os.Getenv("IMPORT_OFFSET"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil {
			return model.Checkpoint{}, exception.NewInvalidCheckpointError("app", fmt.Sprintf("IMPORT_OFFSET %q is not a number", raw), err)
		}
	}

	cp := model.Checkpoint{SourceLocator: locator, Offset: offset}
	if err := cp.Validate(); err != nil {
		return model.Checkpoint{}, exception.NewInvalidCheckpointError("app", "checkpoint from environment is invalid", err)
	}
	return cp, nil
}

// HandleCheckpoint returns the stream handler running one execution per message under the execution budget.
func HandleCheckpoint(launcher usecase.ImportLauncher, budget time.Duration) remote.CheckpointHandler {
	return func(ctx context.Context, cp model.Checkpoint) error {
		execCtx, cancel := context.WithTimeout(ctx, budget)
		defer cancel()
		_, err := launcher.Launch(execCtx, cp)
		return err
	}
}

// startWorker consumes the dispatch stream until the application stops.
func startWorker(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	consumer *remote.StreamConsumer,
	launcher usecase.ImportLauncher,
	cfg *config.Config,
	appCtx context.Context,
) {
	ctx, cancel := context.WithCancel(appCtx)
	done := make(chan struct{})
	budget := time.Duration(cfg.Importer.Import.ExecutionBudgetMs) * time.Millisecond

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				err := consumer.Consume(ctx, HandleCheckpoint(launcher, budget))
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Errorf("Worker stopped: %v", err)
					if shutdownErr := shutdowner.Shutdown(fx.ExitCode(1)); shutdownErr != nil {
						logger.Errorf("Failed to shutdown application: %v", shutdownErr)
					}
					return
				}
				logger.Infof("Worker stopped.")
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

// startSingleRun executes one checkpoint taken from the environment and shuts the application down.
func startSingleRun(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	launcher usecase.ImportLauncher,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				exitCode := 0
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("Panic recovered in import execution: %v", r)
						exitCode = 1
					}
					logger.Infof("Requesting application shutdown after execution.")
					if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()

				cp, err := CheckpointFromEnv()
				if err != nil {
					logger.Errorf("Cannot start import: %v", err)
					exitCode = 1
					return
				}
				outcome, err := launcher.Launch(appCtx, cp)
				if err != nil {
					logger.Errorf("Import failed in %s: %v", outcome.State, err)
					exitCode = 1
					return
				}
				if outcome.Report != nil && !outcome.Report.Succeeded() {
					exitCode = 1
				}
			}()
			return nil
		},
	})
}

// startStatusQuery prints the stored report of IMPORT_LIST_ID as JSON and shuts the application down.
func startStatusQuery(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	explorer usecase.ImportExplorer,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				exitCode := 0
				defer func() {
					if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()

				listID := os.Getenv("IMPORT_LIST_ID")
				report, err := explorer.GetStatusReport(appCtx, listID)
				if err != nil {
					logger.Errorf("No status for list '%s': %v", listID, err)
					exitCode = 1
					return
				}
				stored, err := explorer.CountRecipients(appCtx, listID)
				if err != nil {
					logger.Warnf("Could not count recipients of list '%s': %v", listID, err)
				}
				out := struct {
					*model.ImportStatusReport
					StoredRecipients int64 `json:"storedRecipients"`
				}{report, stored}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					logger.Errorf("Failed to print status: %v", err)
					exitCode = 1
				}
			}()
			return nil
		},
	})
}
