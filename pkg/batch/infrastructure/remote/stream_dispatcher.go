package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

const dispatcherModule = "dispatcher"

// StreamDispatcher implements port.Redispatcher by appending the checkpoint to the dispatch stream.
type StreamDispatcher struct {
	client StreamClient
	stream string
	now    func() time.Time
}

// NewStreamDispatcher creates a dispatcher writing to cfg.Stream.
func NewStreamDispatcher(client StreamClient, cfg config.DispatchConfig) *StreamDispatcher {
	return &StreamDispatcher{client: client, stream: cfg.Stream, now: time.Now}
}

// Redispatch implements port.Redispatcher.
func (d *StreamDispatcher) Redispatch(ctx context.Context, checkpoint model.Checkpoint) error {
	return d.dispatch(ctx, checkpoint, 0)
}

func (d *StreamDispatcher) dispatch(ctx context.Context, checkpoint model.Checkpoint, attempt int) error {
	payload, err := model.MarshalCheckpoint(checkpoint)
	if err != nil {
		return exception.NewDispatchError(dispatcherModule, "failed to encode checkpoint", err)
	}
	dispatchID := uuid.NewString()
	id, err := d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		Values: map[string]interface{}{
			fieldDispatchID:   dispatchID,
			fieldCheckpoint:   string(payload),
			fieldAttempt:      attempt,
			fieldDispatchedAt: d.now().UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return exception.NewDispatchError(dispatcherModule,
			fmt.Sprintf("failed to dispatch checkpoint of %s at offset %d to stream '%s'", checkpoint.SourceLocator.String(), checkpoint.Offset, d.stream), err)
	}
	logger.Debugf("StreamDispatcher: dispatched %s (offset %d) as %s (dispatch %s).", checkpoint.SourceLocator.String(), checkpoint.Offset, id, dispatchID)
	return nil
}

var _ port.Redispatcher = (*StreamDispatcher)(nil)
