package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

const consumerModule = "consumer"

// CheckpointHandler runs one execution for a consumed checkpoint.
type CheckpointHandler func(ctx context.Context, checkpoint model.Checkpoint) error

// StreamConsumer reads checkpoints from the dispatch stream through a consumer group.
// Every message is acknowledged and deleted once handled. Undecodable payloads and checkpoints
// that keep failing are moved to the dead-letter stream; retryable failures are re-appended.
type StreamConsumer struct {
	client      StreamClient
	dispatcher  *StreamDispatcher
	stream      string
	dlqStream   string
	group       string
	consumer    string
	block       time.Duration
	maxAttempts int
}

// NewStreamConsumer creates a consumer for cfg.Stream.
func NewStreamConsumer(client StreamClient, cfg config.DispatchConfig) *StreamConsumer {
	block := time.Duration(cfg.BlockMs) * time.Millisecond
	if block <= 0 {
		block = 5 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &StreamConsumer{
		client:      client,
		dispatcher:  NewStreamDispatcher(client, cfg),
		stream:      cfg.Stream,
		dlqStream:   cfg.DeadLetterStream,
		group:       cfg.Group,
		consumer:    cfg.Consumer,
		block:       block,
		maxAttempts: maxAttempts,
	}
}

// Consume handles messages one at a time until ctx is done, and then returns ctx.Err().
func (c *StreamConsumer) Consume(ctx context.Context, handler CheckpointHandler) error {
	if err := ensureGroup(ctx, c.client, c.stream, c.group); err != nil {
		return err
	}
	logger.Infof("StreamConsumer: consuming stream '%s' as %s/%s.", c.stream, c.group, c.consumer)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, ">"},
			Count:    1,
			Block:    c.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if isShutdown(err) {
				return err
			}
			return fmt.Errorf("xreadgroup: %w", err)
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				c.handle(ctx, msg, handler)
			}
		}
	}
}

func (c *StreamConsumer) handle(ctx context.Context, msg redis.XMessage, handler CheckpointHandler) {
	checkpoint, attempt, err := decodeMessage(msg)
	if err != nil {
		logger.Errorf("StreamConsumer: message %s is not a checkpoint: %v", msg.ID, err)
		c.deadLetter(ctx, msg, err)
		c.ackAndDelete(ctx, msg.ID)
		return
	}

	handleErr := handler(ctx, checkpoint)
	switch {
	case handleErr == nil:
	case errors.Is(handleErr, exception.ErrReportDelivery):
		// The lineage already reached a terminal state; running it again would build a second report.
		logger.Errorf("StreamConsumer: checkpoint %s finished but its report was not delivered: %v", msg.ID, handleErr)
		c.deadLetter(ctx, msg, handleErr)
	case !exception.IsRetryable(handleErr):
		logger.Errorf("StreamConsumer: checkpoint %s failed and is not retryable: %v", msg.ID, handleErr)
		c.deadLetter(ctx, msg, handleErr)
	case attempt+1 >= c.maxAttempts:
		logger.Errorf("StreamConsumer: checkpoint %s failed %d times, giving up: %v", msg.ID, attempt+1, handleErr)
		c.deadLetter(ctx, msg, handleErr)
	default:
		logger.Warnf("StreamConsumer: checkpoint %s failed (attempt %d), re-dispatching: %v", msg.ID, attempt+1, handleErr)
		if err := c.dispatcher.dispatch(ctx, checkpoint, attempt+1); err != nil {
			c.deadLetter(ctx, msg, fmt.Errorf("requeue failed: %w", err))
		}
	}
	c.ackAndDelete(ctx, msg.ID)
}

func decodeMessage(msg redis.XMessage) (model.Checkpoint, int, error) {
	payload, err := stringField(msg.Values, fieldCheckpoint)
	if err != nil {
		return model.Checkpoint{}, 0, exception.NewInvalidCheckpointError(consumerModule, "message has no checkpoint", err)
	}
	checkpoint, err := model.UnmarshalCheckpoint([]byte(payload))
	if err != nil {
		return model.Checkpoint{}, 0, exception.NewInvalidCheckpointError(consumerModule, "checkpoint payload is invalid", err)
	}
	attempt := 0
	if raw, err := stringField(msg.Values, fieldAttempt); err == nil {
		if n, convErr := strconv.Atoi(raw); convErr == nil && n > 0 {
			attempt = n
		}
	}
	return checkpoint, attempt, nil
}

func (c *StreamConsumer) deadLetter(ctx context.Context, msg redis.XMessage, cause error) {
	if c.dlqStream == "" {
		return
	}
	values := make(map[string]interface{}, len(msg.Values)+2)
	for k, v := range msg.Values {
		values[k] = v
	}
	values[fieldStreamID] = msg.ID
	values[fieldError] = exception.ExtractErrorMessage(cause)
	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.dlqStream, Values: values}).Err(); err != nil {
		logger.Errorf("StreamConsumer: failed to dead-letter message %s: %v", msg.ID, err)
	}
}

func (c *StreamConsumer) ackAndDelete(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		logger.Errorf("StreamConsumer: xack %s: %v", id, err)
		return
	}
	if err := c.client.XDel(ctx, c.stream, id).Err(); err != nil {
		logger.Warnf("StreamConsumer: xdel %s: %v", id, err)
	}
}
