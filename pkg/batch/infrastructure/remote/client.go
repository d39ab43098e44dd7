// Package remote carries checkpoints between executions over a Redis Stream: the dispatcher appends
// a checkpoint, and workers consume the stream through a consumer group.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
)

const (
	fieldDispatchID   = "dispatch_id"
	fieldCheckpoint   = "checkpoint"
	fieldAttempt      = "attempt"
	fieldDispatchedAt = "dispatched_at"
	fieldError        = "error"
	fieldStreamID     = "stream_id"
)

// StreamClient is the subset of *redis.Client used by the dispatcher and the consumer.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XDel(ctx context.Context, stream string, ids ...string) *redis.IntCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
}

// NewRedisClient creates the client for the dispatch stream.
func NewRedisClient(cfg config.DispatchConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// ensureGroup creates the consumer group (and the stream) unless it already exists.
func ensureGroup(ctx context.Context, client StreamClient, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err == nil || strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("ensure stream group: %w", err)
}

func stringField(values map[string]interface{}, key string) (string, error) {
	value, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
