package remote_test

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/infrastructure/remote"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	args := m.Called(ctx, a)
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal(args.String(0))
	cmd.SetErr(args.Error(1))
	return cmd
}

func (m *mockClient) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	args := m.Called(ctx, a)
	cmd := redis.NewXStreamSliceCmd(ctx)
	if streams, ok := args.Get(0).([]redis.XStream); ok {
		cmd.SetVal(streams)
	}
	cmd.SetErr(args.Error(1))
	return cmd
}

func (m *mockClient) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	args := m.Called(ctx, stream, group, ids)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(ids)))
	cmd.SetErr(args.Error(0))
	return cmd
}

func (m *mockClient) XDel(ctx context.Context, stream string, ids ...string) *redis.IntCmd {
	args := m.Called(ctx, stream, ids)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetErr(args.Error(0))
	return cmd
}

func (m *mockClient) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	args := m.Called(ctx, stream, group, start)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetErr(args.Error(0))
	return cmd
}

func dispatchConfig() config.DispatchConfig {
	return config.DispatchConfig{
		Stream:           "imports",
		DeadLetterStream: "imports_dlq",
		Group:            "importers",
		Consumer:         "worker-1",
		BlockMs:          10,
		MaxAttempts:      2,
	}
}

var checkpoint = model.Checkpoint{SourceLocator: model.SourceLocator{Bucket: "b", Key: "u1/l1.csv"}, Offset: 50}

func streamOf(values map[string]interface{}) []redis.XStream {
	return []redis.XStream{{Stream: "imports", Messages: []redis.XMessage{{ID: "1-0", Values: values}}}}
}

func toStream(stream string) interface{} {
	return mock.MatchedBy(func(a *redis.XAddArgs) bool { return a.Stream == stream })
}

func TestStreamDispatcher_Redispatch(t *testing.T) {
	client := new(mockClient)
	client.On("XAdd", mock.Anything, mock.MatchedBy(func(a *redis.XAddArgs) bool {
		values := a.Values.(map[string]interface{})
		return a.Stream == "imports" &&
			values["checkpoint"] == `{"sourceLocator":{"bucket":"b","key":"u1/l1.csv"},"offset":50}` &&
			values["attempt"] == 0 &&
			values["dispatch_id"] != ""
	})).Return("1-0", nil)

	err := remote.NewStreamDispatcher(client, dispatchConfig()).Redispatch(context.Background(), checkpoint)

	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestStreamDispatcher_RedispatchFailureIsDispatchError(t *testing.T) {
	client := new(mockClient)
	client.On("XAdd", mock.Anything, mock.Anything).Return("", errors.New("connection refused"))

	err := remote.NewStreamDispatcher(client, dispatchConfig()).Redispatch(context.Background(), checkpoint)

	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrDispatch)
}

// consumeOnce runs Consume over a single message; the second read reports shutdown.
func consumeOnce(t *testing.T, client *mockClient, values map[string]interface{}, handler remote.CheckpointHandler) {
	t.Helper()
	client.On("XGroupCreateMkStream", mock.Anything, "imports", "importers", "0").
		Return(errors.New("BUSYGROUP Consumer Group name already exists"))
	client.On("XReadGroup", mock.Anything, mock.Anything).Return(streamOf(values), nil).Once()
	client.On("XReadGroup", mock.Anything, mock.Anything).Return(nil, context.Canceled)
	client.On("XAck", mock.Anything, "imports", "importers", []string{"1-0"}).Return(nil)
	client.On("XDel", mock.Anything, "imports", []string{"1-0"}).Return(nil)

	err := remote.NewStreamConsumer(client, dispatchConfig()).Consume(context.Background(), handler)
	assert.ErrorIs(t, err, context.Canceled)
	client.AssertCalled(t, "XAck", mock.Anything, "imports", "importers", []string{"1-0"})
}

func TestStreamConsumer_HandlesCheckpoint(t *testing.T) {
	client := new(mockClient)
	var got []model.Checkpoint

	consumeOnce(t, client, map[string]interface{}{
		"checkpoint": `{"sourceLocator":{"bucket":"b","key":"u1/l1.csv"},"offset":50}`,
		"attempt":    "0",
	}, func(ctx context.Context, cp model.Checkpoint) error {
		got = append(got, cp)
		return nil
	})

	assert.Equal(t, []model.Checkpoint{checkpoint}, got)
	client.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
}

func TestStreamConsumer_DeadLettersUndecodablePayload(t *testing.T) {
	client := new(mockClient)
	client.On("XAdd", mock.Anything, toStream("imports_dlq")).Return("9-0", nil)
	called := false

	consumeOnce(t, client, map[string]interface{}{"checkpoint": "not json"}, func(ctx context.Context, cp model.Checkpoint) error {
		called = true
		return nil
	})

	assert.False(t, called)
	client.AssertCalled(t, "XAdd", mock.Anything, toStream("imports_dlq"))
}

func TestStreamConsumer_RequeuesRetryableFailure(t *testing.T) {
	client := new(mockClient)
	client.On("XAdd", mock.Anything, mock.MatchedBy(func(a *redis.XAddArgs) bool {
		return a.Stream == "imports" && a.Values.(map[string]interface{})["attempt"] == 1
	})).Return("2-0", nil)

	consumeOnce(t, client, map[string]interface{}{
		"checkpoint": `{"sourceLocator":{"bucket":"b","key":"u1/l1.csv"},"offset":50}`,
		"attempt":    "0",
	}, func(ctx context.Context, cp model.Checkpoint) error {
		return exception.NewDispatchError("step", "stream down", nil)
	})

	client.AssertNotCalled(t, "XAdd", mock.Anything, toStream("imports_dlq"))
}

func TestStreamConsumer_DeadLettersAfterMaxAttempts(t *testing.T) {
	client := new(mockClient)
	client.On("XAdd", mock.Anything, toStream("imports_dlq")).Return("9-0", nil)

	consumeOnce(t, client, map[string]interface{}{
		"checkpoint": `{"sourceLocator":{"bucket":"b","key":"u1/l1.csv"},"offset":50}`,
		"attempt":    "1",
	}, func(ctx context.Context, cp model.Checkpoint) error {
		return exception.NewDispatchError("dispatcher", "stream down", nil)
	})

	client.AssertCalled(t, "XAdd", mock.Anything, toStream("imports_dlq"))
	client.AssertNotCalled(t, "XAdd", mock.Anything, toStream("imports"))
}

func TestStreamConsumer_DoesNotRequeueEndedOrMissingLineage(t *testing.T) {
	failures := map[string]error{
		"report delivery":    exception.NewReportDeliveryError("continuation", "status store down", errors.New("timeout")),
		"source unavailable": exception.NewSourceUnavailableError("fetcher", "gone", nil),
		"wrapped retryable report delivery": exception.NewReportDeliveryError("continuation", "sink failed",
			exception.NewBatchError("writer", "upload failed", errors.New("503"), false, true)),
	}
	for name, failure := range failures {
		t.Run(name, func(t *testing.T) {
			client := new(mockClient)
			client.On("XAdd", mock.Anything, toStream("imports_dlq")).Return("9-0", nil)

			consumeOnce(t, client, map[string]interface{}{
				"checkpoint": `{"sourceLocator":{"bucket":"b","key":"u1/l1.csv"},"offset":50}`,
				"attempt":    "0",
			}, func(ctx context.Context, cp model.Checkpoint) error {
				return failure
			})

			client.AssertCalled(t, "XAdd", mock.Anything, toStream("imports_dlq"))
			client.AssertNotCalled(t, "XAdd", mock.Anything, toStream("imports"))
		})
	}
}

func TestStreamConsumer_DeadLettersNonRetryableFailure(t *testing.T) {
	client := new(mockClient)
	client.On("XAdd", mock.Anything, toStream("imports_dlq")).Return("9-0", nil)

	consumeOnce(t, client, map[string]interface{}{
		"checkpoint": `{"sourceLocator":{"bucket":"b","key":"u1/l1.txt"},"offset":0}`,
	}, func(ctx context.Context, cp model.Checkpoint) error {
		return exception.NewUnsupportedFormatError("reader", "bad csv", nil)
	})

	client.AssertCalled(t, "XAdd", mock.Anything, toStream("imports_dlq"))
}
