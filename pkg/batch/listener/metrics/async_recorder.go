package metrics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"

	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	"github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	"github.com/tigerroll/recipient-import/pkg/batch/core/metrics"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

const defaultAsyncBufferSize = 100

// MetricEvent is a recorder call queued for the worker goroutine.
type MetricEvent struct {
	Type      string
	Job       model.ImportJob
	State     string
	Count     int
	Secondary int
	Name      string
	Duration  time.Duration
	Tags      map[string]string
}

const (
	MetricEventTypeExecutionStart = "execution_start"
	MetricEventTypeExecutionEnd   = "execution_end"
	MetricEventTypeRecordsDecoded = "records_decoded"
	MetricEventTypeChunkWrite     = "chunk_write"
	MetricEventTypeCheckpoint     = "checkpoint"
	MetricEventTypeDuration       = "duration"
)

// AsyncMetricRecorder queues recorder calls and applies them on a separate goroutine,
// so a slow backend never holds up a chunk. Events are dropped when the queue is full.
type AsyncMetricRecorder struct {
	eventQueue   chan MetricEvent
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	syncRecorder metrics.MetricRecorder
}

// NewAsyncMetricRecorder starts the worker. A bufferSize of 0 or less uses the default.
func NewAsyncMetricRecorder(bufferSize int, syncRec metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = defaultAsyncBufferSize
	}
	r := &AsyncMetricRecorder{
		eventQueue:   make(chan MetricEvent, bufferSize),
		stopCh:       make(chan struct{}),
		syncRecorder: syncRec,
	}
	r.wg.Add(1)
	go r.run()
	logger.Debugf("AsyncMetricRecorder: Worker goroutine started (buffer size: %d).", bufferSize)
	return r
}

func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.eventQueue:
			r.processEvent(event)
		case <-r.stopCh:
			remaining := len(r.eventQueue)
			for i := 0; i < remaining; i++ {
				r.processEvent(<-r.eventQueue)
			}
			logger.Debugf("AsyncMetricRecorder: Worker goroutine stopped. Processed %d remaining events.", remaining)
			return
		}
	}
}

// processEvent applies one event. The caller's context is gone by now, so a background context is used.
func (r *AsyncMetricRecorder) processEvent(event MetricEvent) {
	ctx := context.Background()
	switch event.Type {
	case MetricEventTypeExecutionStart:
		r.syncRecorder.RecordExecutionStart(ctx, event.Job)
	case MetricEventTypeExecutionEnd:
		r.syncRecorder.RecordExecutionEnd(ctx, event.Job, event.State, event.Duration)
	case MetricEventTypeRecordsDecoded:
		r.syncRecorder.RecordRecordsDecoded(ctx, event.Count, event.Secondary)
	case MetricEventTypeChunkWrite:
		r.syncRecorder.RecordChunkWrite(ctx, event.Count, event.Secondary)
	case MetricEventTypeCheckpoint:
		r.syncRecorder.RecordCheckpoint(ctx, event.Count)
	case MetricEventTypeDuration:
		r.syncRecorder.RecordDuration(ctx, event.Name, event.Duration, event.Tags)
	default:
		logger.Warnf("AsyncMetricRecorder: Unknown metric event type: %s", event.Type)
	}
}

// Close stops the worker after draining the queue. It is safe to call more than once.
func (r *AsyncMetricRecorder) Close() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
		logger.Debugf("AsyncMetricRecorder: Shutdown complete.")
	})
}

func (r *AsyncMetricRecorder) sendEvent(event MetricEvent) {
	select {
	case r.eventQueue <- event:
	default:
		logger.Warnf("AsyncMetricRecorder: Event queue is full (type: %s). Event discarded.", event.Type)
	}
}

func (r *AsyncMetricRecorder) RecordExecutionStart(ctx context.Context, job model.ImportJob) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeExecutionStart, Job: job})
}

func (r *AsyncMetricRecorder) RecordExecutionEnd(ctx context.Context, job model.ImportJob, state string, duration time.Duration) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeExecutionEnd, Job: job, State: state, Duration: duration})
}

func (r *AsyncMetricRecorder) RecordRecordsDecoded(ctx context.Context, total int, corrupted int) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeRecordsDecoded, Count: total, Secondary: corrupted})
}

func (r *AsyncMetricRecorder) RecordChunkWrite(ctx context.Context, written int, unwritten int) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeChunkWrite, Count: written, Secondary: unwritten})
}

func (r *AsyncMetricRecorder) RecordCheckpoint(ctx context.Context, offset int) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeCheckpoint, Count: offset})
}

func (r *AsyncMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeDuration, Name: name, Duration: duration, Tags: tags})
}

var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)

// NewAsyncMetricRecorderWrapper is used with fx.Decorate. The wrapper is drained on shutdown.
func NewAsyncMetricRecorderWrapper(lc fx.Lifecycle, cfg *config.Config, syncRecorder metrics.MetricRecorder) metrics.MetricRecorder {
	asyncRecorder := NewAsyncMetricRecorder(cfg.Importer.Metrics.AsyncBufferSize, syncRecorder)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			asyncRecorder.Close()
			return nil
		},
	})
	logger.Debugf("MetricRecorder decorated with asynchronous wrapper.")
	return asyncRecorder
}
