package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/recipient-import/pkg/batch/core/metrics"
	logger "github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

const namespace = "recipient_import"

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
// Labels are limited to bounded values; list and user ids never appear.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	executionsStarted *prometheus.CounterVec
	executionsEnded   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec

	recordsDecoded   prometheus.Counter
	recordsCorrupted prometheus.Counter

	chunks             prometheus.Counter
	recipientsWritten  prometheus.Counter
	recipientsRejected prometheus.Counter
	checkpoints        prometheus.Counter

	operationDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a PrometheusRecorder on a private registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		executionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_started_total",
			Help:      "Executions started, by whether they resumed from a checkpoint.",
		}, []string{"resumed"}),
		executionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Executions finished, by final controller state.",
		}, []string{"state"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock duration of executions, by final controller state.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 900},
		}, []string{"state"}),
		recordsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_decoded_total",
			Help:      "Normalized records decoded from source files.",
		}),
		recordsCorrupted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_corrupted_total",
			Help:      "Decoded records whose email failed validation.",
		}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Persistence calls that returned a result.",
		}),
		recipientsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recipients_written_total",
			Help:      "Recipients confirmed by the store.",
		}),
		recipientsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recipients_unwritten_total",
			Help:      "Recipients handed to the store but reported as not written.",
		}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Checkpoints dispatched for continuation.",
		}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of named operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registry.MustRegister(
		r.executionsStarted,
		r.executionsEnded,
		r.executionDuration,
		r.recordsDecoded,
		r.recordsCorrupted,
		r.chunks,
		r.recipientsWritten,
		r.recipientsRejected,
		r.checkpoints,
		r.operationDuration,
	)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *PrometheusRecorder) RecordExecutionStart(ctx context.Context, job model.ImportJob) {
	resumed := "false"
	if job.Offset > 0 {
		resumed = "true"
	}
	r.executionsStarted.WithLabelValues(resumed).Inc()
}

func (r *PrometheusRecorder) RecordExecutionEnd(ctx context.Context, job model.ImportJob, state string, duration time.Duration) {
	r.executionsEnded.WithLabelValues(state).Inc()
	r.executionDuration.WithLabelValues(state).Observe(duration.Seconds())
	logger.Debugf("Metrics: execution of list '%s' ended in %s after %.3fs.", job.ListID, state, duration.Seconds())
}

func (r *PrometheusRecorder) RecordRecordsDecoded(ctx context.Context, total int, corrupted int) {
	r.recordsDecoded.Add(float64(total))
	r.recordsCorrupted.Add(float64(corrupted))
}

func (r *PrometheusRecorder) RecordChunkWrite(ctx context.Context, written int, unwritten int) {
	r.chunks.Inc()
	r.recipientsWritten.Add(float64(written))
	r.recipientsRejected.Add(float64(unwritten))
}

func (r *PrometheusRecorder) RecordCheckpoint(ctx context.Context, offset int) {
	r.checkpoints.Inc()
}

// RecordDuration observes duration under the operation label. Tags are ignored to keep cardinality bounded.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDuration.WithLabelValues(name).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
