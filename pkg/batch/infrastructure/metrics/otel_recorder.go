package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	model "github.com/tigerroll/recipient-import/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/recipient-import/pkg/batch/core/metrics"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
)

// InstrumentationName is the meter and tracer scope of the importer.
const InstrumentationName = "github.com/tigerroll/recipient-import"

// OTelMetricRecorder pushes the same instruments as PrometheusRecorder through an OpenTelemetry meter.
type OTelMetricRecorder struct {
	executionsStarted  otelmetric.Int64Counter
	executionsEnded    otelmetric.Int64Counter
	executionDuration  otelmetric.Float64Histogram
	recordsDecoded     otelmetric.Int64Counter
	recordsCorrupted   otelmetric.Int64Counter
	chunks             otelmetric.Int64Counter
	recipientsWritten  otelmetric.Int64Counter
	recipientsRejected otelmetric.Int64Counter
	checkpoints        otelmetric.Int64Counter
	operationDuration  otelmetric.Float64Histogram
}

// NewOTelMetricRecorder creates the instruments on meter.
func NewOTelMetricRecorder(meter otelmetric.Meter) (*OTelMetricRecorder, error) {
	r := &OTelMetricRecorder{}
	var err error
	counters := []struct {
		dst  *otelmetric.Int64Counter
		name string
		desc string
	}{
		{&r.executionsStarted, "recipient_import.executions.started", "Executions started."},
		{&r.executionsEnded, "recipient_import.executions", "Executions finished, by final controller state."},
		{&r.recordsDecoded, "recipient_import.records.decoded", "Normalized records decoded from source files."},
		{&r.recordsCorrupted, "recipient_import.records.corrupted", "Decoded records whose email failed validation."},
		{&r.chunks, "recipient_import.chunks", "Persistence calls that returned a result."},
		{&r.recipientsWritten, "recipient_import.recipients.written", "Recipients confirmed by the store."},
		{&r.recipientsRejected, "recipient_import.recipients.unwritten", "Recipients reported as not written."},
		{&r.checkpoints, "recipient_import.checkpoints", "Checkpoints dispatched for continuation."},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, otelmetric.WithDescription(c.desc)); err != nil {
			return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to create counter %s", c.name), err, false, false)
		}
	}
	if r.executionDuration, err = meter.Float64Histogram("recipient_import.execution.duration",
		otelmetric.WithDescription("Wall-clock duration of executions."), otelmetric.WithUnit("s")); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to create execution duration histogram", err, false, false)
	}
	if r.operationDuration, err = meter.Float64Histogram("recipient_import.operation.duration",
		otelmetric.WithDescription("Duration of named operations."), otelmetric.WithUnit("s")); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to create operation duration histogram", err, false, false)
	}
	return r, nil
}

func (r *OTelMetricRecorder) RecordExecutionStart(ctx context.Context, job model.ImportJob) {
	r.executionsStarted.Add(ctx, 1, otelmetric.WithAttributes(attribute.Bool("resumed", job.Offset > 0)))
}

func (r *OTelMetricRecorder) RecordExecutionEnd(ctx context.Context, job model.ImportJob, state string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(attribute.String("state", state))
	r.executionsEnded.Add(ctx, 1, attrs)
	r.executionDuration.Record(ctx, duration.Seconds(), attrs)
}

func (r *OTelMetricRecorder) RecordRecordsDecoded(ctx context.Context, total int, corrupted int) {
	r.recordsDecoded.Add(ctx, int64(total))
	r.recordsCorrupted.Add(ctx, int64(corrupted))
}

func (r *OTelMetricRecorder) RecordChunkWrite(ctx context.Context, written int, unwritten int) {
	r.chunks.Add(ctx, 1)
	r.recipientsWritten.Add(ctx, int64(written))
	r.recipientsRejected.Add(ctx, int64(unwritten))
}

func (r *OTelMetricRecorder) RecordCheckpoint(ctx context.Context, offset int) {
	r.checkpoints.Add(ctx, 1)
}

func (r *OTelMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDuration.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(attribute.String("operation", name)))
}

// NewOTLPMeterProvider creates a MeterProvider exporting periodically to the configured collector.
func NewOTLPMeterProvider(ctx context.Context, cfg config.MetricsConfig, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	var (
		exporter sdkmetric.Exporter
		err      error
	)
	switch cfg.OTLPProtocol {
	case "http":
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	case "grpc", "":
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, exception.NewBatchErrorf(moduleName, "metrics.otlp_protocol %q is not supported", cfg.OTLPProtocol)
	}
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to create OTLP metric exporter", err, false, false)
	}

	interval := time.Duration(cfg.ExportIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	), nil
}

var _ metrics.MetricRecorder = (*OTelMetricRecorder)(nil)
