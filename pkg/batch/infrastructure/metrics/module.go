// Package metrics provides the Prometheus and OpenTelemetry implementations of the core metric and tracing interfaces.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"

	config "github.com/tigerroll/recipient-import/pkg/batch/core/config"
	metrics "github.com/tigerroll/recipient-import/pkg/batch/core/metrics"
	logger "github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

const moduleName = "metrics"

// RecorderParams holds the dependencies of NewMetricRecorder.
type RecorderParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
}

// NewMetricRecorder selects the recorder named by metrics.backend.
// The Prometheus backend serves its registry on metrics.listen_addr while the application runs.
func NewMetricRecorder(p RecorderParams) (metrics.MetricRecorder, error) {
	cfg := p.Config.Importer.Metrics
	switch cfg.Backend {
	case config.BackendPrometheus:
		r := NewPrometheusRecorder()
		if cfg.ListenAddr != "" {
			registerMetricsServer(p.Lifecycle, cfg.ListenAddr, r.Handler())
		}
		logger.Infof("Metrics: Prometheus recorder selected.")
		return r, nil
	case config.BackendOTLP:
		mp, err := NewOTLPMeterProvider(context.Background(), cfg, newResource(p.Config))
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(ctx context.Context) error { return mp.Shutdown(ctx) },
		})
		logger.Infof("Metrics: OTLP recorder selected (protocol %s).", cfg.OTLPProtocol)
		return NewOTelMetricRecorder(mp.Meter(InstrumentationName))
	default:
		logger.Infof("Metrics: metric recording disabled.")
		return metrics.NewNoOpMetricRecorder(), nil
	}
}

// NewTracer selects the tracer named by tracing.exporter.
func NewTracer(p RecorderParams) (metrics.Tracer, error) {
	cfg := p.Config.Importer.Tracing
	if cfg.Exporter == config.ExporterNoop || cfg.Exporter == "" {
		return metrics.NewNoOpTracer(), nil
	}
	tp, err := NewOTLPTracerProvider(context.Background(), cfg, newResource(p.Config))
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error { return tp.Shutdown(ctx) },
	})
	logger.Infof("Tracer: %s exporter selected.", cfg.Exporter)
	return NewOpenTelemetryTracer(tp.Tracer(InstrumentationName)), nil
}

func newResource(cfg *config.Config) *resource.Resource {
	return resource.NewSchemaless(attribute.String("service.name", cfg.Importer.Tracing.ServiceName))
}

func registerMetricsServer(lc fx.Lifecycle, addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Metrics: endpoint on %s stopped: %v", addr, err)
				}
			}()
			logger.Infof("Metrics: serving /metrics on %s.", addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// Module provides the MetricRecorder and Tracer selected by configuration.
var Module = fx.Options(
	fx.Provide(NewMetricRecorder),
	fx.Provide(NewTracer),
)
