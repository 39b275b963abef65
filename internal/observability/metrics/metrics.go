package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	reconcileRuns  metric.Int64Counter
	duesPosted     metric.Int64Counter
	duesReversed   metric.Int64Counter
	strayReversals metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "kassenwart"
	}
	meter := provider.Meter(name)

	reconcileRuns, err := meter.Int64Counter("kassenwart_reconcile_runs_total")
	if err != nil {
		return nil, err
	}
	duesPosted, err := meter.Int64Counter("kassenwart_dues_posted_total")
	if err != nil {
		return nil, err
	}
	duesReversed, err := meter.Int64Counter("kassenwart_dues_reversed_total")
	if err != nil {
		return nil, err
	}
	strayReversals, err := meter.Int64Counter("kassenwart_stray_reversals_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		reconcileRuns:  reconcileRuns,
		duesPosted:     duesPosted,
		duesReversed:   duesReversed,
		strayReversals: strayReversals,
	}, nil
}

// RecordReconcileRun increments the run counter with an outcome label.
func (m *Metrics) RecordReconcileRun(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.reconcileRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	))
}

// RecordDuesPosted counts newly created due postings.
func (m *Metrics) RecordDuesPosted(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.duesPosted.Add(ctx, int64(n))
}

// RecordDuesReversed counts reversals of mismatched due postings.
func (m *Metrics) RecordDuesReversed(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.duesReversed.Add(ctx, int64(n))
}

// RecordStrayReversals counts reversals of postings outside every
// membership window.
func (m *Metrics) RecordStrayReversals(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.strayReversals.Add(ctx, int64(n))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported metrics exporter protocol %q", protocol)
	}
}
