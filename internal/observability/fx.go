package observability

import (
	"github.com/kassenwart/kassenwart/internal/config"
	"github.com/kassenwart/kassenwart/internal/observability/metrics"
	"go.uber.org/fx"
)

func newMetricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.Metrics.Enabled,
		ExporterEndpoint: cfg.Metrics.Endpoint,
		ExporterProtocol: cfg.Metrics.Exporter,
		ServiceName:      cfg.AppName,
	}
}

var Module = fx.Module("observability",
	fx.Provide(
		newMetricsConfig,
		metrics.NewProvider,
		metrics.New,
	),
)
