package observability

import (
	"github.com/smallbiznis/givebox/internal/observability/logger"
	"github.com/smallbiznis/givebox/internal/observability/metrics"
	"github.com/smallbiznis/givebox/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the zap logger, the OpenTelemetry tracer and meter
// providers, domain counters and the Prometheus HTTP collectors.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.loggerConfig,
		Config.tracingConfig,
		Config.metricsConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// Nothing else depends on the tracer provider; force its construction so
	// the global propagator is installed.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
