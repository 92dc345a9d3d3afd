package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Dev-Manje/helpdesk/internal/config"
)

// SetupMetrics installs the global meter provider selected by cfg and
// returns the service meter plus a shutdown func that flushes exporters.
func SetupMetrics(cfg config.MetricsConfig) (metric.Meter, func(context.Context) error, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "", "none":
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider.Meter(meterName), func(context.Context) error { return nil }, nil
	case "stdout":
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, fmt.Errorf("stdout metric exporter: %w", err)
		}
		interval := time.Duration(cfg.IntervalSeconds) * time.Second
		if interval <= 0 {
			interval = 30 * time.Second
		}
		provider := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
		)
		otel.SetMeterProvider(provider)
		return provider.Meter(meterName), provider.Shutdown, nil
	default:
		return nil, nil, fmt.Errorf("unknown METRICS_EXPORTER %q", cfg.Exporter)
	}
}
