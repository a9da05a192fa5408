package otel

import (
	"time"

	hostmetrics "go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
)

// StartRuntimeMetrics starts Go runtime (memory, GC) and host (CPU,
// network) metrics on the configured meter provider
func StartRuntimeMetrics() error {
	if err := runtime.Start(
		runtime.WithMeterProvider(GetMeterProvider()),
		runtime.WithMinimumReadMemStatsInterval(time.Second*30),
	); err != nil {
		return err
	}

	return hostmetrics.Start(hostmetrics.WithMeterProvider(GetMeterProvider()))
}
