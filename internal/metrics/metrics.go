// Package metrics wires the gateway's OpenTelemetry meter and tracer
// providers and exposes the handful of instruments shared across C4,
// C5, and C7.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Provider bundles the meter and tracer the rest of the gateway pulls
// instruments from.
type Provider struct {
	Meter  metric.Meter
	Tracer oteltrace.Tracer

	UpstreamLatency      metric.Float64Histogram
	DispatchLatency      metric.Float64Histogram
	AuditQueueDepth      metric.Int64UpDownCounter
	AuditDroppedTotal    metric.Int64Counter
}

// New configures a Prometheus-exporting meter provider (the gateway
// itself mounts no /metrics handler) and an in-process tracer
// provider, then builds the shared instrument set.
func New() (*Provider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(meterProvider)

	tracerProvider := trace.NewTracerProvider()
	otel.SetTracerProvider(tracerProvider)

	meter := meterProvider.Meter("github.com/tunnelgate/gateway")
	tracer := tracerProvider.Tracer("github.com/tunnelgate/gateway")

	upstreamLatency, err := meter.Float64Histogram("gateway.upstream.latency",
		metric.WithDescription("latency of calls dispatched to an upstream MCP server"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	dispatchLatency, err := meter.Float64Histogram("gateway.router.dispatch_latency",
		metric.WithDescription("end-to-end tool dispatch latency by routing kind"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	auditQueueDepth, err := meter.Int64UpDownCounter("gateway.audit.queue_depth",
		metric.WithDescription("current depth of the audit pipeline's bounded queue"))
	if err != nil {
		return nil, err
	}
	auditDropped, err := meter.Int64Counter("gateway.audit.dropped_total",
		metric.WithDescription("audit events dropped because the queue was full"))
	if err != nil {
		return nil, err
	}

	return &Provider{
		Meter:             meter,
		Tracer:            tracer,
		UpstreamLatency:   upstreamLatency,
		DispatchLatency:   dispatchLatency,
		AuditQueueDepth:   auditQueueDepth,
		AuditDroppedTotal: auditDropped,
	}, nil
}

// Shutdown shuts down the globally registered tracer provider; the
// meter provider is left running.
func (p *Provider) Shutdown(ctx context.Context) error {
	if tp, ok := otel.GetTracerProvider().(*trace.TracerProvider); ok {
		return tp.Shutdown(ctx)
	}
	return nil
}
