// SPDX-License-Identifier: BSD-3-Clause

// Package telemetry installs the process-wide OpenTelemetry trace and
// metric providers that pkg/fsm's span-per-transition tracing and any
// otel/metric instrument look up through the global otel package.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Provider owns the SDK-backed TracerProvider and MeterProvider installed as
// process globals by Setup.
type Provider struct {
	traceProvider *sdktrace.TracerProvider
	meterProvider *sdkmetric.MeterProvider
}

// Setup builds a resource identifying this process as serviceName, installs
// an SDK TracerProvider and MeterProvider as the process-wide globals, and
// returns the Provider for an orderly Shutdown. No exporter is attached here:
// a deployment that wants spans/metrics to leave the process registers one
// via sdktrace.WithBatcher / sdkmetric.WithReader on top of this resource,
// which is an operational concern outside the core's scope.
func Setup(serviceName, serviceVersion string) (*Provider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return &Provider{traceProvider: tp, meterProvider: mp}, nil
}

// Meter returns a named meter from the installed MeterProvider, for
// components that record their own instruments (spec.md §9 tracing/metrics).
func (p *Provider) Meter(name string) metric.Meter {
	return p.meterProvider.Meter(name)
}

// Shutdown flushes and stops both providers. Call it once, during process
// shutdown, after every in-flight span/measurement has been recorded.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.traceProvider.Shutdown(ctx); err != nil {
		return err
	}
	return p.meterProvider.Shutdown(ctx)
}
