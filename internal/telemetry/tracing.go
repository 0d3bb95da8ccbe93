package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporters accepted by OTEL_TRACES_EXPORTER.
const (
	ExporterOTLP    = "otlp"
	ExporterConsole = "console"
	ExporterNone    = "none"
)

// NewTracerProvider builds a tracer provider for serviceName.
// The OTLP exporter reads its endpoint and headers from the standard
// OTEL_EXPORTER_OTLP_* variables. Console spans are written to w as JSON.
// With ExporterNone spans still carry IDs for log correlation and propagation
// but are not exported.
func NewTracerProvider(ctx context.Context, serviceName, exporter string, w io.Writer) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	}

	switch exporter {
	case ExporterOTLP:
		exp, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	case ExporterConsole:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create console trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	case ExporterNone, "":
	default:
		return nil, fmt.Errorf("unsupported traces exporter %q", exporter)
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

// Setup installs a tracer provider and the W3C trace context and baggage
// propagators as the process-wide defaults. The returned function flushes
// pending spans and stops the provider.
func Setup(ctx context.Context, serviceName, exporter string, w io.Writer) (func(context.Context) error, error) {
	tp, err := NewTracerProvider(ctx, serviceName, exporter, w)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
