package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"
)

// Service names reported on exported spans
const (
	ServiceAPI    = "drivenova-api"
	ServiceWorker = "drivenova-worker"
)

// ShutdownFunc flushes and stops tracing
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// NewTracerProvider builds an OTLP/HTTP tracer provider and installs it as the
// global provider together with W3C trace-context propagation.
func NewTracerProvider(ctx context.Context, serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("service name is required")
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}

// Setup enables tracing when requested. A failure to start the exporter is
// logged and tracing stays off; the returned ShutdownFunc is never nil.
func Setup(ctx context.Context, enabled bool, serviceName, endpoint string, logger *zap.Logger) ShutdownFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !enabled {
		return noopShutdown
	}

	tp, err := NewTracerProvider(ctx, serviceName, endpoint)
	if err != nil {
		logger.Warn("tracing_disabled", zap.String("service", serviceName), zap.Error(err))
		return noopShutdown
	}

	logger.Info("tracing_enabled",
		zap.String("service", serviceName),
		zap.String("endpoint", endpoint),
	)
	return tp.Shutdown
}
