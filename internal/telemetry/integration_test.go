package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Spans for API routes join the caller's trace when a traceparent is sent
func TestRouteSpansJoinIncomingTrace(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := mux.NewRouter()
	r.Use(otelmux.Middleware(ServiceAPI))
	r.HandleFunc("/api/cars/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	const incomingTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name        string
		traceParent string
	}{
		{"new trace", ""},
		{"continued trace", "00-" + incomingTraceID + "-00f067aa0ba902b7-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			req := httptest.NewRequest(http.MethodGet, "/api/cars/3f1c2a9e-1111-4c4c-9a9a-000000000001", nil)
			if tt.traceParent != "" {
				req.Header.Set("traceparent", tt.traceParent)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if err := tp.ForceFlush(context.Background()); err != nil {
				t.Fatalf("Failed to flush tracer provider: %v", err)
			}

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("Expected 1 span, got %d", len(spans))
			}
			span := spans[0]
			if span.Name != "/api/cars/{id}" {
				t.Errorf("Expected span named after the route template, got %q", span.Name)
			}
			traceID := span.SpanContext.TraceID()
			if !traceID.IsValid() {
				t.Fatal("Expected valid trace ID")
			}
			if tt.traceParent != "" && traceID.String() != incomingTraceID {
				t.Errorf("Expected trace ID %s, got %s", incomingTraceID, traceID)
			}
		})
	}
}
