package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/formflow/formflow/internal/config"
)

// installTestTracer swaps in an in-memory exporter and restores the previous
// global provider when the test ends.
func installTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestInitTracing_disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{Enabled: false}, "formflow", "test")
	if err != nil {
		t.Fatalf("InitTracing() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInitTracing_unknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), config.TracingConfig{
		Enabled:  true,
		Exporter: "carrier-pigeon",
	}, "formflow", "test")
	if err == nil {
		t.Fatal("unknown exporter should return error")
	}
}

func TestStartSpan_and_TraceID(t *testing.T) {
	installTestTracer(t)

	ctx, span := StartSpan(context.Background(), "ticket.resolve", AttrRequestID.String("abc"))
	defer span.End()

	if TraceIDFromContext(ctx) == "" {
		t.Error("trace ID should be present inside a span")
	}
	if TraceIDFromContext(context.Background()) != "" {
		t.Error("trace ID should be empty without a span")
	}
}

func TestEndSpanWithError(t *testing.T) {
	exporter := installTestTracer(t)

	_, span := StartSpan(context.Background(), "op")
	EndSpanWithError(span, errors.New("boom"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported spans = %d, want 1", len(spans))
	}
	if len(spans[0].Events) == 0 {
		t.Error("error span should record an exception event")
	}
}

func TestTracingMiddleware_setsStatusOnError(t *testing.T) {
	exporter := installTestTracer(t)

	handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	handler.ServeHTTP(rec, req)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "GET /x" {
		t.Errorf("span name = %q, want GET /x", spans[0].Name)
	}
}

func TestTracingMiddleware_propagatesContext(t *testing.T) {
	installTestTracer(t)

	var sawTrace bool
	handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawTrace = TraceIDFromContext(r.Context()) != ""
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	handler.ServeHTTP(rec, req)

	if !sawTrace {
		t.Error("handler should see a trace ID in the request context")
	}
}
