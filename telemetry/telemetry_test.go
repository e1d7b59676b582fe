package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/freekieb7/embedio/test"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestNewResourceCarriesServiceName(t *testing.T) {
	res, err := newResource("embedio-test")
	test.AssertNoError(t, err)

	value, ok := res.Set().Value(semconv.ServiceNameKey)
	test.AssertTrue(t, ok, "service.name should be set")
	test.AssertEqual(t, "embedio-test", value.AsString())
}

func TestSetupRegistersProviders(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://127.0.0.1:1")

	shutdown, err := Setup(context.Background(), "embedio-test")
	test.AssertNoError(t, err)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	test.AssertTrue(t, ok, "sdk tracer provider should be registered")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// nothing listens on the endpoint, so the first shutdown may report export failures
	shutdown(ctx)
	test.AssertNoError(t, shutdown(ctx))
}
