package web

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/freekieb7/embedio/web"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)
	logger = otelslog.NewLogger(instrumentationName)

	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
)

func init() {
	var err error
	requestCount, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("The number of requests served by status class"),
		metric.WithUnit("{request}"))
	if err != nil {
		panic(err)
	}

	requestDuration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("The time spent in the module pipeline"),
		metric.WithUnit("s"))
	if err != nil {
		panic(err)
	}
}
