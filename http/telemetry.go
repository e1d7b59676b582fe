package http

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/freekieb7/embedio/http"

var (
	meter  = otel.Meter(instrumentationName)
	logger = otelslog.NewLogger(instrumentationName)

	acceptedConnections metric.Int64Counter
	activeConnections   metric.Int64UpDownCounter
	parsedRequests      metric.Int64Counter
	badRequests         metric.Int64Counter
)

func init() {
	var err error
	acceptedConnections, err = meter.Int64Counter("http.server.connections.accepted",
		metric.WithDescription("The number of accepted TCP connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		panic(err)
	}

	activeConnections, err = meter.Int64UpDownCounter("http.server.connections.active",
		metric.WithDescription("The number of open connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		panic(err)
	}

	parsedRequests, err = meter.Int64Counter("http.server.requests.parsed",
		metric.WithDescription("The number of request heads parsed"),
		metric.WithUnit("{request}"))
	if err != nil {
		panic(err)
	}

	badRequests, err = meter.Int64Counter("http.server.requests.bad",
		metric.WithDescription("The number of malformed or oversized request heads"),
		metric.WithUnit("{request}"))
	if err != nil {
		panic(err)
	}
}
