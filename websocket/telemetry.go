package websocket

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/freekieb7/embedio/websocket"

var (
	meter  = otel.Meter(instrumentationName)
	logger = otelslog.NewLogger(instrumentationName)

	framesReceived    metric.Int64Counter
	framesSent        metric.Int64Counter
	activeConnections metric.Int64UpDownCounter
)

func init() {
	var err error
	framesReceived, err = meter.Int64Counter("websocket.frames.received",
		metric.WithDescription("The number of frames read from clients"),
		metric.WithUnit("{frame}"))
	if err != nil {
		panic(err)
	}

	framesSent, err = meter.Int64Counter("websocket.frames.sent",
		metric.WithDescription("The number of frames written to clients"),
		metric.WithUnit("{frame}"))
	if err != nil {
		panic(err)
	}

	activeConnections, err = meter.Int64UpDownCounter("websocket.connections.active",
		metric.WithDescription("The number of open websocket connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		panic(err)
	}
}
