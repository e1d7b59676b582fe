package filecache

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/freekieb7/embedio/filecache"

var (
	meter  = otel.Meter(instrumentationName)
	logger = otelslog.NewLogger(instrumentationName)

	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	cacheEvictions metric.Int64Counter
)

func init() {
	var err error
	cacheHits, err = meter.Int64Counter("filecache.hits",
		metric.WithDescription("The number of lookups answered from the cache"))
	if err != nil {
		panic(err)
	}

	cacheMisses, err = meter.Int64Counter("filecache.misses",
		metric.WithDescription("The number of lookups not found in the cache"))
	if err != nil {
		panic(err)
	}

	cacheEvictions, err = meter.Int64Counter("filecache.evictions",
		metric.WithDescription("The number of items evicted to respect a size budget"))
	if err != nil {
		panic(err)
	}
}
