package filecache

import (
	"context"
	"testing"
	"time"

	"github.com/freekieb7/embedio/test"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// counterValue sums the data points of an Int64 counter for one section.
func counterValue(rm metricdata.ResourceMetrics, name, section string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("section"); ok && v.AsString() == section {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestCacheMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		provider.Shutdown(context.Background())
	})

	cache := New()
	cache.Add("metrics", "/a", []byte("aaaa"), time.Now())
	cache.Add("metrics", "/b", []byte("bbbb"), time.Now())

	cache.Get("metrics", "/a")
	cache.Get("metrics", "/a")
	cache.Get("metrics", "/missing")
	cache.Trim(0)

	var rm metricdata.ResourceMetrics
	test.AssertNoError(t, reader.Collect(context.Background(), &rm))

	test.AssertEqual(t, int64(2), counterValue(rm, "filecache.hits", "metrics"))
	test.AssertEqual(t, int64(1), counterValue(rm, "filecache.misses", "metrics"))
	test.AssertEqual(t, int64(2), counterValue(rm, "filecache.evictions", "metrics"))
}
