// Package testutil provides the shared harness for workloadops tests: an
// in-process Redis server, a telemetry pipeline that records in memory and a
// logger whose JSON output can be inspected.
//
//	func TestCache(t *testing.T) {
//	    srv := testutil.Redis(t)
//	    tel := testutil.NewTelemetry(t)
//	    c, _ := cache.New(srv.Client(), cache.Config{}, nil, cache.WithMetrics(tel.Pipeline.Metrics()))
//	    ...
//	    if got := tel.Counter(t, observability.MetricCacheLookups, observability.AttrCacheResult, "hit"); got != 1 { ... }
//	}
//
// Test components follow the component lifecycle and add Reset, so one
// server can be shared by subtests.
package testutil
