// Package httpserver provides the REST gateway for Runnel: item and alert
// queries, SSE alert tailing, dead letter inspection, event publishing, and
// Prometheus metrics.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	p, _ := pipeline.Build(pipeline.Options{Runtime: rt})
//	s := httpserver.New(rt, p, nil)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
