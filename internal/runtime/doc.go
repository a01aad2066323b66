// Package runtime wires storage, config, and metrics into a single-node
// Runnel instance. It exposes Open/Close, basic health checks, and helpers
// to open stream partitions shared by the pipeline components.
//
// Example:
//
//	cfg, _ := config.Load("")
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	logs, _ := rt.OpenStream(cfg.Streams.Ingest, cfg.Streams.Partitions)
package runtime
