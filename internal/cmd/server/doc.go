// Package serverrun exposes a shared Run entrypoint used by the CLI to start
// the Runnel runtime, pipeline, and HTTP server, handling lifecycle and
// shutdown ordering.
//
// Example:
//
//	cfg := config.Default()
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{Config: cfg})
package serverrun
