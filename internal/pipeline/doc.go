// Package pipeline assembles the full engine: built-in producer, ingest
// stream, persistence and aggregation consumer groups, alerts stream,
// notifier, and retention trims. Build wires everything against one
// runtime; Start/Stop manage the worker lifecycle with a drain order that
// lets in-flight batches finish.
package pipeline
