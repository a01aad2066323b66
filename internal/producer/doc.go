// Package producer drives the built-in event generator: every tick it
// draws one option from a sample pool and emits it as a JSON line plus an
// append to the ingest stream. The pool is swappable data loaded from a
// JSON file.
package producer
