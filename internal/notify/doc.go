// Package notify turns alert events into operator notifications. The sink
// is pluggable (console for development, webhook for real channels), gets a
// circuit breaker against dead downstreams, and sits behind a short-lived
// dedup set so at-least-once redelivery does not page twice for the same
// (entity, window).
package notify
