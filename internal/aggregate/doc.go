// Package aggregate implements the windowed alerting stage. Events of the
// watched type are evaluated against a CEL predicate inside per-entity
// tumbling windows; the first qualifying event in a window appends one
// AlertEvent to the alerts stream. Emitted windows are marked durably so a
// redelivered input batch cannot alert twice. Dedup can be switched off to
// reproduce plain per-row continuous-query emission.
package aggregate
