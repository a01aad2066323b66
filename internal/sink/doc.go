// Package sink persists events as queryable items keyed by
// (partition key, timestamp). The write path is a pure overwrite, so
// at-least-once redelivery converges to the same stored state. The read
// path offers point lookups and chronological range scans per key.
package sink
