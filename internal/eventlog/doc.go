// Package eventlog implements runnel's partitioned append-only event log.
//
// # Overview
//
// The log is partitioned by stream/partition and persisted in Pebble. Keys
// are lexicographically ordered for efficient range scans:
//   - log/{stream}/{part_be4}/m            (partition metadata: lastSeq)
//   - log/{stream}/{part_be4}/f            (retention floor: last trimmed seq)
//   - log/{stream}/{part_be4}/e/{seq_be8}  (entries)
//   - cursor/{stream}/{group}/{part_be4}   (durable group cursors)
//
// Records are stored as: varint headerLen | header | payload | crc32c.
//
// Events within a partition are returned in append order; there is no
// ordering guarantee across partitions. Appends never block on slow
// consumers; each consumer group tracks its own durable cursor.
//
// API surface (internal)
//
//	l, _ := OpenLog(db, stream, part)
//	seqs, _ := l.Append(ctx, []AppendRecord{{Header: h, Payload: p}})
//
//	// Consumer read with retention-floor checking
//	items, next, err := l.ReadBatch(TokenFromSeq(cur.Seq()+1), 128)
//	if errors.Is(err, ErrCursorOutOfRange) { /* surface data loss */ }
//
//	// Blocking wait/notify for empty partitions
//	woke := l.WaitForAppend(50 * time.Millisecond)
//	_ = woke
//
//	// Durable cursor commits (idempotent, no regression)
//	_ = l.CommitCursor("persist", TokenFromSeq(seqs[len(seqs)-1]))
//
//	// Retention trims by age and byte budget
//	_, _, _ = l.TrimOlderThan(ctx, cutoffMs, 1024, 0, tsExtractor)
//	_, _ = l.TrimToMaxBytes(ctx, maxBytes, 1024, 0)
package eventlog
