package eventlog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	pebblestore "github.com/runnelhq/runnel/internal/storage/pebble"
)

// ErrPartitionUnavailable wraps storage failures so callers can distinguish
// an unreachable partition from bad input.
var ErrPartitionUnavailable = errors.New("eventlog: partition unavailable")

// ErrCursorOutOfRange reports a cursor that precedes the retention floor.
// ReadBatch still returns the oldest retained entries; the caller must treat
// the gap as data loss, not skip it silently.
var ErrCursorOutOfRange = errors.New("eventlog: cursor precedes retention floor")

// AppendRecord represents a single appendable event.
type AppendRecord struct {
	Header  []byte
	Payload []byte
}

// Log provides append-only operations for one stream partition. Appends never
// block on readers; consumers track their own position through cursors.
type Log struct {
	db     *pebblestore.DB
	stream string
	part   uint32

	mu       sync.Mutex
	lastSeq  uint64
	floorSeq uint64 // last trimmed seq; oldest retained is floorSeq+1
	notifyCh chan struct{}
}

// OpenLog initializes a Log and loads sequence metadata if present.
func OpenLog(db *pebblestore.DB, stream string, partition uint32) (*Log, error) {
	l := &Log{db: db, stream: stream, part: partition, notifyCh: make(chan struct{})}
	if meta, err := db.Get(KeyLogMeta(stream, partition)); err == nil && len(meta) >= 8 {
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	if f, err := db.Get(KeyLogFloor(stream, partition)); err == nil && len(f) >= 8 {
		l.floorSeq = binary.BigEndian.Uint64(f[:8])
	}
	return l, nil
}

// Stream returns the stream name this partition belongs to.
func (l *Log) Stream() string { return l.stream }

// Partition returns the partition index.
func (l *Log) Partition() uint32 { return l.part }

// Append appends the provided records as a single atomic batch and returns
// the assigned sequence numbers.
func (l *Log) Append(ctx context.Context, recs []AppendRecord) ([]uint64, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.db.NewBatch()
	defer b.Close()

	seqs := make([]uint64, len(recs))
	for i, r := range recs {
		l.lastSeq++
		seq := l.lastSeq
		val := EncodeRecord(r.Header, r.Payload)
		if err := b.Set(KeyLogEntry(l.stream, l.part, seq), val, nil); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPartitionUnavailable, err)
		}
		seqs[i] = seq
	}

	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], l.lastSeq)
	if err := b.Set(KeyLogMeta(l.stream, l.part), meta[:], nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPartitionUnavailable, err)
	}

	if err := l.db.CommitBatch(ctx, b); err != nil {
		// roll back the in-memory counter so sequence numbers stay contiguous
		l.lastSeq -= uint64(len(recs))
		return nil, fmt.Errorf("%w: %v", ErrPartitionUnavailable, err)
	}
	// notify waiters
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
	return seqs, nil
}

// LastSeq returns the highest assigned sequence number.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

// OldestSeq returns the oldest retained sequence number, or 0 for an empty
// partition.
func (l *Log) OldestSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastSeq == 0 || l.lastSeq == l.floorSeq {
		return 0
	}
	return l.floorSeq + 1
}

func (l *Log) setFloor(seq uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq <= l.floorSeq {
		return nil
	}
	l.floorSeq = seq
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return l.db.Set(KeyLogFloor(l.stream, l.part), b[:])
}
