package eventlog

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"
)

// Token encodes a log position as a seq (8 bytes big-endian).
type Token [8]byte

// TokenFromSeq builds a Token for the given sequence number.
func TokenFromSeq(seq uint64) Token { var t Token; binary.BigEndian.PutUint64(t[:], seq); return t }

// Seq returns the sequence the token points at.
func (t Token) Seq() uint64 { return binary.BigEndian.Uint64(t[:]) }

// ReadOptions controls a raw scan.
type ReadOptions struct {
	Start   Token // if zero, begin from the first retained entry
	Limit   int
	Reverse bool
}

// Item is one stored record with its sequence number.
type Item struct {
	Seq     uint64
	Header  []byte
	Payload []byte
}

// Read returns up to Limit items starting at Start (inclusive). Reverse scans
// descending. Read performs no floor checking; consumers use ReadBatch.
func (l *Log) Read(opts ReadOptions) ([]Item, Token) {
	startSeq := opts.Start.Seq()
	startKey := KeyLogEntry(l.stream, l.part, startSeq)
	low := KeyLogEntry(l.stream, l.part, 0)
	hi := KeyLogEntry(l.stream, l.part, ^uint64(0))

	items := make([]Item, 0, max(1, opts.Limit))
	var next Token
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return items, next
	}
	defer iter.Close()

	if opts.Reverse {
		if startSeq == 0 {
			if !iter.Last() {
				return items, next
			}
		} else if !iter.SeekLT(startKey) {
			if !iter.Last() {
				return items, next
			}
		}
		for iter.Valid() && (opts.Limit == 0 || len(items) < opts.Limit) {
			seq := binary.BigEndian.Uint64(iter.Key()[len(startKey)-8:])
			if dec, ok := DecodeRecord(iter.Value()); ok {
				items = append(items, Item{Seq: seq, Header: dec.Header, Payload: dec.Payload})
			}
			if !iter.Prev() {
				break
			}
		}
		if iter.Valid() {
			copy(next[:], iter.Key()[len(startKey)-8:len(startKey)])
		}
		return items, next
	}

	if startSeq == 0 {
		if !iter.First() {
			return items, next
		}
	} else if !iter.SeekGE(startKey) {
		return items, next
	}
	for iter.Valid() && (opts.Limit == 0 || len(items) < opts.Limit) {
		seq := binary.BigEndian.Uint64(iter.Key()[len(startKey)-8:])
		if dec, ok := DecodeRecord(iter.Value()); ok {
			items = append(items, Item{Seq: seq, Header: dec.Header, Payload: dec.Payload})
		}
		if !iter.Next() {
			break
		}
	}
	if iter.Valid() {
		copy(next[:], iter.Key()[len(startKey)-8:len(startKey)])
	}
	return items, next
}

// ReadBatch reads up to limit items at start for a consumer. When start
// precedes the retention floor, it resets to the oldest retained entry and
// returns ErrCursorOutOfRange together with the items, so the caller can
// surface the data loss and continue from the returned position.
func (l *Log) ReadBatch(start Token, limit int) ([]Item, Token, error) {
	var err error
	oldest := l.OldestSeq()
	if s := start.Seq(); s > 0 && oldest > 0 && s < oldest {
		start = TokenFromSeq(oldest)
		err = ErrCursorOutOfRange
	}
	items, _ := l.Read(ReadOptions{Start: start, Limit: limit})
	next := start
	if len(items) > 0 {
		next = TokenFromSeq(items[len(items)-1].Seq + 1)
	}
	return items, next, err
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
