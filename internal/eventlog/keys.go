package eventlog

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - log/{stream}/{part_be4}/m            (partition metadata: lastSeq)
// - log/{stream}/{part_be4}/f            (retention floor: last trimmed seq)
// - log/{stream}/{part_be4}/e/{seq_be8}  (entries)
// - cursor/{stream}/{group}/{part_be4}   (durable group cursors)

var (
	sep         = byte('/')
	logPrefix   = []byte("log/")
	cursorSeg   = []byte("cursor/")
	metaSuffix  = []byte("/m")
	floorSuffix = []byte("/f")
	entrySeg    = []byte("/e/")
)

func appendBE4(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyLogMeta builds the partition metadata key.
func KeyLogMeta(stream string, partition uint32) []byte {
	k := make([]byte, 0, len(stream)+16)
	k = append(k, logPrefix...)
	k = append(k, stream...)
	k = append(k, sep)
	k = appendBE4(k, partition)
	k = append(k, metaSuffix...)
	return k
}

// KeyLogFloor builds the retention-floor key for a partition.
func KeyLogFloor(stream string, partition uint32) []byte {
	k := make([]byte, 0, len(stream)+16)
	k = append(k, logPrefix...)
	k = append(k, stream...)
	k = append(k, sep)
	k = appendBE4(k, partition)
	k = append(k, floorSuffix...)
	return k
}

// KeyLogEntry builds the entry key with a big-endian sequence for ordering.
func KeyLogEntry(stream string, partition uint32, seq uint64) []byte {
	k := make([]byte, 0, len(stream)+24)
	k = append(k, logPrefix...)
	k = append(k, stream...)
	k = append(k, sep)
	k = appendBE4(k, partition)
	k = append(k, entrySeg...)
	k = appendBE8(k, seq)
	return k
}

// KeyCursor builds the durable cursor key for a group and partition.
func KeyCursor(stream, group string, partition uint32) []byte {
	k := make([]byte, 0, len(stream)+len(group)+16)
	k = append(k, cursorSeg...)
	k = append(k, stream...)
	k = append(k, sep)
	k = append(k, group...)
	k = append(k, sep)
	k = appendBE4(k, partition)
	return k
}
