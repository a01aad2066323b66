package event

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"time"
)

// Header keys carried alongside every record.
const (
	HeaderKey  = "key"  // partition key the producer supplied
	HeaderType = "type" // logical event type, e.g. "http" or "inventory"
)

// Event is an immutable record read from a log partition. Attributes is the
// decoded JSON payload; Payload keeps the raw bytes so redelivery and
// dead-lettering preserve the original record exactly.
type Event struct {
	PartitionKey string
	Partition    uint32
	Seq          uint64
	TimestampMs  int64
	Headers      map[string]string
	Attributes   map[string]interface{}
	Payload      []byte
}

// Type returns the event's logical type header, or "" when absent.
func (e *Event) Type() string { return e.Headers[HeaderType] }

// Str returns a string attribute, or "" when absent or not a string.
func (e *Event) Str(name string) string {
	if v, ok := e.Attributes[name].(string); ok {
		return v
	}
	return ""
}

// Num returns a numeric attribute. JSON numbers decode as float64.
func (e *Event) Num(name string) (float64, bool) {
	switch v := e.Attributes[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// EncodeHeader builds the wire header: 8-byte big-endian write timestamp (ms)
// followed by an optional JSON map of string headers.
func EncodeHeader(tsMs int64, headers map[string]string) []byte {
	buf := make([]byte, 8, 8+32)
	binary.BigEndian.PutUint64(buf[:8], uint64(tsMs))
	if len(headers) > 0 {
		if hb, err := json.Marshal(headers); err == nil {
			buf = append(buf, hb...)
		}
	}
	return buf
}

// DecodeHeader splits a wire header into timestamp and header map.
func DecodeHeader(b []byte) (int64, map[string]string) {
	if len(b) < 8 {
		return 0, nil
	}
	ts := int64(binary.BigEndian.Uint64(b[:8]))
	if len(b) == 8 {
		return ts, nil
	}
	var headers map[string]string
	if err := json.Unmarshal(b[8:], &headers); err != nil {
		return ts, nil
	}
	return ts, headers
}

// Decode builds an Event from a stored record.
func Decode(partition uint32, seq uint64, header, payload []byte) (Event, error) {
	ts, headers := DecodeHeader(header)
	ev := Event{
		Partition:   partition,
		Seq:         seq,
		TimestampMs: ts,
		Headers:     headers,
		Payload:     append([]byte(nil), payload...),
	}
	if headers != nil {
		ev.PartitionKey = headers[HeaderKey]
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &ev.Attributes); err != nil {
			return ev, fmt.Errorf("event: decode payload: %w", err)
		}
	}
	return ev, nil
}

// HashPartition maps a partition key onto one of n partitions. An empty key
// always maps to partition 0.
func HashPartition(key string, n int) uint32 {
	if key == "" || n <= 1 {
		return 0
	}
	return crc32.ChecksumIEEE([]byte(key)) % uint32(n)
}

// FormatTimestamp renders ms-since-epoch as ISO8601 with millisecond
// precision, the sort-key format of the persistence sink.
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}

// ParseTimestamp accepts the common ISO8601 shapes the producers emit:
// with or without fractional seconds, "Z" or a numeric offset.
func ParseTimestamp(s string) (int64, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("event: unparseable timestamp %q", s)
}
