package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/runnelhq/runnel/internal/event"
	"github.com/runnelhq/runnel/internal/eventlog"
)

// DeadLetter is the stored form of an event whose batch exhausted retries or
// failed permanently. It carries enough context to replay by hand.
type DeadLetter struct {
	Group      string            `json:"group"`
	Stream     string            `json:"stream"`
	Partition  uint32            `json:"partition"`
	Seq        uint64            `json:"seq"`
	Headers    map[string]string `json:"headers,omitempty"`
	Payload    []byte            `json:"payload"`
	Reason     string            `json:"reason"`
	Attempts   int               `json:"attempts"`
	FailedAtMs int64             `json:"failed_at_ms"`
}

// DeadLetterStream names the log that holds a group's dead letters.
func DeadLetterStream(stream, group string) string {
	return "dlq." + stream + "." + group
}

func appendDeadLetters(ctx context.Context, dlq *eventlog.Log, group, stream string, evs []event.Event, reason string, attempts int) error {
	recs := make([]eventlog.AppendRecord, 0, len(evs))
	now := time.Now().UnixMilli()
	for _, ev := range evs {
		dl := DeadLetter{
			Group:      group,
			Stream:     stream,
			Partition:  ev.Partition,
			Seq:        ev.Seq,
			Headers:    ev.Headers,
			Payload:    ev.Payload,
			Reason:     reason,
			Attempts:   attempts,
			FailedAtMs: now,
		}
		b, err := json.Marshal(dl)
		if err != nil {
			return err
		}
		recs = append(recs, eventlog.AppendRecord{
			Header:  event.EncodeHeader(now, nil),
			Payload: b,
		})
	}
	_, err := dlq.Append(ctx, recs)
	return err
}

// ReadDeadLetters lists dead letters from a group's dead letter log starting
// at the given token.
func ReadDeadLetters(dlq *eventlog.Log, start eventlog.Token, limit int) ([]DeadLetter, eventlog.Token, error) {
	items, next, err := dlq.ReadBatch(start, limit)
	if err != nil {
		return nil, next, err
	}
	out := make([]DeadLetter, 0, len(items))
	for _, it := range items {
		var dl DeadLetter
		if jerr := json.Unmarshal(it.Payload, &dl); jerr != nil {
			continue
		}
		out = append(out, dl)
	}
	return out, next, nil
}
