package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/runnelhq/runnel/internal/aggregate"
	"github.com/runnelhq/runnel/internal/eventlog"
)

// sseWriter sends JSON payloads as Server-Sent Events.
type sseWriter struct {
	w http.ResponseWriter
}

// Send writes one value with the "data: " prefix and a blank line as the SSE
// format requires, then flushes so the client sees it immediately.
func (s sseWriter) Send(v any) error {
	b, _ := json.Marshal(v)
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// GET /v1/alerts/stream tails the alert log as Server-Sent Events. By default
// it starts after the newest alert; ?from=earliest replays retained history
// first.
func (s *Server) handleAlertsSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	al := s.pl.AlertsLog()
	start := eventlog.TokenFromSeq(al.LastSeq() + 1)
	if r.URL.Query().Get("from") == "earliest" {
		start = eventlog.Token{}
	}
	out := sseWriter{w: w}

	for {
		items, next, err := al.ReadBatch(start, 64)
		if err != nil && !errors.Is(err, eventlog.ErrCursorOutOfRange) {
			return
		}
		for _, it := range items {
			a, derr := aggregate.DecodeAlert(it.Payload)
			if derr != nil {
				continue
			}
			if serr := out.Send(map[string]any{"seq": it.Seq, "alert": a}); serr != nil {
				return
			}
		}
		start = next
		if len(items) == 0 {
			// Short wait so client disconnects are noticed promptly.
			al.WaitForAppend(time.Second)
		}
		select {
		case <-r.Context().Done():
			return
		default:
		}
	}
}
