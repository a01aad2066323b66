package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/runnelhq/runnel/internal/event"
	pebblestore "github.com/runnelhq/runnel/internal/storage/pebble"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func httpEvent(t *testing.T, path string, status int, tsMs int64, extra map[string]interface{}) event.Event {
	t.Helper()
	attrs := map[string]interface{}{
		"method":      "GET",
		"path":        path,
		"status_code": status,
		"message":     "OK",
		"timestamp":   event.FormatTimestamp(tsMs),
	}
	for k, v := range extra {
		attrs[k] = v
	}
	payload := mustJSON(t, attrs)
	ev, err := event.Decode(0, 1, event.EncodeHeader(tsMs, map[string]string{event.HeaderKey: path}), payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ev
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestItemDerivation(t *testing.T) {
	ts := time.Date(2025, 9, 20, 0, 39, 41, 527e6, time.UTC).UnixMilli()
	ev := httpEvent(t, "/api/report", 500, ts, map[string]interface{}{"error_code": "ESERVER", "message": "Internal Server Error"})
	item := ItemFromEvent(&ev)
	if item.PK != "path#/api/report" {
		t.Fatalf("pk = %q", item.PK)
	}
	if item.SK != "2025-09-20T00:39:41.527Z" {
		t.Fatalf("sk = %q", item.SK)
	}
	if item.StatusFamily != "5xx" || !item.IsError || item.ErrorCode != "ESERVER" {
		t.Fatalf("derived fields: %+v", item)
	}
}

func TestItemDerivationFallbacks(t *testing.T) {
	ev, err := event.Decode(0, 1, event.EncodeHeader(1700000000000, nil), []byte(`{"raw":"not http"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	item := ItemFromEvent(&ev)
	if item.PK != "path#/" || item.Method != "UNKNOWN" || item.StatusCode != -1 {
		t.Fatalf("fallbacks: %+v", item)
	}
	if item.StatusFamily != "n/a" {
		t.Fatalf("family = %q", item.StatusFamily)
	}
	if item.IsError {
		t.Fatalf("no error code and no 5xx, is_error should be false")
	}
}

func TestErrorCodeAloneMarksError(t *testing.T) {
	ev := httpEvent(t, "/api/secret", 401, time.Now().UnixMilli(), map[string]interface{}{"error_code": "EAUTH"})
	item := ItemFromEvent(&ev)
	if !item.IsError {
		t.Fatalf("4xx with error_code should be an error")
	}
	if item.StatusFamily != "4xx" {
		t.Fatalf("family = %q", item.StatusFamily)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ev := httpEvent(t, "/a", 200, 1700000000000, nil)
	item := ItemFromEvent(&ev)
	if err := s.Put(item); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(item.PK, item.SK)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Method != "GET" || got.StatusCode != 200 || got.PK != "path#/a" {
		t.Fatalf("round trip: %+v", got)
	}
	if _, err := s.Get("path#/missing", item.SK); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestHandlerIdempotentOnRedelivery(t *testing.T) {
	s := newTestStore(t)
	h := NewHandler(s, nil, nil)
	ev := httpEvent(t, "/a", 200, 1700000000000, nil)

	for i := 0; i < 2; i++ {
		if err := h.Handle(context.Background(), []event.Event{ev}); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}
	items, err := s.Range("path#/a", "", "", 0)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("redelivery produced %d items, want 1", len(items))
	}
}

func TestTwoTimestampsTwoItems(t *testing.T) {
	s := newTestStore(t)
	h := NewHandler(s, nil, nil)
	t1 := int64(1700000000000)
	t2 := t1 + 1500
	batch := []event.Event{
		httpEvent(t, "/a", 200, t1, nil),
		httpEvent(t, "/a", 200, t2, nil),
	}
	if err := h.Handle(context.Background(), batch); err != nil {
		t.Fatalf("handle: %v", err)
	}
	items, err := s.Range("path#/a", "", "", 0)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].SK != event.FormatTimestamp(t1) || items[1].SK != event.FormatTimestamp(t2) {
		t.Fatalf("order: %q then %q", items[0].SK, items[1].SK)
	}
}

func TestRangeBounds(t *testing.T) {
	s := newTestStore(t)
	base := int64(1700000000000)
	for i := 0; i < 5; i++ {
		ev := httpEvent(t, "/a", 200, base+int64(i)*1000, nil)
		if err := s.Put(ItemFromEvent(&ev)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	// other pk must not leak into the scan
	other := httpEvent(t, "/b", 200, base, nil)
	if err := s.Put(ItemFromEvent(&other)); err != nil {
		t.Fatalf("put other: %v", err)
	}

	from := event.FormatTimestamp(base + 1000)
	to := event.FormatTimestamp(base + 3000)
	items, err := s.Range("path#/a", from, to, 0)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("bounded range = %d items, want 3", len(items))
	}
	if items[0].SK != from || items[2].SK != to {
		t.Fatalf("bounds: %q .. %q", items[0].SK, items[2].SK)
	}

	limited, err := s.Range("path#/a", "", "", 2)
	if err != nil {
		t.Fatalf("range limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit ignored: %d", len(limited))
	}
}
