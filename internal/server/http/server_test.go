package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/runnelhq/runnel/internal/aggregate"
	cfgpkg "github.com/runnelhq/runnel/internal/config"
	"github.com/runnelhq/runnel/internal/eventlog"
	"github.com/runnelhq/runnel/internal/pipeline"
	"github.com/runnelhq/runnel/internal/runtime"
	"github.com/runnelhq/runnel/internal/sink"
)

func newTestServer(t *testing.T) (*Server, *pipeline.Pipeline) {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Streams.Partitions = 2
	rt, err := runtime.Open(runtime.Options{Config: cfg})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	p, err := pipeline.Build(pipeline.Options{Runtime: rt})
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	return New(rt, p, nil), p
}

func doJSON(t *testing.T, h http.Handler, method, target string, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	out := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("response not JSON: %v: %s", err, rec.Body.String())
		}
	}
	return rec, out
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec, out := doJSON(t, s.Handler(), http.MethodGet, "/v1/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["status"] != "ok" {
		t.Fatalf("body = %v", out)
	}
}

func TestPublishAppendsEvent(t *testing.T) {
	s, p := newTestServer(t)
	body := `{"type":"inventory","key":"P-1","attributes":{"product_id":"P-1","inventory":3}}`
	rec, out := doJSON(t, s.Handler(), http.MethodPost, "/v1/events", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	part := int(out["partition"].(float64))
	items, _ := p.IngestLogs()[part].Read(eventlog.ReadOptions{Limit: 10})
	if len(items) != 1 {
		t.Fatalf("appended items = %d", len(items))
	}
	if !strings.Contains(string(items[0].Payload), `"product_id":"P-1"`) {
		t.Fatalf("payload = %s", items[0].Payload)
	}
}

func TestPublishRejectsBadBody(t *testing.T) {
	s, _ := newTestServer(t)
	for _, body := range []string{"not json", `{"type":"inventory"}`, `{"attributes":{"a":1}}`} {
		rec, _ := doJSON(t, s.Handler(), http.MethodPost, "/v1/events", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, rec.Code)
		}
	}
}

func TestItemGetAndRange(t *testing.T) {
	s, p := newTestServer(t)
	items := []sink.StoredItem{
		{PK: "path#/a", SK: "2025-09-20T00:39:41.527Z", Method: "GET", StatusCode: 200, StatusFamily: "2xx"},
		{PK: "path#/a", SK: "2025-09-20T00:39:42.001Z", Method: "GET", StatusCode: 503, StatusFamily: "5xx", IsError: true},
		{PK: "path#/b", SK: "2025-09-20T00:39:43.000Z", Method: "POST", StatusCode: 201, StatusFamily: "2xx"},
	}
	if err := p.Store().PutBatch(context.Background(), items); err != nil {
		t.Fatalf("put: %v", err)
	}

	target := "/v1/items?pk=" + url.QueryEscape("path#/a") + "&sk=" + url.QueryEscape("2025-09-20T00:39:41.527Z")
	rec, out := doJSON(t, s.Handler(), http.MethodGet, target, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if out["method"] != "GET" {
		t.Fatalf("item = %v", out)
	}

	rec, out = doJSON(t, s.Handler(), http.MethodGet, "/v1/items/range?pk="+url.QueryEscape("path#/a"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("range status = %d", rec.Code)
	}
	if out["count"].(float64) != 2 {
		t.Fatalf("range count = %v", out["count"])
	}
}

func TestItemGetNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec, _ := doJSON(t, s.Handler(), http.MethodGet, "/v1/items?pk="+url.QueryEscape("path#/missing")+"&sk=x", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	rec, _ = doJSON(t, s.Handler(), http.MethodGet, "/v1/items", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing params status = %d", rec.Code)
	}
}

func TestAlertsList(t *testing.T) {
	s, p := newTestServer(t)
	closeMs := time.Now().UnixMilli()
	for _, id := range []string{"P-1", "P-2"} {
		a := aggregate.AlertEvent{ProductID: id, ObservedValue: 3, Reason: "LOW_STOCK", WindowCloseMs: closeMs}
		payload, err := a.Encode()
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if _, err := p.AlertsLog().Append(context.Background(), []eventlog.AppendRecord{{Payload: payload}}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	rec, out := doJSON(t, s.Handler(), http.MethodGet, "/v1/alerts?limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["count"].(float64) != 2 {
		t.Fatalf("count = %v", out["count"])
	}
	alerts := out["alerts"].([]interface{})
	first := alerts[0].(map[string]interface{})
	if first["product_id"] != "P-2" {
		t.Fatalf("newest first, got %v", first["product_id"])
	}
}

func TestDLQListValidation(t *testing.T) {
	s, _ := newTestServer(t)
	rec, _ := doJSON(t, s.Handler(), http.MethodGet, "/v1/dlq?group=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	rec, out := doJSON(t, s.Handler(), http.MethodGet, "/v1/dlq?group=persist", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["count"].(float64) != 0 {
		t.Fatalf("empty dlq count = %v", out["count"])
	}
}

func TestStreamStats(t *testing.T) {
	s, p := newTestServer(t)
	if _, err := p.IngestLogs()[0].Append(context.Background(), []eventlog.AppendRecord{{Payload: []byte(`{}`)}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	rec, out := doJSON(t, s.Handler(), http.MethodGet, "/v1/streams/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	ingest := out["ingest"].([]interface{})
	if len(ingest) != 2 {
		t.Fatalf("ingest partitions = %d", len(ingest))
	}
	if _, ok := out["alerts"]; !ok {
		t.Fatalf("missing alerts stats: %v", out)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
}
