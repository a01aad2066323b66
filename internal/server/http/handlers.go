package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/runnelhq/runnel/internal/aggregate"
	"github.com/runnelhq/runnel/internal/dispatch"
	"github.com/runnelhq/runnel/internal/event"
	"github.com/runnelhq/runnel/internal/eventlog"
	"github.com/runnelhq/runnel/internal/pipeline"
	"github.com/runnelhq/runnel/internal/sink"
	"github.com/runnelhq/runnel/pkg/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /v1/items?pk=path%23/a&sk=2025-09-20T00:39:41.527Z
func (s *Server) handleItemGet(w http.ResponseWriter, r *http.Request) {
	pk := r.URL.Query().Get("pk")
	sk := r.URL.Query().Get("sk")
	if pk == "" || sk == "" {
		writeError(w, http.StatusBadRequest, "pk and sk are required")
		return
	}
	item, err := s.pl.Store().Get(pk, sk)
	if err != nil {
		if errors.Is(err, sink.ErrItemNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// GET /v1/items/range?pk=path%23/a&from=...&to=...&limit=100
func (s *Server) handleItemRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pk := q.Get("pk")
	if pk == "" {
		writeError(w, http.StatusBadRequest, "pk is required")
		return
	}
	limit := intParam(q.Get("limit"), 100)
	items, err := s.pl.Store().Range(pk, q.Get("from"), q.Get("to"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items, "count": len(items)})
}

// GET /v1/alerts?limit=50
func (s *Server) handleAlertsList(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r.URL.Query().Get("limit"), 50)
	items, _ := s.pl.AlertsLog().Read(eventlog.ReadOptions{Limit: limit, Reverse: true})
	alerts := make([]aggregate.AlertEvent, 0, len(items))
	for _, it := range items {
		a, err := aggregate.DecodeAlert(it.Payload)
		if err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts, "count": len(alerts)})
}

// GET /v1/dlq?group=persist&limit=50
func (s *Server) handleDLQList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	group := q.Get("group")
	switch group {
	case pipeline.GroupPersist, pipeline.GroupAggregate, pipeline.GroupNotify:
	default:
		writeError(w, http.StatusBadRequest, "unknown group")
		return
	}
	limit := intParam(q.Get("limit"), 50)

	stream := s.rt.Config().Streams.Ingest
	parts := s.rt.Config().Streams.Partitions
	if group == pipeline.GroupNotify {
		stream = s.rt.Config().Streams.Alerts
		parts = 1
	}
	var out []dispatch.DeadLetter
	for p := 0; p < parts && (limit == 0 || len(out) < limit); p++ {
		dlq, err := s.rt.OpenLog(dispatch.DeadLetterStream(stream, group), uint32(p))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		remaining := 0
		if limit > 0 {
			remaining = limit - len(out)
		}
		dls, _, err := dispatch.ReadDeadLetters(dlq, eventlog.Token{}, remaining)
		if err != nil && !errors.Is(err, eventlog.ErrCursorOutOfRange) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, dls...)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dead_letters": out, "count": len(out)})
}

// GET /v1/streams/stats
func (s *Server) handleStreamStats(w http.ResponseWriter, r *http.Request) {
	type partStat struct {
		Partition uint32 `json:"partition"`
		FirstSeq  uint64 `json:"first_seq"`
		LastSeq   uint64 `json:"last_seq"`
	}
	stats := map[string][]partStat{}
	for _, l := range s.pl.IngestLogs() {
		stats[l.Stream()] = append(stats[l.Stream()], partStat{
			Partition: l.Partition(), FirstSeq: l.OldestSeq(), LastSeq: l.LastSeq(),
		})
	}
	al := s.pl.AlertsLog()
	stats[al.Stream()] = []partStat{{Partition: al.Partition(), FirstSeq: al.OldestSeq(), LastSeq: al.LastSeq()}}
	writeJSON(w, http.StatusOK, stats)
}

type publishReq struct {
	Type       string                 `json:"type"`
	Key        string                 `json:"key"`
	Attributes map[string]interface{} `json:"attributes"`
}

// POST /v1/events appends one event to the ingest stream.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Type == "" || len(req.Attributes) == 0 {
		writeError(w, http.StatusBadRequest, "type and attributes are required")
		return
	}
	payload, err := json.Marshal(req.Attributes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logs := s.pl.IngestLogs()
	part := event.HashPartition(req.Key, len(logs))
	now := time.Now().UnixMilli()
	rec := eventlog.AppendRecord{
		Header: event.EncodeHeader(now, map[string]string{
			event.HeaderKey:  req.Key,
			event.HeaderType: req.Type,
		}),
		Payload: payload,
	}
	seqs, err := logs[part].Append(r.Context(), []eventlog.AppendRecord{rec})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m := s.rt.Metrics(); m != nil {
		m.EventsAppended.WithLabelValues(logs[part].Stream()).Inc()
	}
	s.logger.Debug("event published", log.Str("type", req.Type), log.Uint64("seq", seqs[0]))
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"partition": part, "seq": seqs[0]})
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
