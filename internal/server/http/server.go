package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/runnelhq/runnel/internal/pipeline"
	"github.com/runnelhq/runnel/internal/runtime"
	"github.com/runnelhq/runnel/pkg/log"
)

// Server exposes the query and observability surface: health, item lookups,
// alert listing and tailing, dead letter inspection, and metrics.
type Server struct {
	rt     *runtime.Runtime
	pl     *pipeline.Pipeline
	logger log.Logger
	srv    *http.Server
	lis    net.Listener
}

// New builds the router.
func New(rt *runtime.Runtime, pl *pipeline.Pipeline, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewLogger()
	}
	s := &Server{rt: rt, pl: pl, logger: logger.WithComponent("http")}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/v1/healthz", s.handleHealth)
	r.Get("/v1/items", s.handleItemGet)
	r.Get("/v1/items/range", s.handleItemRange)
	r.Get("/v1/alerts", s.handleAlertsList)
	r.Get("/v1/alerts/stream", s.handleAlertsSSE)
	r.Get("/v1/dlq", s.handleDLQList)
	r.Get("/v1/streams/stats", s.handleStreamStats)
	r.Post("/v1/events", s.handlePublish)

	if m := rt.Metrics(); m != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}

	s.srv = &http.Server{Handler: r}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close force-closes the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
