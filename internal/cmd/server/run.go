package serverrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cfgpkg "github.com/runnelhq/runnel/internal/config"
	"github.com/runnelhq/runnel/internal/metrics"
	"github.com/runnelhq/runnel/internal/pipeline"
	"github.com/runnelhq/runnel/internal/runtime"
	httpserver "github.com/runnelhq/runnel/internal/server/http"
	logpkg "github.com/runnelhq/runnel/pkg/log"
)

// Options carries the resolved configuration plus CLI overrides applied by
// the caller before Run.
type Options struct {
	Config cfgpkg.Config
}

// Run opens the runtime, builds the ingestion pipeline, and serves HTTP until
// ctx is cancelled. Shutdown drains the producer and retention loop first,
// then the consumer groups, then the server.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so a plain
	// context.Background() caller still gets clean SIGTERM handling.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}

	procLogger, err := logpkg.ApplyConfig(&logpkg.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return err
	}
	logpkg.RedirectStdLog(procLogger)

	m := metrics.New()
	rt, err := runtime.Open(runtime.Options{Config: cfg, Metrics: m})
	if err != nil {
		return err
	}
	defer rt.Close()

	p, err := pipeline.Build(pipeline.Options{Runtime: rt, Logger: procLogger})
	if err != nil {
		return err
	}

	procLogger.Info("starting runnel",
		logpkg.Str("http", cfg.Server.Addr),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("ingest", cfg.Streams.Ingest),
		logpkg.Int("partitions", cfg.Streams.Partitions),
		logpkg.Bool("producer", cfg.Producer.Enabled),
	)

	p.Start(sctx)
	defer p.Stop()

	hsrv := httpserver.New(rt, p, procLogger)
	defer hsrv.Close()
	return hsrv.ListenAndServe(sctx, cfg.Server.Addr)
}
