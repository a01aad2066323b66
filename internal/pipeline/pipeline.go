package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/runnelhq/runnel/internal/aggregate"
	cfgpkg "github.com/runnelhq/runnel/internal/config"
	"github.com/runnelhq/runnel/internal/dispatch"
	"github.com/runnelhq/runnel/internal/event"
	"github.com/runnelhq/runnel/internal/eventlog"
	"github.com/runnelhq/runnel/internal/notify"
	"github.com/runnelhq/runnel/internal/producer"
	"github.com/runnelhq/runnel/internal/runtime"
	"github.com/runnelhq/runnel/internal/sink"
	"github.com/runnelhq/runnel/pkg/log"
)

// Consumer group names, fixed: cursors are keyed by them, so renames would
// orphan positions.
const (
	GroupPersist   = "persist"
	GroupAggregate = "aggregate"
	GroupNotify    = "notify"
)

// Options configures Build.
type Options struct {
	Runtime *runtime.Runtime
	Logger  log.Logger
	// NotifySink overrides the config-selected sink; tests use this to
	// capture deliveries.
	NotifySink notify.Sink
	// ProducerOut receives the producer's JSON lines, typically stdout.
	ProducerOut io.Writer
}

// Pipeline owns the full flow: producer -> ingest log -> {persistence sink,
// windowed aggregator} -> alerts log -> notifier, plus retention trims.
type Pipeline struct {
	rt     *runtime.Runtime
	cfg    cfgpkg.Config
	logger log.Logger

	store      *sink.Store
	aggregator *aggregate.Aggregator
	producer   *producer.Producer

	ingest []*eventlog.Log
	alerts *eventlog.Log

	persistDisp   *dispatch.Dispatcher
	aggregateDisp *dispatch.Dispatcher
	notifyDisp    *dispatch.Dispatcher

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Build wires every stage without starting any of them.
func Build(opts Options) (*Pipeline, error) {
	rt := opts.Runtime
	cfg := rt.Config()
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	logger = logger.WithComponent("pipeline")
	m := rt.Metrics()

	ingest, err := rt.OpenStream(cfg.Streams.Ingest, cfg.Streams.Partitions)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open ingest stream: %w", err)
	}
	alerts, err := rt.OpenLog(cfg.Streams.Alerts, 0)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open alerts stream: %w", err)
	}

	p := &Pipeline{
		rt:     rt,
		cfg:    cfg,
		logger: logger,
		store:  sink.NewStore(rt.DB()),
		ingest: ingest,
		alerts: alerts,
	}

	policy := dispatch.RetryPolicy{
		Type:        dispatch.BackoffType(cfg.Dispatcher.Retry.Policy),
		Base:        cfg.Dispatcher.Retry.Base,
		Cap:         cfg.Dispatcher.Retry.Cap,
		Factor:      cfg.Dispatcher.Retry.Factor,
		MaxAttempts: cfg.Dispatcher.Retry.MaxAttempts,
	}

	persistHandler := sink.NewHandler(p.store, logger, m)
	p.persistDisp, err = p.newDispatcher(GroupPersist, persistHandler, ingest, cfg.Streams.Ingest, policy)
	if err != nil {
		return nil, err
	}

	p.aggregator, err = aggregate.New(aggregate.Options{
		Predicate:  cfg.Window.Predicate,
		WindowSize: cfg.Window.Size,
		Dedup:      cfg.Window.Dedup,
		Alerts:     alerts,
		DB:         rt.DB(),
		Logger:     opts.Logger,
		Metrics:    m,
	})
	if err != nil {
		return nil, err
	}
	p.aggregateDisp, err = p.newDispatcher(GroupAggregate, p.aggregator, ingest, cfg.Streams.Ingest, policy)
	if err != nil {
		return nil, err
	}

	notifySink := opts.NotifySink
	if notifySink == nil {
		switch cfg.Notifier.Kind {
		case "webhook":
			notifySink = notify.NewBreakerSink(
				notify.NewWebhookSink(cfg.Notifier.WebhookURL, cfg.Notifier.Timeout),
				cfg.Dispatcher.Retry.Cap, opts.Logger)
		default:
			notifySink = notify.NewConsoleSink(opts.Logger)
		}
	}
	notifyHandler := notify.NewHandler(notifySink, cfg.Notifier.Recipient, cfg.Notifier.DedupTTL, opts.Logger, m)
	p.notifyDisp, err = p.newDispatcher(GroupNotify, notifyHandler, []*eventlog.Log{alerts}, cfg.Streams.Alerts, policy)
	if err != nil {
		return nil, err
	}

	if cfg.Producer.Enabled {
		pool := producer.DefaultPool()
		if cfg.Producer.PoolPath != "" {
			pool, err = producer.LoadPool(cfg.Producer.PoolPath)
			if err != nil {
				return nil, err
			}
		}
		p.producer, err = producer.New(producer.Options{
			Pool:     pool,
			Interval: cfg.Producer.Interval,
			Seed:     cfg.Producer.Seed,
			Logs:     ingest,
			Out:      opts.ProducerOut,
			Logger:   opts.Logger,
			Metrics:  m,
		})
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pipeline) newDispatcher(group string, h dispatch.Handler, logs []*eventlog.Log, stream string, policy dispatch.RetryPolicy) (*dispatch.Dispatcher, error) {
	dlqs := make([]*eventlog.Log, len(logs))
	for i := range logs {
		dlq, err := p.rt.OpenLog(dispatch.DeadLetterStream(stream, group), logs[i].Partition())
		if err != nil {
			return nil, fmt.Errorf("pipeline: open dead letter log for %s: %w", group, err)
		}
		dlqs[i] = dlq
	}
	return dispatch.New(dispatch.Options{
		Group:        group,
		Handler:      h,
		Logs:         logs,
		DeadLetters:  dlqs,
		Policy:       policy,
		BatchSize:    p.cfg.Dispatcher.BatchSize,
		PollInterval: p.cfg.Dispatcher.PollInterval,
		Logger:       p.logger,
		Metrics:      p.rt.Metrics(),
	})
}

// Store exposes the persistence sink's read surface for the query API.
func (p *Pipeline) Store() *sink.Store { return p.store }

// AlertsLog exposes the alerts stream for the query API.
func (p *Pipeline) AlertsLog() *eventlog.Log { return p.alerts }

// IngestLogs exposes the ingest partitions.
func (p *Pipeline) IngestLogs() []*eventlog.Log { return p.ingest }

// Start launches dispatchers, the producer, and the retention loop.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.persistDisp.Start(ctx)
	p.aggregateDisp.Start(ctx)
	p.notifyDisp.Start(ctx)

	if p.producer != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			_ = p.producer.Run(ctx)
		}()
	}

	if p.cfg.Retention.MaxAge > 0 || p.cfg.Retention.MaxBytes > 0 {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.retentionLoop(ctx)
		}()
	}
	p.logger.Info("pipeline started",
		log.Int("partitions", len(p.ingest)),
		log.Bool("producer", p.producer != nil))
}

// Stop drains the pipeline front to back: producer first so the logs stop
// growing, then the ingest consumers, then the notifier, flushing aggregation
// state in between.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.persistDisp.Stop()
	p.aggregateDisp.Stop()
	p.aggregator.Flush()
	p.notifyDisp.Stop()
	p.logger.Info("pipeline stopped")
}

func (p *Pipeline) retentionLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Retention.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runRetention(ctx)
		}
	}
}

func (p *Pipeline) runRetention(ctx context.Context) {
	logs := append(append([]*eventlog.Log(nil), p.ingest...), p.alerts)
	extract := func(header []byte) (int64, bool) {
		ms, _ := event.DecodeHeader(header)
		return ms, ms > 0
	}
	for _, l := range logs {
		if p.cfg.Retention.MaxAge > 0 {
			cutoff := time.Now().Add(-p.cfg.Retention.MaxAge).UnixMilli()
			deleted, _, err := l.TrimOlderThan(ctx, cutoff, 0, 0, extract)
			if err != nil {
				p.logger.Error("retention trim by age", log.Err(err), log.Str("stream", l.Stream()))
			} else if deleted > 0 {
				p.observeTrim(l.Stream(), deleted)
			}
		}
		if p.cfg.Retention.MaxBytes > 0 {
			deleted, err := l.TrimToMaxBytes(ctx, p.cfg.Retention.MaxBytes, 0, 0)
			if err != nil {
				p.logger.Error("retention trim by size", log.Err(err), log.Str("stream", l.Stream()))
			} else if deleted > 0 {
				p.observeTrim(l.Stream(), deleted)
			}
		}
	}
}

func (p *Pipeline) observeTrim(stream string, deleted int) {
	p.logger.Info("retention trimmed entries", log.Str("stream", stream), log.Int("deleted", deleted))
	if m := p.rt.Metrics(); m != nil {
		m.TrimDeleted.WithLabelValues(stream).Add(float64(deleted))
	}
}
