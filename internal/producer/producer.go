package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/runnelhq/runnel/internal/event"
	"github.com/runnelhq/runnel/internal/eventlog"
	"github.com/runnelhq/runnel/internal/metrics"
	"github.com/runnelhq/runnel/pkg/log"
)

// Options configures a Producer.
type Options struct {
	Pool     []Option
	Interval time.Duration
	Seed     int64 // 0 seeds from the clock
	// Logs are the ingest stream's partitions, indexed by partition.
	Logs []*eventlog.Log
	// Out receives one JSON line per emission; nil discards.
	Out     io.Writer
	Logger  log.Logger
	Metrics *metrics.Metrics
}

// Producer emits one random pool option per tick, both as a JSON line on
// Out and as an event appended to the ingest log, partitioned by the
// option's key.
type Producer struct {
	opts Options
	rng  *rand.Rand
	log  log.Logger
}

// New validates opts and builds a Producer.
func New(opts Options) (*Producer, error) {
	if len(opts.Pool) == 0 {
		return nil, errors.New("producer: pool is empty")
	}
	if len(opts.Logs) == 0 {
		return nil, errors.New("producer: at least one partition log is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Producer{
		opts: opts,
		rng:  rand.New(rand.NewSource(seed)),
		log:  logger.WithComponent("producer"),
	}, nil
}

// Run emits until ctx is done.
func (p *Producer) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.EmitOne(ctx); err != nil {
				p.log.Error("emit failed", log.Err(err))
			}
		}
	}
}

// EmitOne performs a single emission cycle.
func (p *Producer) EmitOne(ctx context.Context) error {
	opt := Choose(p.opts.Pool, p.rng)
	now := time.Now().UnixMilli()

	attrs := make(map[string]interface{}, len(opt.Attributes)+1)
	for k, v := range opt.Attributes {
		attrs[k] = v
	}
	attrs["timestamp"] = event.FormatTimestamp(now)

	payload, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("producer: marshal: %w", err)
	}

	key := opt.Key()
	part := event.HashPartition(key, len(p.opts.Logs))
	rec := eventlog.AppendRecord{
		Header: event.EncodeHeader(now, map[string]string{
			event.HeaderKey:  key,
			event.HeaderType: opt.Type,
		}),
		Payload: payload,
	}
	if _, err := p.opts.Logs[part].Append(ctx, []eventlog.AppendRecord{rec}); err != nil {
		return fmt.Errorf("producer: append partition %d: %w", part, err)
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.EventsProduced.Inc()
		p.opts.Metrics.EventsAppended.WithLabelValues(p.opts.Logs[part].Stream()).Inc()
	}
	if p.opts.Out != nil {
		if _, err := p.opts.Out.Write(append(payload, '\n')); err != nil {
			return fmt.Errorf("producer: write line: %w", err)
		}
	}
	return nil
}
