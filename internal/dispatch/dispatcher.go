package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/runnelhq/runnel/internal/event"
	"github.com/runnelhq/runnel/internal/eventlog"
	"github.com/runnelhq/runnel/internal/metrics"
	"github.com/runnelhq/runnel/pkg/log"
)

// Handler consumes batches of events for one consumer group. A nil return
// advances the group's cursor past the batch; an error triggers the retry
// policy. Handlers must tolerate redelivery.
type Handler interface {
	Name() string
	Handle(ctx context.Context, evs []event.Event) error
}

// Options configures a Dispatcher.
type Options struct {
	Group        string
	Handler      Handler
	Logs         []*eventlog.Log // one per partition, indexed by partition
	DeadLetters  []*eventlog.Log // parallel to Logs
	Policy       RetryPolicy
	BatchSize    int
	PollInterval time.Duration
	Logger       log.Logger
	Metrics      *metrics.Metrics
}

// Dispatcher drives one consumer group over every partition of a stream.
// Each partition gets its own worker goroutine; ordering holds within a
// partition, never across partitions. Delivery is at-least-once: the cursor
// commits only after the handler (or the dead letter path) finishes.
type Dispatcher struct {
	opts   Options
	logger log.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New validates opts and builds a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Handler == nil {
		return nil, errors.New("dispatch: handler is required")
	}
	if opts.Group == "" {
		return nil, errors.New("dispatch: group is required")
	}
	if len(opts.Logs) == 0 {
		return nil, errors.New("dispatch: at least one partition log is required")
	}
	if len(opts.DeadLetters) != len(opts.Logs) {
		return nil, fmt.Errorf("dispatch: %d dead letter logs for %d partitions", len(opts.DeadLetters), len(opts.Logs))
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.Policy.Type == "" {
		opts.Policy = DefaultRetryPolicy()
	}
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy.MaxAttempts = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Dispatcher{
		opts:   opts,
		logger: logger.WithComponent("dispatch." + opts.Group),
	}, nil
}

// Start launches one worker per partition. Workers run until Stop or ctx
// cancellation; in-flight batches drain before Start's context is considered
// done.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	for p, l := range d.opts.Logs {
		d.wg.Add(1)
		go func(part int, l, dlq *eventlog.Log) {
			defer d.wg.Done()
			d.runPartition(ctx, part, l, dlq)
		}(p, l, d.opts.DeadLetters[p])
	}
}

// Stop cancels the workers and waits for in-flight batches to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

func (d *Dispatcher) runPartition(ctx context.Context, part int, l, dlq *eventlog.Log) {
	group := d.opts.Group
	tok, _ := l.GetCursor(group)

	for ctx.Err() == nil {
		items, next, err := l.ReadBatch(tok, d.opts.BatchSize)
		if errors.Is(err, eventlog.ErrCursorOutOfRange) {
			// Retention passed the cursor. Resume from the oldest retained
			// entry and surface the gap.
			d.logger.Warn("cursor behind retention floor, resetting to oldest",
				log.Int("partition", part),
				log.Uint64("was", tok.Seq()),
				log.Uint64("now", l.OldestSeq()))
			if d.opts.Metrics != nil {
				d.opts.Metrics.CursorResets.WithLabelValues(group).Inc()
			}
		} else if err != nil {
			d.logger.Error("read batch", log.Err(err), log.Int("partition", part))
			if !sleepCtx(ctx, d.opts.PollInterval) {
				return
			}
			continue
		}

		if len(items) == 0 {
			l.WaitForAppend(d.opts.PollInterval)
			continue
		}

		evs, ok := d.decode(ctx, part, dlq, items)
		if !ok {
			// A malformed record could not be dead lettered; keep the
			// cursor so nothing is lost.
			if !sleepCtx(ctx, d.opts.PollInterval) {
				return
			}
			continue
		}
		if len(evs) > 0 && !d.deliver(ctx, part, dlq, evs) {
			// Batch unresolved: shutdown mid-flight or dead letter append
			// failure. Leave the cursor so the batch is redelivered.
			if ctx.Err() != nil {
				return
			}
			if !sleepCtx(ctx, d.opts.PollInterval) {
				return
			}
			continue
		}

		if cerr := l.CommitCursor(group, next); cerr != nil {
			d.logger.Error("commit cursor", log.Err(cerr), log.Int("partition", part))
			if !sleepCtx(ctx, d.opts.PollInterval) {
				return
			}
			continue
		}
		tok = next

		if d.opts.Metrics != nil {
			lag := l.LastSeq() + 1 - next.Seq()
			d.opts.Metrics.CursorLag.WithLabelValues(group, strconv.Itoa(part)).Set(float64(lag))
		}
	}
}

// decode turns stored items into events. A record that fails to decode is a
// data error, never a transient fault: it goes straight to the dead letter
// log with its raw payload so the cursor can advance without dropping it.
// Returns ok=false when a dead letter append failed.
func (d *Dispatcher) decode(ctx context.Context, part int, dlq *eventlog.Log, items []eventlog.Item) ([]event.Event, bool) {
	evs := make([]event.Event, 0, len(items))
	for _, it := range items {
		ev, err := event.Decode(uint32(part), it.Seq, it.Header, it.Payload)
		if err != nil {
			d.logger.Warn("undecodable record dead lettered",
				log.Int("partition", part), log.Uint64("seq", it.Seq), log.Err(err))
			if !d.deadLetter(ctx, dlq, []event.Event{ev}, err, 1) {
				return nil, false
			}
			continue
		}
		evs = append(evs, ev)
	}
	return evs, true
}

// deliver runs the handler with retries, dead-lettering on permanent errors
// or retry exhaustion. It returns false when the batch was not resolved
// (shutdown mid-flight, or the dead letter append itself failed) so the
// caller keeps the cursor in place.
func (d *Dispatcher) deliver(ctx context.Context, part int, dlq *eventlog.Log, evs []event.Event) bool {
	group := d.opts.Group
	var lastErr error
	for attempt := 1; attempt <= d.opts.Policy.MaxAttempts; attempt++ {
		err := d.opts.Handler.Handle(ctx, evs)
		if err == nil {
			if d.opts.Metrics != nil {
				d.opts.Metrics.BatchesDelivered.WithLabelValues(group).Inc()
			}
			return true
		}
		lastErr = err
		if d.opts.Metrics != nil {
			d.opts.Metrics.HandlerFailures.WithLabelValues(group, Classify(err)).Inc()
		}
		if IsPermanent(err) {
			d.logger.Error("permanent handler failure",
				log.Err(err), log.Int("partition", part), log.Int("batch", len(evs)))
			return d.deadLetter(ctx, dlq, evs, err, attempt)
		}
		if attempt == d.opts.Policy.MaxAttempts {
			break
		}
		backoff := ComputeBackoff(d.opts.Policy, attempt)
		d.logger.Warn("handler failed, retrying",
			log.Err(err), log.Int("partition", part),
			log.Int("attempt", attempt), log.Dur("backoff", backoff))
		if d.opts.Metrics != nil {
			d.opts.Metrics.RetriesTotal.WithLabelValues(group).Inc()
		}
		if !sleepCtx(ctx, backoff) {
			return false
		}
	}
	d.logger.Error("retries exhausted, dead lettering batch",
		log.Err(lastErr), log.Int("partition", part),
		log.Int("attempts", d.opts.Policy.MaxAttempts), log.Int("batch", len(evs)))
	return d.deadLetter(ctx, dlq, evs, lastErr, d.opts.Policy.MaxAttempts)
}

func (d *Dispatcher) deadLetter(ctx context.Context, dlq *eventlog.Log, evs []event.Event, cause error, attempts int) bool {
	stream := ""
	if len(d.opts.Logs) > 0 {
		stream = d.opts.Logs[0].Stream()
	}
	if err := appendDeadLetters(ctx, dlq, d.opts.Group, stream, evs, cause.Error(), attempts); err != nil {
		d.logger.Error("dead letter append failed", log.Err(err))
		return false
	}
	if d.opts.Metrics != nil {
		d.opts.Metrics.DeadLetters.WithLabelValues(d.opts.Group).Add(float64(len(evs)))
	}
	return true
}

// sleepCtx sleeps for d or until ctx is done. Returns false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
