package aggregate

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/runnelhq/runnel/internal/dispatch"
	"github.com/runnelhq/runnel/internal/event"
	"github.com/runnelhq/runnel/internal/eventlog"
	"github.com/runnelhq/runnel/internal/metrics"
	pebblestore "github.com/runnelhq/runnel/internal/storage/pebble"
	"github.com/runnelhq/runnel/pkg/log"
)

// Options configures an Aggregator.
type Options struct {
	// EventType selects which events feed the aggregation; others pass
	// through untouched.
	EventType string
	// EntityAttr names the attribute that identifies the watched entity.
	EntityAttr string
	// ValueAttr names the scalar attribute reported in the alert.
	ValueAttr string
	// Reason labels emitted alerts, e.g. "LOW_STOCK".
	Reason string
	// Predicate is the CEL expression a qualifying event must satisfy.
	Predicate string
	// WindowSize is the tumbling window length.
	WindowSize time.Duration
	// Dedup emits one alert per (entity, window). When false every
	// qualifying event alerts, matching the raw continuous-query behavior.
	Dedup bool

	Alerts  *eventlog.Log // single-partition alerts stream
	DB      *pebblestore.DB
	Logger  log.Logger
	Metrics *metrics.Metrics
	// NowMs is overridable for tests.
	NowMs func() int64
}

// Aggregator evaluates the predicate per incoming event and emits at most
// one alert per (entity, window). Emitted windows are marked in the store,
// so at-least-once redelivery of an input batch does not duplicate alerts.
type Aggregator struct {
	opts   Options
	pred   Predicate
	logger log.Logger

	mu      sync.Mutex
	windows map[string]*WindowState
}

// New compiles the predicate and builds an Aggregator.
func New(opts Options) (*Aggregator, error) {
	if opts.Alerts == nil {
		return nil, errors.New("aggregate: alerts log is required")
	}
	if opts.DB == nil {
		return nil, errors.New("aggregate: db is required")
	}
	if opts.EventType == "" {
		opts.EventType = "inventory"
	}
	if opts.EntityAttr == "" {
		opts.EntityAttr = "product_id"
	}
	if opts.ValueAttr == "" {
		opts.ValueAttr = "inventory"
	}
	if opts.Reason == "" {
		opts.Reason = "LOW_STOCK"
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = time.Minute
	}
	if opts.NowMs == nil {
		opts.NowMs = func() int64 { return time.Now().UnixMilli() }
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	pred, err := NewPredicate(opts.Predicate)
	if err != nil {
		return nil, fmt.Errorf("aggregate: compile predicate: %w", err)
	}
	return &Aggregator{
		opts:    opts,
		pred:    pred,
		logger:  logger.WithComponent("aggregate"),
		windows: make(map[string]*WindowState),
	}, nil
}

// Name implements dispatch.Handler.
func (a *Aggregator) Name() string { return "aggregate" }

// Handle implements dispatch.Handler. Input events that are not the watched
// type, lack the entity attribute, or fail the predicate pass through with
// no state change.
func (a *Aggregator) Handle(ctx context.Context, evs []event.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range evs {
		ev := &evs[i]
		if ev.Type() != a.opts.EventType {
			continue
		}
		entity := ev.Str(a.opts.EntityAttr)
		if entity == "" {
			continue
		}
		value, _ := ev.Num(a.opts.ValueAttr)

		start := windowStart(ev.TimestampMs, a.opts.WindowSize)
		st := a.windows[entity]
		if st == nil || st.StartMs != start {
			if st != nil && a.opts.Metrics != nil {
				a.opts.Metrics.WindowsClosed.Inc()
			}
			st = &WindowState{
				Entity:  entity,
				StartMs: start,
				EndMs:   start + a.opts.WindowSize.Milliseconds(),
			}
			a.windows[entity] = st
		}

		if !a.pred.Eval(ev) {
			continue
		}
		st.Qualifying++
		st.LastValue = value

		if a.opts.Dedup {
			if st.Fired {
				continue
			}
			fired, err := a.markerExists(entity, start)
			if err != nil {
				return dispatch.Transient(fmt.Errorf("aggregate: read window marker: %w", err))
			}
			if fired {
				st.Fired = true
				continue
			}
		}

		if err := a.emit(ctx, st); err != nil {
			return dispatch.Transient(fmt.Errorf("aggregate: emit alert: %w", err))
		}
	}
	return nil
}

// Flush closes every open window. Windows that already fired just drop
// state; pending aggregates emit nothing because alerts are driven by
// qualifying events, not by window closure.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opts.Metrics != nil {
		a.opts.Metrics.WindowsClosed.Add(float64(len(a.windows)))
	}
	a.windows = make(map[string]*WindowState)
}

func (a *Aggregator) emit(ctx context.Context, st *WindowState) error {
	alert := AlertEvent{
		ProductID:       st.Entity,
		ObservedValue:   st.LastValue,
		Reason:          a.opts.Reason,
		WindowCloseMs:   st.EndMs,
		WindowCloseTime: event.FormatTimestamp(st.EndMs),
	}
	payload, err := alert.Encode()
	if err != nil {
		return err
	}
	rec := eventlog.AppendRecord{
		Header: event.EncodeHeader(a.opts.NowMs(), map[string]string{
			event.HeaderKey:  st.Entity,
			event.HeaderType: EventTypeAlert,
		}),
		Payload: payload,
	}
	if _, err := a.opts.Alerts.Append(ctx, []eventlog.AppendRecord{rec}); err != nil {
		return err
	}
	if a.opts.Dedup {
		if err := a.putMarker(st.Entity, st.StartMs); err != nil {
			return err
		}
		st.Fired = true
	}
	if a.opts.Metrics != nil {
		a.opts.Metrics.AlertsEmitted.Inc()
	}
	a.logger.Info("alert emitted",
		log.Str("entity", st.Entity),
		log.Float64("observed", st.LastValue),
		log.Str("reason", a.opts.Reason),
		log.Str("window_close", alert.WindowCloseTime))
	return nil
}

var windowMarkerPrefix = []byte("window/")

func markerKey(entity string, startMs int64) []byte {
	k := make([]byte, 0, len(windowMarkerPrefix)+len(entity)+9)
	k = append(k, windowMarkerPrefix...)
	k = append(k, entity...)
	k = append(k, 0x00)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(startMs))
	return append(k, b[:]...)
}

func (a *Aggregator) markerExists(entity string, startMs int64) (bool, error) {
	_, err := a.opts.DB.Get(markerKey(entity, startMs))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pebblestore.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (a *Aggregator) putMarker(entity string, startMs int64) error {
	return a.opts.DB.Set(markerKey(entity, startMs), []byte{1})
}
