package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/runnelhq/runnel/internal/aggregate"
	"github.com/runnelhq/runnel/internal/dispatch"
	"github.com/runnelhq/runnel/internal/event"
	"github.com/runnelhq/runnel/internal/metrics"
	"github.com/runnelhq/runnel/pkg/log"
)

// Handler consumes alert events and delivers them through the configured
// sink. A short-lived dedup set keyed by (entity, window close) absorbs the
// duplicates that at-least-once redelivery produces.
type Handler struct {
	sink      Sink
	recipient string
	dedup     *dedupSet
	logger    log.Logger
	metrics   *metrics.Metrics
}

// NewHandler builds the notification handler.
func NewHandler(sink Sink, recipient string, dedupTTL time.Duration, logger log.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Handler{
		sink:      sink,
		recipient: recipient,
		dedup:     newDedupSet(dedupTTL),
		logger:    logger.WithComponent("notify"),
		metrics:   m,
	}
}

// Name implements dispatch.Handler.
func (h *Handler) Name() string { return "notify" }

// Handle implements dispatch.Handler. Undecodable alerts are permanent;
// sink failures are transient unless the recipient itself is invalid.
func (h *Handler) Handle(ctx context.Context, evs []event.Event) error {
	for i := range evs {
		alert, err := aggregate.DecodeAlert(evs[i].Payload)
		if err != nil {
			return dispatch.Permanent(fmt.Errorf("notify: decode alert seq %d: %w", evs[i].Seq, err))
		}
		key := alert.DedupKey()
		if h.dedup.Seen(key) {
			if h.metrics != nil {
				h.metrics.NotificationsDeduped.Inc()
			}
			h.logger.Debug("duplicate notification suppressed", log.Str("key", key))
			continue
		}
		if err := h.sink.Deliver(ctx, h.recipient, FormatMessage(alert)); err != nil {
			if h.metrics != nil {
				h.metrics.NotifierFailures.Inc()
			}
			if errors.Is(err, ErrInvalidRecipient) {
				return dispatch.Permanent(err)
			}
			return dispatch.Transient(err)
		}
		h.dedup.Mark(key)
		if h.metrics != nil {
			h.metrics.NotificationsSent.Inc()
		}
	}
	return nil
}

// FormatMessage renders the operator-facing notification text.
func FormatMessage(a aggregate.AlertEvent) string {
	return fmt.Sprintf("%s: product %s at %g (window closes %s)",
		a.Reason, a.ProductID, a.ObservedValue, a.WindowCloseTime)
}
