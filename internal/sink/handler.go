package sink

import (
	"context"
	"fmt"

	"github.com/runnelhq/runnel/internal/dispatch"
	"github.com/runnelhq/runnel/internal/event"
	"github.com/runnelhq/runnel/internal/metrics"
	"github.com/runnelhq/runnel/pkg/log"
)

// Handler projects each event of a batch into the store. Storage failures
// are transient (the dispatcher retries); a record the projection cannot
// key is permanent and dead-letters.
type Handler struct {
	store   *Store
	logger  log.Logger
	metrics *metrics.Metrics
}

// NewHandler builds the persistence handler.
func NewHandler(store *Store, logger log.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Handler{store: store, logger: logger.WithComponent("sink"), metrics: m}
}

// Name implements dispatch.Handler.
func (h *Handler) Name() string { return "persist" }

// Handle implements dispatch.Handler.
func (h *Handler) Handle(ctx context.Context, evs []event.Event) error {
	items := make([]StoredItem, 0, len(evs))
	for i := range evs {
		item := ItemFromEvent(&evs[i])
		if item.SK == "" {
			return dispatch.Permanent(fmt.Errorf("sink: event seq %d has no usable timestamp", evs[i].Seq))
		}
		items = append(items, item)
	}
	if err := h.store.PutBatch(ctx, items); err != nil {
		return dispatch.Transient(fmt.Errorf("sink: write batch: %w", err))
	}
	if h.metrics != nil {
		h.metrics.ItemsStored.Add(float64(len(items)))
	}
	h.logger.Debug("batch persisted", log.Int("items", len(items)))
	return nil
}
