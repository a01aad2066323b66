package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every instrument the engine exposes. Constructed once and
// shared; components hold the subset they touch.
type Metrics struct {
	Registry *prometheus.Registry

	EventsProduced   prometheus.Counter
	EventsAppended   *prometheus.CounterVec
	BatchesDelivered *prometheus.CounterVec
	HandlerFailures  *prometheus.CounterVec
	RetriesTotal     *prometheus.CounterVec
	DeadLetters      *prometheus.CounterVec
	CursorResets     *prometheus.CounterVec
	CursorLag        *prometheus.GaugeVec

	AlertsEmitted     prometheus.Counter
	WindowsClosed     prometheus.Counter
	NotificationsSent prometheus.Counter
	NotificationsDeduped prometheus.Counter
	NotifierFailures  prometheus.Counter

	ItemsStored prometheus.Counter
	TrimDeleted *prometheus.CounterVec

	storageWrites      prometheus.Histogram
	storageReads       prometheus.Histogram
	storageBatchCommit prometheus.Histogram
	storageWriteBytes  prometheus.Histogram
	storageReadBytes   prometheus.Histogram
	storageBatchOps    prometheus.Histogram
	storageBatchBytes  prometheus.Histogram
}

// New builds all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		EventsProduced: f.NewCounter(prometheus.CounterOpts{
			Name: "runnel_events_produced_total",
			Help: "Events emitted by the built-in producer",
		}),
		EventsAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "runnel_events_appended_total",
			Help: "Events appended per stream",
		}, []string{"stream"}),
		BatchesDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "runnel_batches_delivered_total",
			Help: "Batches successfully handled per consumer group",
		}, []string{"group"}),
		HandlerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "runnel_handler_failures_total",
			Help: "Handler errors per consumer group and class",
		}, []string{"group", "class"}),
		RetriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "runnel_retries_total",
			Help: "Redelivery attempts per consumer group",
		}, []string{"group"}),
		DeadLetters: f.NewCounterVec(prometheus.CounterOpts{
			Name: "runnel_dead_letters_total",
			Help: "Batches routed to the dead letter log per consumer group",
		}, []string{"group"}),
		CursorResets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "runnel_cursor_resets_total",
			Help: "Cursors reset to oldest after falling below the retention floor",
		}, []string{"group"}),
		CursorLag: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "runnel_cursor_lag",
			Help: "Entries between a group's cursor and the partition head",
		}, []string{"group", "partition"}),

		AlertsEmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "runnel_alerts_emitted_total",
			Help: "Alert events appended to the alerts stream",
		}),
		WindowsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "runnel_windows_closed_total",
			Help: "Aggregation windows closed",
		}),
		NotificationsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "runnel_notifications_sent_total",
			Help: "Notifications delivered to the sink",
		}),
		NotificationsDeduped: f.NewCounter(prometheus.CounterOpts{
			Name: "runnel_notifications_deduped_total",
			Help: "Notifications suppressed as duplicates",
		}),
		NotifierFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "runnel_notifier_failures_total",
			Help: "Notification attempts that failed",
		}),

		ItemsStored: f.NewCounter(prometheus.CounterOpts{
			Name: "runnel_items_stored_total",
			Help: "Items upserted into the persistence sink",
		}),
		TrimDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "runnel_trim_deleted_total",
			Help: "Log entries deleted by retention trims per stream",
		}, []string{"stream"}),

		storageWrites: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "runnel_storage_write_seconds",
			Help:    "Latency of single-key storage writes",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		storageReads: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "runnel_storage_read_seconds",
			Help:    "Latency of single-key storage reads",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		storageBatchCommit: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "runnel_storage_batch_commit_seconds",
			Help:    "Latency of storage batch commits",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		storageWriteBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "runnel_storage_write_bytes",
			Help:    "Size of single-key storage writes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}),
		storageReadBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "runnel_storage_read_bytes",
			Help:    "Size of single-key storage reads",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}),
		storageBatchOps: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "runnel_storage_batch_ops",
			Help:    "Operations per storage batch commit",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		storageBatchBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "runnel_storage_batch_bytes",
			Help:    "Size of storage batch commits",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}),
	}
}

// ObserveWrite implements pebblestore.MetricsHook.
func (m *Metrics) ObserveWrite(d time.Duration, bytes int) {
	m.storageWrites.Observe(d.Seconds())
	m.storageWriteBytes.Observe(float64(bytes))
}

// ObserveRead implements pebblestore.MetricsHook.
func (m *Metrics) ObserveRead(d time.Duration, bytes int) {
	m.storageReads.Observe(d.Seconds())
	m.storageReadBytes.Observe(float64(bytes))
}

// ObserveBatchCommit implements pebblestore.MetricsHook.
func (m *Metrics) ObserveBatchCommit(d time.Duration, numOps int, bytes int) {
	m.storageBatchCommit.Observe(d.Seconds())
	m.storageBatchOps.Observe(float64(numOps))
	m.storageBatchBytes.Observe(float64(bytes))
}
