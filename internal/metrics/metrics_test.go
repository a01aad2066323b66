package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	pebblestore "github.com/runnelhq/runnel/internal/storage/pebble"
)

func TestCountersRegisterAndIncrement(t *testing.T) {
	m := New()
	m.EventsProduced.Inc()
	m.EventsProduced.Inc()
	if got := testutil.ToFloat64(m.EventsProduced); got != 2 {
		t.Fatalf("events produced = %v, want 2", got)
	}

	m.HandlerFailures.WithLabelValues("persist", "transient").Inc()
	if got := testutil.ToFloat64(m.HandlerFailures.WithLabelValues("persist", "transient")); got != 1 {
		t.Fatalf("handler failures = %v, want 1", got)
	}
}

func TestStorageHookObservations(t *testing.T) {
	var hook pebblestore.MetricsHook = New()
	hook.ObserveWrite(2*time.Millisecond, 128)
	hook.ObserveRead(time.Millisecond, 64)
	hook.ObserveBatchCommit(3*time.Millisecond, 4, 512)

	families, err := hook.(*Metrics).Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	want := map[string]bool{
		"runnel_storage_write_seconds":        false,
		"runnel_storage_read_seconds":         false,
		"runnel_storage_batch_commit_seconds": false,
		"runnel_storage_write_bytes":          false,
		"runnel_storage_read_bytes":           false,
		"runnel_storage_batch_ops":            false,
		"runnel_storage_batch_bytes":          false,
	}
	for _, mf := range families {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("missing metric family %s", name)
		}
	}
}
