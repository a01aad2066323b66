package producer

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/runnelhq/runnel/internal/event"
	"github.com/runnelhq/runnel/internal/eventlog"
	pebblestore "github.com/runnelhq/runnel/internal/storage/pebble"
)

func newIngestLogs(t *testing.T, parts int) []*eventlog.Log {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	logs := make([]*eventlog.Log, parts)
	for p := 0; p < parts; p++ {
		l, err := eventlog.OpenLog(db, "ingest", uint32(p))
		if err != nil {
			t.Fatalf("open log %d: %v", p, err)
		}
		logs[p] = l
	}
	return logs
}

func TestChooseIsDeterministicGivenSeed(t *testing.T) {
	pool := DefaultPool()
	a := rand.New(rand.NewSource(7))
	b := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		if Choose(pool, a).Key() != Choose(pool, b).Key() {
			t.Fatalf("same seed diverged at pick %d", i)
		}
	}
}

func TestChooseCoversPool(t *testing.T) {
	pool := DefaultPool()
	rng := rand.New(rand.NewSource(1))
	seen := map[string]bool{}
	for i := 0; i < 5000; i++ {
		opt := Choose(pool, rng)
		seen[opt.Type+"|"+opt.Key()] = true
	}
	if len(seen) < 15 {
		t.Fatalf("distinct picks = %d, pool looks undersampled", len(seen))
	}
	if !seen["inventory|P-1004"] || !seen["http|/api/health"] {
		t.Fatalf("pool coverage hole")
	}
}

func TestEmitOneAppendsAndPrints(t *testing.T) {
	logs := newIngestLogs(t, 4)
	var out bytes.Buffer
	p, err := New(Options{Pool: DefaultPool(), Seed: 42, Logs: logs, Out: &out})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 20; i++ {
		if err := p.EmitOne(context.Background()); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	if len(lines) != 20 {
		t.Fatalf("stdout lines = %d, want 20", len(lines))
	}
	var rec map[string]interface{}
	if err := json.Unmarshal(lines[0], &rec); err != nil {
		t.Fatalf("line not JSON: %v", err)
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Fatalf("line missing timestamp: %v", rec)
	}

	total := 0
	for _, l := range logs {
		items, _ := l.Read(eventlog.ReadOptions{})
		total += len(items)
	}
	if total != 20 {
		t.Fatalf("appended = %d, want 20", total)
	}
}

func TestPartitionFollowsKey(t *testing.T) {
	logs := newIngestLogs(t, 4)
	pool := []Option{inventoryOption("P-1004", 3)}
	p, err := New(Options{Pool: pool, Seed: 1, Logs: logs})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := p.EmitOne(context.Background()); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	want := event.HashPartition("P-1004", 4)
	for part, l := range logs {
		items, _ := l.Read(eventlog.ReadOptions{})
		if uint32(part) == want && len(items) != 5 {
			t.Fatalf("partition %d has %d items, want 5", part, len(items))
		}
		if uint32(part) != want && len(items) != 0 {
			t.Fatalf("partition %d should be empty, has %d", part, len(items))
		}
	}
}

func TestLoadPool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.json")
	data := []byte(`[
  {"type":"http","attributes":{"method":"GET","path":"/ping","status_code":200,"message":"OK"}},
  {"type":"inventory","attributes":{"product_id":"Z-1","inventory":2}}
]`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	pool, err := LoadPool(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pool) != 2 {
		t.Fatalf("pool size = %d", len(pool))
	}
	if pool[0].Key() != "/ping" || pool[1].Key() != "Z-1" {
		t.Fatalf("keys: %q %q", pool[0].Key(), pool[1].Key())
	}

	if _, err := LoadPool(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`[]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadPool(empty); err == nil {
		t.Fatalf("expected error for empty pool")
	}
}
