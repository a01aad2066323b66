package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/runnelhq/runnel/internal/config"
)

func testConfig(t *testing.T) cfgpkg.Config {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestOpenCloseHealth(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(t)})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestOpenLogCaches(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(t)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	a, err := rt.OpenLog("ingest", 0)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	b, err := rt.OpenLog("ingest", 0)
	if err != nil {
		t.Fatalf("open log again: %v", err)
	}
	if a != b {
		t.Fatalf("expected cached log instance")
	}
	logs, err := rt.OpenStream("ingest", 4)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	if len(logs) != 4 || logs[0] != a {
		t.Fatalf("open stream should reuse cached partitions")
	}
}

func TestOpenRejectsBadFsync(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fsync = "sometimes"
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("expected error for bad fsync mode")
	}
}
