package serverrun

import (
	"context"
	"testing"
	"time"

	cfgpkg "github.com/runnelhq/runnel/internal/config"
)

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Streams.Partitions = 0
	if err := Run(context.Background(), Options{Config: cfg}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRunRejectsBadLogConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Logging.Format = "xml"
	if err := Run(context.Background(), Options{Config: cfg}); err == nil {
		t.Fatalf("expected log config error")
	}
}

// TestRunStartsAndDrains starts the full stack on an ephemeral port and
// cancels it shortly after. Run should return nil on clean shutdown.
func TestRunStartsAndDrains(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Fsync = "never"

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := Run(ctx, Options{Config: cfg}); err != nil {
		t.Fatalf("run: %v", err)
	}
}
