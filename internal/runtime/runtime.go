package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cfgpkg "github.com/runnelhq/runnel/internal/config"
	"github.com/runnelhq/runnel/internal/eventlog"
	"github.com/runnelhq/runnel/internal/metrics"
	pebblestore "github.com/runnelhq/runnel/internal/storage/pebble"
)

// Options for building the Runtime.
type Options struct {
	Config  cfgpkg.Config
	Metrics *metrics.Metrics
}

// Runtime wires storage, config, and metrics for a single-node instance.
// Opened logs are cached so every component shares one Log per
// (stream, partition).
type Runtime struct {
	db      *pebblestore.DB
	config  cfgpkg.Config
	metrics *metrics.Metrics

	mu   sync.Mutex
	logs map[string]*eventlog.Log
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	fsync, err := parseFsync(opts.Config.Fsync)
	if err != nil {
		return nil, err
	}
	storeOpts := pebblestore.Options{DataDir: opts.Config.DataDir, Fsync: fsync}
	if opts.Metrics != nil {
		storeOpts.Metrics = opts.Metrics
	}
	db, err := pebblestore.Open(storeOpts)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		db:      db,
		config:  opts.Config,
		metrics: opts.Metrics,
		logs:    make(map[string]*eventlog.Log),
	}, nil
}

func parseFsync(mode string) (pebblestore.FsyncMode, error) {
	switch mode {
	case "", "always":
		return pebblestore.FsyncModeAlways, nil
	case "interval":
		return pebblestore.FsyncModeInterval, nil
	case "never":
		return pebblestore.FsyncModeNever, nil
	default:
		return pebblestore.FsyncModeAlways, fmt.Errorf("runtime: unknown fsync mode %q", mode)
	}
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	return nil
}

// OpenLog opens (or returns the cached) event log for a stream partition.
func (r *Runtime) OpenLog(stream string, partition uint32) (*eventlog.Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%s/%d", stream, partition)
	if l, ok := r.logs[key]; ok {
		return l, nil
	}
	l, err := eventlog.OpenLog(r.db, stream, partition)
	if err != nil {
		return nil, err
	}
	r.logs[key] = l
	return l, nil
}

// OpenStream opens all partitions of a stream.
func (r *Runtime) OpenStream(stream string, partitions int) ([]*eventlog.Log, error) {
	logs := make([]*eventlog.Log, partitions)
	for p := 0; p < partitions; p++ {
		l, err := r.OpenLog(stream, uint32(p))
		if err != nil {
			return nil, err
		}
		logs[p] = l
	}
	return logs, nil
}

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Metrics returns the shared instruments, possibly nil.
func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }
