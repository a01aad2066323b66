// Package pebblestore wraps Pebble with fsync policy, snapshots, batches, and
// a metrics hook. Every durable structure in runnel (event log partitions,
// consumer cursors, stored items, dead letters, window markers) lives in one
// Pebble keyspace behind this wrapper.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(context.Background(), b)
//	b.Close()
package pebblestore
