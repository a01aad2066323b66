package notify

import (
	"sync"
	"time"
)

// dedupSet suppresses repeat notifications for a bounded time. Keys expire
// after the TTL so the set cannot grow without bound under churny entities.
// Marking happens only after a successful delivery, so a failed attempt
// stays eligible for retry.
type dedupSet struct {
	mu    sync.Mutex
	ttl   time.Duration
	seen  map[string]time.Time
	nowFn func() time.Time
}

func newDedupSet(ttl time.Duration) *dedupSet {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &dedupSet{ttl: ttl, seen: make(map[string]time.Time), nowFn: time.Now}
}

// Seen reports whether key was marked within the TTL.
func (d *dedupSet) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.seen[key]
	return ok && d.nowFn().Sub(at) < d.ttl
}

// Mark records key and expires stale entries.
func (d *dedupSet) Mark(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.nowFn()
	for k, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, k)
		}
	}
	d.seen[key] = now
}
