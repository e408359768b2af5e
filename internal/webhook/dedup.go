package webhook

import (
	"context"
	"sync"
	"time"
)

const (
	dedupTTL           = 24 * time.Hour
	dedupCleanInterval = time.Hour
)

// dedupStore remembers update ids so a redelivered update is processed once.
type dedupStore struct {
	m   sync.Map // update id -> unix seconds
	now func() time.Time
}

func newDedupStore() *dedupStore {
	return &dedupStore{now: time.Now}
}

// markSeen returns true if this is the first time the id is seen.
func (d *dedupStore) markSeen(id int) bool {
	_, loaded := d.m.LoadOrStore(id, d.now().Unix())
	return !loaded
}

func (d *dedupStore) forget(id int) {
	d.m.Delete(id)
}

func (d *dedupStore) sweep(ttl time.Duration) {
	cutoff := d.now().Add(-ttl).Unix()
	d.m.Range(func(key, value any) bool {
		if ts, ok := value.(int64); ok && ts < cutoff {
			d.m.Delete(key)
		}
		return true
	})
}

func (d *dedupStore) cleaner(ctx context.Context) {
	ticker := time.NewTicker(dedupCleanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep(dedupTTL)
		}
	}
}
