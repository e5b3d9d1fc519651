// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/pdiddy/foursight/pkg/types"
	"go.uber.org/zap"
)

// Memory is a mutex-guarded TTL cache bounded by entry count. Expiry is
// checked on read; an optional sweeper removes stale entries in the
// background. The least recently used entry is evicted when full.
type Memory struct {
	mu    sync.Mutex
	ttl   time.Duration
	max   int
	ll    *list.List
	items map[string]*list.Element

	now func() time.Time
	log *zap.Logger

	sweepOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewMemory returns an empty memory cache. A zero TTL uses DefaultTTL; a
// zero MaxEntries leaves the cache unbounded.
func NewMemory(cfg types.CacheConfig, opts ...Option) *Memory {
	s := newSettings(opts)
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:   ttl,
		max:   cfg.MaxEntries,
		ll:    list.New(),
		items: make(map[string]*list.Element),
		now:   s.now,
		log:   s.log,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Get returns a copy of the records stored under key. Expired entries are
// removed and reported as absent.
func (m *Memory) Get(key string) ([]types.SearchRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*types.CacheEntry)
	if entry.Expired(m.now(), m.ttl) {
		m.removeElement(el)
		return nil, false
	}
	m.ll.MoveToFront(el)
	return types.CloneRecords(entry.Records), true
}

// Put stores a copy of records under key, evicting the least recently used
// entry when the cache is full.
func (m *Memory) Put(key string, records []types.SearchRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(types.CacheEntry{Key: key, Records: types.CloneRecords(records), StoredAt: m.now()})
}

// putEntry stores an entry keeping its original timestamp. Tiered uses it
// to promote disk hits without extending their lifetime.
func (m *Memory) putEntry(entry types.CacheEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.Records = types.CloneRecords(entry.Records)
	m.put(entry)
}

func (m *Memory) put(entry types.CacheEntry) {
	if el, ok := m.items[entry.Key]; ok {
		el.Value = &entry
		m.ll.MoveToFront(el)
		return
	}
	m.items[entry.Key] = m.ll.PushFront(&entry)
	for m.max > 0 && m.ll.Len() > m.max {
		oldest := m.ll.Back()
		m.log.Debug("evicting cache entry", zap.String("key", oldest.Value.(*types.CacheEntry).Key))
		m.removeElement(oldest)
	}
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}

// Sweep removes every expired entry and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for el := m.ll.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*types.CacheEntry).Expired(now, m.ttl) {
			m.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

// StartSweeper runs Sweep every interval until Close. Only the first call
// starts a goroutine.
func (m *Memory) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}
	m.sweepOnce.Do(func() {
		go func() {
			defer close(m.done)
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				select {
				case <-m.stop:
					return
				case <-t.C:
					if n := m.Sweep(); n > 0 {
						m.log.Debug("swept expired cache entries", zap.Int("count", n))
					}
				}
			}
		}()
	})
}

// Close stops the sweeper, if running, and waits for it to exit.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
		started := true
		m.sweepOnce.Do(func() { started = false })
		if started {
			<-m.done
		}
	})
	return nil
}

func (m *Memory) removeElement(el *list.Element) {
	m.ll.Remove(el)
	delete(m.items, el.Value.(*types.CacheEntry).Key)
}
