// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pdiddy/foursight/pkg/types"
	"github.com/syndtr/goleveldb/leveldb"
	"go.uber.org/zap"
)

// LevelDB persists cache entries on disk so separate CLI invocations can
// reuse results within the TTL. Entries are stored as JSON.
type LevelDB struct {
	db  *leveldb.DB
	ttl time.Duration
	now func() time.Time
	log *zap.Logger
}

// OpenLevelDB opens (or creates) the database in dir.
func OpenLevelDB(dir string, ttl time.Duration, opts ...Option) (*LevelDB, error) {
	s := newSettings(opts)
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", dir, err)
	}
	return &LevelDB{db: db, ttl: ttl, now: s.now, log: s.log}, nil
}

// Get implements Cache.
func (l *LevelDB) Get(key string) ([]types.SearchRecord, bool) {
	entry, ok := l.entry(key)
	if !ok {
		return nil, false
	}
	return entry.Records, true
}

// entry loads the stored entry for key, dropping it when expired or
// unreadable.
func (l *LevelDB) entry(key string) (types.CacheEntry, bool) {
	data, err := l.db.Get([]byte(key), nil)
	if err != nil {
		if !errors.Is(err, leveldb.ErrNotFound) {
			l.log.Warn("reading cache entry", zap.String("key", key), zap.Error(err))
		}
		return types.CacheEntry{}, false
	}

	var entry types.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		l.log.Warn("decoding cache entry", zap.String("key", key), zap.Error(err))
		l.delete(key)
		return types.CacheEntry{}, false
	}
	if entry.Expired(l.now(), l.ttl) {
		l.delete(key)
		return types.CacheEntry{}, false
	}
	entry.Key = key
	return entry, true
}

// Put implements Cache. Write failures are logged; the cache is an
// optimisation and never fails a search.
func (l *LevelDB) Put(key string, records []types.SearchRecord) {
	data, err := json.Marshal(types.CacheEntry{Key: key, Records: records, StoredAt: l.now()})
	if err != nil {
		l.log.Warn("encoding cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := l.db.Put([]byte(key), data, nil); err != nil {
		l.log.Warn("writing cache entry", zap.String("key", key), zap.Error(err))
	}
}

// Close releases the database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

func (l *LevelDB) delete(key string) {
	if err := l.db.Delete([]byte(key), nil); err != nil {
		l.log.Debug("deleting cache entry", zap.String("key", key), zap.Error(err))
	}
}
