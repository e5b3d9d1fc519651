// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import "github.com/pdiddy/foursight/pkg/types"

// Tiered reads memory first and falls back to disk, promoting disk hits
// into memory with their original timestamp. Writes go to both tiers.
type Tiered struct {
	mem  *Memory
	disk *LevelDB
}

// NewTiered combines a memory tier and a disk tier.
func NewTiered(mem *Memory, disk *LevelDB) *Tiered {
	return &Tiered{mem: mem, disk: disk}
}

// Get implements Cache.
func (t *Tiered) Get(key string) ([]types.SearchRecord, bool) {
	if recs, ok := t.mem.Get(key); ok {
		return recs, true
	}
	entry, ok := t.disk.entry(key)
	if !ok {
		return nil, false
	}
	t.mem.putEntry(entry)
	return types.CloneRecords(entry.Records), true
}

// Put implements Cache.
func (t *Tiered) Put(key string, records []types.SearchRecord) {
	t.mem.Put(key, records)
	t.disk.Put(key, records)
}
