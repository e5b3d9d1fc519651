// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores per-source result lists for a short TTL so repeated
// queries skip the network. Memory is the in-process tier, LevelDB the
// optional persistent tier and Tiered combines the two.
package cache

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/foursight/pkg/types"
	"go.uber.org/zap"
)

// DefaultTTL applies when a configuration leaves the TTL unset.
const DefaultTTL = 5 * time.Minute

// Cache maps keys to record lists. Implementations are safe for concurrent
// use and never hand out slices they keep internally.
type Cache interface {
	Get(key string) ([]types.SearchRecord, bool)
	Put(key string, records []types.SearchRecord)
}

// Key builds the cache key for one adapter call: the source, the lowercased
// query and the extra parameters sorted by name.
func Key(source types.Source, query string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(string(source))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.TrimSpace(query)))

	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	slices.Sort(names)
	for _, k := range names {
		fmt.Fprintf(&b, "|%s:%s", k, params[k])
	}
	return b.String()
}

// Option configures a cache tier.
type Option func(*settings)

type settings struct {
	now func() time.Time
	log *zap.Logger
}

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithLogger sets the logger used to report storage failures.
func WithLogger(log *zap.Logger) Option {
	return func(s *settings) { s.log = log }
}

func newSettings(opts []Option) settings {
	s := settings{now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// New builds the cache described by cfg: a Memory tier, fronting a LevelDB
// tier when cfg.Dir is set. The returned close function releases both.
func New(cfg types.CacheConfig, opts ...Option) (Cache, func() error, error) {
	mem := NewMemory(cfg, opts...)
	if cfg.SweepInterval > 0 {
		mem.StartSweeper(cfg.SweepInterval)
	}
	if cfg.Dir == "" {
		return mem, mem.Close, nil
	}

	disk, err := OpenLevelDB(cfg.Dir, cfg.TTL, opts...)
	if err != nil {
		mem.Close()
		return nil, nil, err
	}
	t := NewTiered(mem, disk)
	return t, func() error {
		mem.Close()
		return disk.Close()
	}, nil
}
