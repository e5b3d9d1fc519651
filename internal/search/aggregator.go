// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/foursight/internal/cache"
	"github.com/pdiddy/foursight/internal/rank"
	"github.com/pdiddy/foursight/internal/textutil"
	"github.com/pdiddy/foursight/internal/translate"
	"github.com/pdiddy/foursight/pkg/types"
)

// ErrAdapterPanic wraps a panic recovered from an adapter.
var ErrAdapterPanic = errors.New("adapter panicked")

// cacheContextRunes is how much of the business context enters cache keys.
const cacheContextRunes = 100

// Aggregator fans a query out to every adapter and merges the ranked
// per-source lists. Build one with NewAggregator and share it; it is safe
// for concurrent use.
type Aggregator struct {
	cfg        types.AggregatorConfig
	adapters   []Adapter
	cache      cache.Cache
	translator translate.Translator
	log        *zap.Logger
	metrics    *Metrics
	now        func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCache sets the result cache. Without it an in-memory cache built
// from cfg.Cache is used.
func WithCache(c cache.Cache) Option {
	return func(a *Aggregator) { a.cache = c }
}

// WithTranslator sets the query translator (default: the dictionary).
func WithTranslator(t translate.Translator) Option {
	return func(a *Aggregator) { a.translator = t }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(a *Aggregator) { a.log = log }
}

// WithMetrics records per-source statistics.
func WithMetrics(m *Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithClock sets the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator returns an aggregator over adapters, ordered by source.
func NewAggregator(cfg types.AggregatorConfig, adapters []Adapter, opts ...Option) *Aggregator {
	a := &Aggregator{
		cfg:      cfg,
		adapters: slices.Clone(adapters),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.translator == nil {
		a.translator = translate.NewDictionary()
	}
	if a.cache == nil {
		a.cache = cache.NewMemory(cfg.Cache, cache.WithClock(a.now), cache.WithLogger(a.log))
	}
	slices.SortStableFunc(a.adapters, func(x, y Adapter) int {
		return sourceOrder(x.Name()) - sourceOrder(y.Name())
	})
	return a
}

func sourceOrder(s types.Source) int {
	if i := slices.Index(types.Sources, s); i >= 0 {
		return i
	}
	return len(types.Sources)
}

// Adapters returns the adapters in aggregation order.
func (a *Aggregator) Adapters() []Adapter {
	return slices.Clone(a.adapters)
}

// GetContext queries every adapter concurrently and returns their ranked
// lists, each truncated to maxResults, plus their concatenation in source
// order. It never fails: sources that error, panic or miss the deadline
// contribute an empty list and an entry in Errors. A non-positive
// maxResults uses the per-source, then the global default.
func (a *Aggregator) GetContext(ctx context.Context, query string, maxResults int, businessContext string) types.AggregationResult {
	start := a.now()
	res := types.AggregationResult{
		Query:    query,
		Context:  businessContext,
		BySource: make(map[types.Source][]types.SearchRecord, len(a.adapters)),
		All:      []types.SearchRecord{},
	}
	for _, ad := range a.adapters {
		res.BySource[ad.Name()] = []types.SearchRecord{}
	}
	if strings.TrimSpace(query) == "" {
		a.log.Warn("empty query, skipping aggregation")
		return res
	}

	res.Translated = a.translate(ctx, query, businessContext)

	timeout := a.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	lists := make([][]types.SearchRecord, len(a.adapters))
	errs := make([]error, len(a.adapters))
	done := make([]bool, len(a.adapters))
	var mu sync.Mutex
	closed := false

	g, gctx := errgroup.WithContext(ctx)
	for i, ad := range a.adapters {
		q := Query{
			Text:       query,
			Translated: res.Translated,
			Context:    businessContext,
			MaxResults: a.limit(ad.Name(), maxResults),
		}
		g.Go(func() error {
			records, err := a.run(gctx, ad, q)
			mu.Lock()
			defer mu.Unlock()
			if !closed {
				lists[i], errs[i], done[i] = records, err, true
			}
			return nil
		})
	}

	// Adapters that ignore ctx are abandoned at the deadline; their late
	// results are discarded.
	waited := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
	}
	mu.Lock()
	closed = true
	for i := range a.adapters {
		if !done[i] {
			errs[i] = fmt.Errorf("no response before deadline: %w", ctx.Err())
		}
	}
	mu.Unlock()

	counts := make([]zap.Field, 0, len(a.adapters)+3)
	for i, ad := range a.adapters {
		name := ad.Name()
		if lists[i] != nil {
			res.BySource[name] = lists[i]
		}
		res.All = append(res.All, res.BySource[name]...)
		counts = append(counts, zap.Int(string(name), len(res.BySource[name])))

		if err := errs[i]; err != nil {
			if res.Errors == nil {
				res.Errors = make(map[types.Source]string)
			}
			res.Errors[name] = err.Error()
			if errors.Is(err, ErrNotConfigured) {
				a.log.Warn("source disabled: missing credential", zap.String("source", string(name)))
			} else {
				a.log.Warn("source failed", zap.String("source", string(name)), zap.Int("kept", len(lists[i])), zap.Error(err))
			}
		}
	}
	if a.cfg.GlobalRerank {
		res.All = rank.Rank(res.All)
	}

	res.Duration = a.now().Sub(start)
	a.metrics.observeAggregation(res.Duration)
	counts = append(counts,
		zap.String("query", query),
		zap.Int("total", len(res.All)),
		zap.Duration("duration", res.Duration))
	a.log.Info("aggregation complete", counts...)
	return res
}

// limit resolves the per-source result count.
func (a *Aggregator) limit(s types.Source, maxResults int) int {
	if maxResults > 0 {
		return maxResults
	}
	if n := a.cfg.Source(s).MaxResults; n > 0 {
		return n
	}
	if a.cfg.MaxResults > 0 {
		return a.cfg.MaxResults
	}
	return 5
}

// run serves one adapter from the cache or the network. Complete results
// are cached; partial results accompanied by an error are returned but
// not cached.
func (a *Aggregator) run(ctx context.Context, ad Adapter, q Query) (records []types.SearchRecord, err error) {
	name := ad.Name()
	key := cacheKey(name, q)
	if cached, ok := a.cache.Get(key); ok {
		a.log.Debug("cache hit", zap.String("source", string(name)), zap.Int("count", len(cached)))
		a.metrics.observeSource(name, OutcomeCached, 0, len(cached))
		return cached, nil
	}

	start := a.now()
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("%w: %v", ErrAdapterPanic, r)
			a.metrics.observeSource(name, OutcomePanic, a.now().Sub(start), 0)
		}
	}()

	raw, err := ad.Search(ctx, q)
	records = rank.Rank(raw)
	if len(records) > q.MaxResults {
		records = records[:q.MaxResults]
	}

	outcome := OutcomeOK
	switch {
	case errors.Is(err, ErrNotConfigured):
		outcome = OutcomeNotConfigured
	case err != nil:
		outcome = OutcomeError
	default:
		a.cache.Put(key, records)
	}
	a.metrics.observeSource(name, outcome, a.now().Sub(start), len(records))
	return records, err
}

// translate rewrites the query, falling back to the original text if the
// translator panics or returns nothing.
func (a *Aggregator) translate(ctx context.Context, query, hint string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("translator panicked", zap.Any("panic", r))
			out = query
		}
	}()
	out = strings.TrimSpace(a.translator.Translate(ctx, query, hint))
	if out == "" {
		return query
	}
	if out != query {
		a.log.Debug("query translated", zap.String("query", query), zap.String("translated", out))
	}
	return out
}

// cacheKey identifies one adapter call: the source, the original query,
// the result count and the start of the context.
func cacheKey(source types.Source, q Query) string {
	return cache.Key(source, q.Text, map[string]string{
		"max":     strconv.Itoa(q.MaxResults),
		"context": strings.ToLower(textutil.Truncate(strings.TrimSpace(q.Context), cacheContextRunes)),
	})
}
