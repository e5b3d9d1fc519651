// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank scores search records against a query and optional context,
// filters out low-relevance noise and orders the survivors. All weights
// come from types.RankConfig.
package rank

import (
	"cmp"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/foursight/internal/textutil"
	"github.com/pdiddy/foursight/pkg/types"
)

// Ranker scores records. It is safe for concurrent use.
type Ranker struct {
	cfg      types.RankConfig
	families []Family
	now      func() time.Time
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithClock sets the time source used for recency bonuses.
func WithClock(now func() time.Time) Option {
	return func(r *Ranker) { r.now = now }
}

// WithFamilies replaces the topic families used for co-location bonuses
// and dual-topic detection.
func WithFamilies(families ...Family) Option {
	return func(r *Ranker) { r.families = families }
}

// New returns a Ranker with the given weights.
func New(cfg types.RankConfig, opts ...Option) *Ranker {
	r := &Ranker{cfg: cfg, families: DefaultFamilies, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Config returns the ranker's weights.
func (r *Ranker) Config() types.RankConfig { return r.cfg }

// Families returns the topic families the ranker detects.
func (r *Ranker) Families() []Family { return r.families }

// Assessment is the outcome of scoring one record.
type Assessment struct {
	Score        float64
	Matched      int
	TitleMatched int
}

// Score returns the relevance of rec in [0,1].
func (r *Ranker) Score(rec types.SearchRecord, queryTerms, contextTerms []string) float64 {
	return r.Assess(rec, queryTerms, contextTerms).Score
}

// Assess scores rec and reports how many query terms it matched.
func (r *Ranker) Assess(rec types.SearchRecord, queryTerms, contextTerms []string) Assessment {
	cfg := r.cfg
	text := searchableText(rec)
	body := analyze(text)
	title := analyze(rec.Title)

	var a Assessment
	var score float64
	if len(queryTerms) == 0 {
		score = cfg.NeutralScore
	} else {
		a.Matched = body.count(queryTerms)
		a.TitleMatched = title.count(queryTerms)
		n := float64(len(queryTerms))
		score = float64(a.Matched)/n + cfg.TitleWeight*float64(a.TitleMatched)/n
	}

	if fa, fb, ok := r.dualFamilies(queryTerms); ok && coLocated(text, fa, fb) {
		score += cfg.CoLocationBonus
	}

	if len(contextTerms) > 0 {
		score += cfg.ContextWeight * float64(body.count(contextTerms)) / float64(len(contextTerms))
	}

	if votes := rec.Int(types.ExtraVotes); votes > 0 && cfg.VoteDivisor > 0 {
		score += cfg.PopularityWeight * math.Min(float64(votes)/cfg.VoteDivisor, cfg.VoteCap)
	}

	score += r.recency(rec.Published(), cfg.RecentBonus, cfg.FreshBonus)

	if q := body.count(qualityWords); q > 0 {
		score += cfg.QualityBonus * float64(min(q, 3)) / 3
	}

	if len(queryTerms) > 0 && a.Matched == 0 && len([]rune(rec.Snippet)) < cfg.ShortSnippetRunes {
		score -= cfg.ShortSnippetPenalty
	}

	a.Score = clamp(score)
	return a
}

// Annotate returns copies of records with RelevanceScore set.
func (r *Ranker) Annotate(records []types.SearchRecord, queryTerms, contextTerms []string) []types.SearchRecord {
	out := make([]types.SearchRecord, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
		out[i].RelevanceScore = r.Score(rec, queryTerms, contextTerms)
	}
	return out
}

// Filter keeps records scoring at least minScore. When queryTerms is
// non-empty, records matching none of them are dropped regardless of score.
func (r *Ranker) Filter(records []types.SearchRecord, queryTerms []string, minScore float64) []types.SearchRecord {
	out := make([]types.SearchRecord, 0, len(records))
	for _, rec := range records {
		if rec.RelevanceScore < minScore {
			continue
		}
		if len(queryTerms) > 0 && analyze(searchableText(rec)).count(queryTerms) == 0 {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Select annotates, filters and ranks records in one pass. A non-positive
// minScore uses the configured default.
func (r *Ranker) Select(records []types.SearchRecord, queryTerms, contextTerms []string, minScore float64) []types.SearchRecord {
	if minScore <= 0 {
		minScore = r.cfg.MinScore
	}
	return Rank(r.Filter(r.Annotate(records, queryTerms, contextTerms), queryTerms, minScore))
}

// SelectBest is Select for records that may be written in any of several
// phrasings of the query, such as the original text and its translation.
// Each record keeps its best score over termSets and survives the filter
// when it matches a term of any set. Empty sets are ignored.
func (r *Ranker) SelectBest(records []types.SearchRecord, termSets [][]string, contextTerms []string, minScore float64) []types.SearchRecord {
	if minScore <= 0 {
		minScore = r.cfg.MinScore
	}
	var union []string
	seen := make(map[string]bool)
	var sets [][]string
	for _, terms := range termSets {
		if len(terms) == 0 {
			continue
		}
		sets = append(sets, terms)
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				union = append(union, t)
			}
		}
	}
	if len(sets) == 0 {
		return r.Select(records, nil, contextTerms, minScore)
	}

	out := make([]types.SearchRecord, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
		best := r.Score(rec, sets[0], contextTerms)
		for _, terms := range sets[1:] {
			best = math.Max(best, r.Score(rec, terms, contextTerms))
		}
		out[i].RelevanceScore = best
	}
	return Rank(r.Filter(out, union, minScore))
}

// Matched counts the terms present in rec's searchable text.
func Matched(rec types.SearchRecord, terms []string) int {
	return analyze(searchableText(rec)).count(terms)
}

// Rank returns a new slice ordered by descending score. Ties break on
// title, then URL, then snippet, so the result does not depend on input
// order; records equal on all of these keep their relative order.
func Rank(records []types.SearchRecord) []types.SearchRecord {
	out := slices.Clone(records)
	if out == nil {
		out = []types.SearchRecord{}
	}
	slices.SortStableFunc(out, compareRecords)
	return out
}

func compareRecords(a, b types.SearchRecord) int {
	if c := cmp.Compare(b.RelevanceScore, a.RelevanceScore); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Title, b.Title); c != 0 {
		return c
	}
	if c := cmp.Compare(a.URL, b.URL); c != 0 {
		return c
	}
	return cmp.Compare(a.Snippet, b.Snippet)
}

// ProductScore scores a product-directory record on the directory's natural
// scale: one point per keyword hit, a title bonus per keyword found in the
// title, min(votes/divisor, cap) for popularity and a recency bonus.
func (r *Ranker) ProductScore(rec types.SearchRecord, keywords []string) float64 {
	cfg := r.cfg
	body := analyze(searchableText(rec))
	title := analyze(rec.Title)

	var score float64
	for _, k := range keywords {
		if body.has(k) {
			score++
			if title.has(k) {
				score += cfg.ProductTitleBonus
			}
		}
	}
	if votes := rec.Int(types.ExtraVotes); votes > 0 && cfg.VoteDivisor > 0 {
		score += math.Min(float64(votes)/cfg.VoteDivisor, cfg.VoteCap)
	}
	return score + r.recency(rec.Published(), cfg.ProductRecentBonus, cfg.ProductFreshBonus)
}

// DualTopicScore is the integer discussion-board relevance of a post for a
// query spanning families a and b. It is zero unless both families appear.
// Otherwise it starts at 2 when one sentence holds both (1 if not), adds
// one per family term present, 2 for each family present in the title and
// 3 more when the title holds both.
func DualTopicScore(title, body string, a, b Family) int {
	text := title + ". " + body
	d := analyze(text)
	if !d.hasAny(a.Terms) || !d.hasAny(b.Terms) {
		return 0
	}

	score := 1
	if coLocated(text, a, b) {
		score = 2
	}
	score += d.count(a.Terms) + d.count(b.Terms)

	t := analyze(title)
	titleA, titleB := t.hasAny(a.Terms), t.hasAny(b.Terms)
	if titleA {
		score += 2
	}
	if titleB {
		score += 2
	}
	if titleA && titleB {
		score += 3
	}
	return score
}

// Normalize maps a non-negative natural-scale score into [0,1) with
// x/(x+k), so integer and product scores sort alongside [0,1] scores. A
// non-positive x or k yields 0.
func Normalize(x, k float64) float64 {
	if x <= 0 || k <= 0 {
		return 0
	}
	return x / (x + k)
}

// DualFamilies reports the two topic families a query spans, if any.
func (r *Ranker) DualFamilies(query string) (Family, Family, bool) {
	return DualTopic(query, r.families)
}

func (r *Ranker) dualFamilies(queryTerms []string) (Family, Family, bool) {
	if len(queryTerms) < 2 {
		return Family{}, Family{}, false
	}
	return DualTopic(strings.Join(queryTerms, " "), r.families)
}

func (r *Ranker) recency(published time.Time, recent, fresh float64) float64 {
	if published.IsZero() {
		return 0
	}
	days := int(r.now().Sub(published).Hours() / 24)
	switch {
	case days < 0:
		return 0
	case days < r.cfg.RecentDays:
		return recent
	case days < r.cfg.FreshDays:
		return fresh
	}
	return 0
}

// coLocated reports whether one sentence of text holds a term of each
// family.
func coLocated(text string, a, b Family) bool {
	for _, s := range textutil.Sentences(text) {
		d := analyze(s)
		if d.hasAny(a.Terms) && d.hasAny(b.Terms) {
			return true
		}
	}
	return false
}

// searchableText joins the fields a record can match on: title, snippet
// and its tag-like extras.
func searchableText(rec types.SearchRecord) string {
	parts := []string{rec.Title, rec.Snippet}
	parts = append(parts, rec.StringList(types.ExtraCategories)...)
	parts = append(parts, rec.StringList(types.ExtraTopics)...)
	if sub := rec.String(types.ExtraSubreddit); sub != "" {
		parts = append(parts, sub)
	}
	return strings.Join(parts, " \n ")
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
