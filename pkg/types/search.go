// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the foursight context
// aggregator: the normalized search record, the aggregation result, and the
// configuration consumed by each stage.
package types

import (
	"maps"
	"slices"
	"time"
)

// Source identifies one external search provider.
type Source string

const (
	SourceWeb              Source = "web"
	SourceAcademicPreprint Source = "arxiv"
	SourceDiscussionBoard  Source = "reddit"
	SourceProductDirectory Source = "producthunt"
)

// Sources lists every known source in aggregation order. The aggregator
// concatenates per-source lists in this order.
var Sources = []Source{
	SourceWeb,
	SourceAcademicPreprint,
	SourceDiscussionBoard,
	SourceProductDirectory,
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	return slices.Contains(Sources, s)
}

// Label returns a human-readable name for tables and logs.
func (s Source) Label() string {
	switch s {
	case SourceWeb:
		return "Web"
	case SourceAcademicPreprint:
		return "arXiv"
	case SourceDiscussionBoard:
		return "Reddit"
	case SourceProductDirectory:
		return "Product Hunt"
	default:
		return string(s)
	}
}

// Kind drives downstream formatting of a record.
type Kind string

const (
	KindWeb     Kind = "web"
	KindPaper   Kind = "paper"
	KindSocial  Kind = "social"
	KindProduct Kind = "product"
)

// Well-known keys of SearchRecord.Extra. Adapters may add others.
const (
	ExtraAuthors         = "authors"
	ExtraCategories      = "categories"
	ExtraVotes           = "votes"
	ExtraComments        = "comments"
	ExtraTopics          = "topics"
	ExtraSubreddit       = "subreddit"
	ExtraWebsite         = "website"
	ExtraPDFURL          = "pdf_url"
	ExtraDOI             = "doi"
	ExtraUpdatedDate     = "updated_date"
	ExtraPrimaryCategory = "primary_category"
	ExtraJournalRef      = "journal_ref"
	ExtraComment         = "comment"
	ExtraArxivID         = "arxiv_id"
)

// UntitledPlaceholder is used when a source omits the title.
const UntitledPlaceholder = "Untitled"

// SnippetLimit caps SearchRecord.Snippet, in runes, including the ellipsis.
const SnippetLimit = 500

// DateLayout is the layout of SearchRecord.PublishedDate.
const DateLayout = "2006-01-02"

// SearchRecord is one normalized result from any source. Adapters produce
// records and never touch them again; ranking works on copies.
type SearchRecord struct {
	// Title is always populated (UntitledPlaceholder when missing upstream).
	Title string `json:"title" yaml:"title"`

	// URL is the canonical link. Some sources leave it empty.
	URL string `json:"url" yaml:"url"`

	// Snippet is a length-capped excerpt or summary.
	Snippet string `json:"snippet" yaml:"snippet"`

	// Source identifies the provider that produced the record.
	Source Source `json:"source" yaml:"source"`

	// Kind is the record category used by downstream formatting.
	Kind Kind `json:"kind" yaml:"kind"`

	// PublishedDate is a YYYY-MM-DD date when the source provides one.
	PublishedDate string `json:"published_date,omitempty" yaml:"published_date,omitempty"`

	// RelevanceScore is assigned by ranking and only meaningful within one
	// aggregation call.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// Extra carries source-specific fields (authors, votes, topics...). The
	// aggregator passes it through untouched.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Clone returns a copy whose Extra map (and any string slices inside it) is
// not shared with r.
func (r SearchRecord) Clone() SearchRecord {
	c := r
	if r.Extra != nil {
		c.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			if ss, ok := v.([]string); ok {
				v = slices.Clone(ss)
			}
			c.Extra[k] = v
		}
	}
	return c
}

// Published parses PublishedDate. The zero time is returned when the date
// is absent or malformed.
func (r SearchRecord) Published() time.Time {
	if r.PublishedDate == "" {
		return time.Time{}
	}
	t, err := time.Parse(DateLayout, r.PublishedDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// StringList returns the Extra value for key as a string slice.
func (r SearchRecord) StringList(key string) []string {
	switch v := r.Extra[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Int returns the Extra value for key as an int. JSON round-trips turn
// integers into float64, so both are accepted.
func (r SearchRecord) Int(key string) int {
	switch v := r.Extra[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// String returns the Extra value for key as a string.
func (r SearchRecord) String(key string) string {
	s, _ := r.Extra[key].(string)
	return s
}

// CloneRecords copies a record list so the result can be modified freely.
// A nil input yields an empty, non-nil slice.
func CloneRecords(records []SearchRecord) []SearchRecord {
	out := make([]SearchRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// AggregationResult is the response of one GetContext call. It is built
// fresh per call and never persisted by the aggregator.
type AggregationResult struct {
	// Query is the caller's query as given.
	Query string `json:"query" yaml:"query"`

	// Translated is the query after translation (equal to Query when no
	// rewrite was needed).
	Translated string `json:"translated,omitempty" yaml:"translated,omitempty"`

	// Context is the free-text business context.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`

	// BySource holds one ranked list per enabled source. Failed sources map
	// to an empty list.
	BySource map[Source][]SearchRecord `json:"by_source" yaml:"by_source"`

	// All is the concatenation of BySource in Sources order.
	All []SearchRecord `json:"all" yaml:"all"`

	// Errors records why a source contributed nothing, for observability.
	Errors map[Source]string `json:"errors,omitempty" yaml:"errors,omitempty"`

	// Duration is the wall time of the call.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Total returns the number of records across all sources.
func (a AggregationResult) Total() int {
	return len(a.All)
}

// SourceNames returns the keys of BySource in aggregation order.
func (a AggregationResult) SourceNames() []Source {
	var out []Source
	for _, s := range Sources {
		if _, ok := a.BySource[s]; ok {
			out = append(out, s)
		}
	}
	for _, s := range slices.Sorted(maps.Keys(a.BySource)) {
		if !s.Valid() {
			out = append(out, s)
		}
	}
	return out
}

// CacheEntry is one cached per-source result list.
type CacheEntry struct {
	Key      string         `json:"key"`
	Records  []SearchRecord `json:"records"`
	StoredAt time.Time      `json:"stored_at"`
}

// Expired reports whether the entry is older than ttl at now. A
// non-positive ttl never expires.
func (e CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(e.StoredAt) >= ttl
}
