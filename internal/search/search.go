// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries external sources and aggregates their normalized,
// ranked results. Each source sits behind the Adapter interface; the
// Aggregator fans a query out to every adapter and merges what comes back.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/pdiddy/foursight/internal/httputil"
	"github.com/pdiddy/foursight/internal/rank"
	"github.com/pdiddy/foursight/internal/textutil"
	"github.com/pdiddy/foursight/pkg/types"
)

// ErrNotConfigured is returned by adapters whose credential is missing.
// The aggregator treats it as a warning and reports an empty list.
var ErrNotConfigured = errors.New("source not configured")

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 8 << 20

// Adapter searches a single external source. Search returns whatever
// records it could build together with the cause of any failure; the
// records are ranked and must not be modified by the caller.
type Adapter interface {
	Name() types.Source
	Kind() types.Kind
	Search(ctx context.Context, q Query) ([]types.SearchRecord, error)
}

// Query holds the parameters of one adapter call.
type Query struct {
	// Text is the caller's query as given.
	Text string

	// Translated is Text rewritten for sources that prefer English. Empty
	// means no translation was attempted.
	Translated string

	// Context is the free-text business context used for scoring.
	Context string

	// MaxResults is the number of records the caller wants back.
	MaxResults int
}

// Effective returns the translated text when present, otherwise Text.
func (q Query) Effective() string {
	if t := strings.TrimSpace(q.Translated); t != "" {
		return t
	}
	return strings.TrimSpace(q.Text)
}

// IsEmpty reports whether the query contains no searchable text.
func (q Query) IsEmpty() bool {
	return q.Effective() == ""
}

// limit returns MaxResults, defaulting to 5.
func (q Query) limit() int {
	if q.MaxResults <= 0 {
		return 5
	}
	return q.MaxResults
}

// terms returns the significant terms of the effective query and of the
// context.
func (q Query) terms() (query, context []string) {
	return rank.Terms(q.Effective()), rank.Terms(q.Context)
}

// Env carries the collaborators every adapter shares: the HTTP client, the
// ranker, the logger and the clock. The zero value is usable.
type Env struct {
	Client *http.Client
	HTTP   types.HTTPConfig
	Ranker *rank.Ranker
	Log    *zap.Logger
	Now    func() time.Time
}

func (e Env) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e Env) ranker() *rank.Ranker {
	if e.Ranker == nil {
		return rank.New(types.DefaultRankConfig(), rank.WithClock(e.now))
	}
	return e.Ranker
}

// fetch sends req through the retry wrapper and returns the body.
func (e Env) fetch(ctx context.Context, req *http.Request, headers map[string]string) ([]byte, error) {
	if e.HTTP.UserAgent != "" {
		req.Header.Set("User-Agent", e.HTTP.UserAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httputil.DoWithRetry(ctx, e.Client, req, e.HTTP.MaxAttempts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// get issues a GET request and returns the body.
func (e Env) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return e.fetch(ctx, req, headers)
}

// postJSON encodes payload, POSTs it and decodes the JSON response into out.
func (e Env) postJSON(ctx context.Context, url string, headers map[string]string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := e.fetch(ctx, req, headers)
	if err != nil {
		return err
	}
	return decodeJSON(body, out)
}

func decodeJSON(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// decodeEach unmarshals every raw entry of a provider response into T.
// Malformed entries are logged and skipped; the rest are returned in order.
func decodeEach[T any](log *zap.Logger, source types.Source, raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for i, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			log.Warn("skipping malformed entry",
				zap.String("source", string(source)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out
}

// newRecord builds a record with a cleaned title and a capped snippet.
func newRecord(source types.Source, kind types.Kind, title, url, snippet string) types.SearchRecord {
	return types.SearchRecord{
		Title:   textutil.TitleOrPlaceholder(textutil.PlainText(title), types.UntitledPlaceholder),
		URL:     strings.TrimSpace(url),
		Snippet: textutil.Snippet(snippet, types.SnippetLimit),
		Source:  source,
		Kind:    kind,
	}
}

// setExtra stores v under key, skipping empty values.
func setExtra(rec *types.SearchRecord, key string, v any) {
	switch x := v.(type) {
	case string:
		if x == "" {
			return
		}
	case []string:
		if len(x) == 0 {
			return
		}
	case int:
		if x == 0 {
			return
		}
	case nil:
		return
	}
	if rec.Extra == nil {
		rec.Extra = make(map[string]any)
	}
	rec.Extra[key] = v
}

// deduplicate drops records that repeat an earlier URL or normalized
// title. The first occurrence wins; empty fields are filled from the
// duplicate and the higher score is kept.
func deduplicate(records []types.SearchRecord) ([]types.SearchRecord, int) {
	seen := make(map[string]int)
	deduped := make([]types.SearchRecord, 0, len(records))
	removed := 0

	for _, r := range records {
		urlKey := ""
		if r.URL != "" {
			urlKey = "url:" + strings.TrimSuffix(strings.ToLower(r.URL), "/")
		}
		titleKey := ""
		if r.Title != types.UntitledPlaceholder {
			if t := normalizeTitle(r.Title); t != "" {
				titleKey = "title:" + t
			}
		}

		idx, dup := -1, false
		if urlKey != "" {
			idx, dup = seen[urlKey]
		}
		if !dup && titleKey != "" {
			idx, dup = seen[titleKey]
		}
		if dup {
			mergeInto(&deduped[idx], r)
			removed++
			continue
		}

		idx = len(deduped)
		deduped = append(deduped, r)
		if urlKey != "" {
			seen[urlKey] = idx
		}
		if titleKey != "" {
			seen[titleKey] = idx
		}
	}
	return deduped, removed
}

// mergeInto fills empty fields of dst from src and keeps the higher score.
func mergeInto(dst *types.SearchRecord, src types.SearchRecord) {
	if dst.URL == "" {
		dst.URL = src.URL
	}
	if dst.Snippet == "" {
		dst.Snippet = src.Snippet
	}
	if dst.PublishedDate == "" {
		dst.PublishedDate = src.PublishedDate
	}
	if src.RelevanceScore > dst.RelevanceScore {
		dst.RelevanceScore = src.RelevanceScore
	}
	for k, v := range src.Extra {
		if _, ok := dst.Extra[k]; !ok {
			setExtra(dst, k, v)
		}
	}
}

// normalizeTitle returns a lowercased, punctuation-stripped title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NewAdapters builds one adapter per enabled source in aggregation order.
// Sources that need a credential are built even without one; they report
// ErrNotConfigured when searched.
func NewAdapters(cfg types.AggregatorConfig, env Env) []Adapter {
	if env.Client == nil {
		env.Client = &http.Client{Timeout: cfg.HTTPConfig.Timeout}
	}
	if env.HTTP == (types.HTTPConfig{}) {
		env.HTTP = cfg.HTTPConfig
	}
	if env.Ranker == nil {
		env.Ranker = rank.New(cfg.Rank, rank.WithClock(env.now))
	}

	var out []Adapter
	for _, s := range types.Sources {
		sc := cfg.Source(s)
		if !sc.Enabled {
			continue
		}
		switch s {
		case types.SourceWeb:
			out = append(out, &WebAdapter{Env: env, APIKey: sc.APIKey, MinScore: sc.MinScore, RecentWindow: cfg.RecentWindow})
		case types.SourceAcademicPreprint:
			out = append(out, &ArxivAdapter{Env: env, RecentYears: cfg.RecentYears, MinScore: sc.MinScore})
		case types.SourceDiscussionBoard:
			out = append(out, &RedditAdapter{Env: env, MinScore: sc.MinScore})
		case types.SourceProductDirectory:
			out = append(out, &ProductHuntAdapter{Env: env, APIKey: sc.APIKey, MinScore: sc.MinScore})
		}
	}
	return out
}
