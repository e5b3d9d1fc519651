// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/foursight/internal/rank"
	"github.com/pdiddy/foursight/pkg/types"
)

// serperAPIBase is the Serper web search endpoint. Declared as a var so
// tests can substitute an httptest server.
var serperAPIBase = "https://google.serper.dev/search"

// WebAdapter queries a general web search provider (Serper).
type WebAdapter struct {
	Env
	APIKey string

	// MinScore drops results below this relevance; zero uses the ranker
	// default.
	MinScore float64

	// RecentWindow restricts results to this age when positive.
	RecentWindow time.Duration
}

// Name returns the source identifier.
func (a *WebAdapter) Name() types.Source { return types.SourceWeb }

// Kind returns the record kind this adapter produces.
func (a *WebAdapter) Kind() types.Kind { return types.KindWeb }

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
	TBS string `json:"tbs,omitempty"`
}

type serperResponse struct {
	Organic []json.RawMessage `json:"organic"`
}

type serperResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date"`
	Position int    `json:"position"`
}

// Search issues one POST with the caller's original query. The provider
// handles any language, so the untranslated text is sent, and results are
// scored against both the original and the translated terms.
func (a *WebAdapter) Search(ctx context.Context, q Query) ([]types.SearchRecord, error) {
	if a.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if q.IsEmpty() {
		return nil, nil
	}

	text := strings.TrimSpace(q.Text)
	if text == "" {
		text = q.Effective()
	}
	req := serperRequest{Q: text, Num: q.limit() * 2}
	if a.RecentWindow > 0 {
		since := a.now().Add(-a.RecentWindow)
		req.Q = fmt.Sprintf("%s after:%s", text, since.Format(types.DateLayout))
		req.TBS = recentTBS(a.RecentWindow)
	}

	var resp serperResponse
	if err := a.postJSON(ctx, serperAPIBase, map[string]string{"X-API-KEY": a.APIKey}, req, &resp); err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}

	now := a.now()
	organic := decodeEach[serperResult](a.logger(), types.SourceWeb, resp.Organic)
	records := make([]types.SearchRecord, 0, len(organic))
	for _, r := range organic {
		if r.Link == "" && r.Title == "" {
			continue
		}
		rec := newRecord(types.SourceWeb, types.KindWeb, r.Title, r.Link, r.Snippet)
		rec.PublishedDate = parseLooseDate(r.Date, now)
		setExtra(&rec, "position", r.Position)
		records = append(records, rec)
	}
	records, removed := deduplicate(records)

	queryTerms, contextTerms := q.terms()
	termSets := [][]string{queryTerms}
	if sent := rank.Terms(text); !slices.Equal(sent, queryTerms) {
		termSets = append(termSets, sent)
	}
	ranked := a.ranker().SelectBest(records, termSets, contextTerms, a.MinScore)
	a.logger().Debug("web results",
		zap.String("query", req.Q),
		zap.Int("raw", len(resp.Organic)),
		zap.Int("duplicates", removed),
		zap.Int("kept", len(ranked)))
	return ranked, nil
}

// recentTBS maps a window onto the provider's coarse time filter. Windows
// longer than a year rely on the after: operator alone.
func recentTBS(window time.Duration) string {
	const day = 24 * time.Hour
	switch {
	case window <= day:
		return "qdr:d"
	case window <= 7*day:
		return "qdr:w"
	case window <= 31*day:
		return "qdr:m"
	case window <= 366*day:
		return "qdr:y"
	}
	return ""
}

var relativeDateRe = regexp.MustCompile(`^(\d+)\s+(minute|hour|day|week|month|year)s?\s+ago$`)

var looseDateLayouts = []string{
	types.DateLayout,
	time.RFC3339,
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2006",
}

// parseLooseDate turns the provider's display dates ("Mar 3, 2025",
// "2 days ago") into YYYY-MM-DD. Unrecognized input yields "".
func parseLooseDate(s string, now time.Time) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if m := relativeDateRe.FindStringSubmatch(strings.ToLower(s)); m != nil {
		n, _ := strconv.Atoi(m[1])
		var t time.Time
		switch m[2] {
		case "minute":
			t = now.Add(-time.Duration(n) * time.Minute)
		case "hour":
			t = now.Add(-time.Duration(n) * time.Hour)
		case "day":
			t = now.AddDate(0, 0, -n)
		case "week":
			t = now.AddDate(0, 0, -7*n)
		case "month":
			t = now.AddDate(0, -n, 0)
		case "year":
			t = now.AddDate(-n, 0, 0)
		}
		return t.Format(types.DateLayout)
	}
	for _, layout := range looseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(types.DateLayout)
		}
	}
	return ""
}
