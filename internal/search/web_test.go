// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/foursight/internal/httputil"
	"github.com/pdiddy/foursight/pkg/types"
)

const serperFixture = `{
  "organic": [
    {"title": "AI in healthcare: 2025 report", "link": "https://example.com/ai-health",
     "snippet": "How artificial intelligence transforms healthcare diagnosis.", "date": "2 days ago", "position": 1},
    {"title": "Best budget laptops 2024", "link": "https://example.com/laptops",
     "snippet": "Cheap laptops.", "position": 2},
    {"title": "AI in healthcare: 2025 report (mirror)", "link": "https://example.com/ai-health/",
     "snippet": "Copy.", "position": 3},
    {"title": "Hospitals adopt artificial intelligence", "link": "https://example.com/hospitals",
     "snippet": "A study of intelligence tools in healthcare systems.", "date": "Jan 5, 2026", "position": 4}
  ]
}`

func TestWebSearch(t *testing.T) {
	var got serperRequest
	var apiKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("X-API-KEY")
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, serperFixture)
	}))
	defer ts.Close()
	swap(t, &serperAPIBase, ts.URL)

	a := &WebAdapter{Env: testEnv(ts), APIKey: "k", RecentWindow: 365 * 24 * time.Hour}
	records, err := a.Search(t.Context(), Query{
		Text:       "artificial intelligence in healthcare",
		MaxResults: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, "k", apiKey)
	assert.Equal(t, "artificial intelligence in healthcare after:2025-03-01", got.Q)
	assert.Equal(t, 10, got.Num)
	assert.Equal(t, "qdr:y", got.TBS)

	require.Len(t, records, 2, "irrelevant and duplicate results removed")
	for _, r := range records {
		assert.Equal(t, types.SourceWeb, r.Source)
		assert.Equal(t, types.KindWeb, r.Kind)
		assert.NotEqual(t, "Best budget laptops 2024", r.Title)
		assert.Greater(t, r.RelevanceScore, 0.0)
	}
	assert.GreaterOrEqual(t, records[0].RelevanceScore, records[1].RelevanceScore)

	dates := map[string]string{}
	for _, r := range records {
		dates[r.URL] = r.PublishedDate
	}
	assert.Equal(t, "2026-02-27", dates["https://example.com/ai-health"])
	assert.Equal(t, "2026-01-05", dates["https://example.com/hospitals"])
}

func TestWebSearchSendsOriginalText(t *testing.T) {
	var got serperRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"organic":[]}`)
	}))
	defer ts.Close()
	swap(t, &serperAPIBase, ts.URL)

	a := &WebAdapter{Env: testEnv(ts), APIKey: "k"}
	records, err := a.Search(t.Context(), Query{Text: "inteligência artificial", Translated: "artificial intelligence"})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, "inteligência artificial", got.Q)
	assert.Empty(t, got.TBS)
}

func TestWebSearchKeepsOriginalLanguageResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"organic": [
		  {"title": "Inovação em saúde: hospitais brasileiros", "link": "https://example.com.br/inovacao",
		   "snippet": "Hospitais brasileiros investem em inovação e saúde digital.", "position": 1},
		  {"title": "Startups de saúde digital crescem", "link": "https://example.com.br/startups",
		   "snippet": "O setor de saúde digital no Brasil atrai investimento.", "position": 2},
		  {"title": "Receitas de bolo de chocolate", "link": "https://example.com.br/bolo",
		   "snippet": "Receitas simples para o fim de semana com chocolate amargo.", "position": 3}
		]}`)
	}))
	defer ts.Close()
	swap(t, &serperAPIBase, ts.URL)

	a := &WebAdapter{Env: testEnv(ts), APIKey: "k"}
	records, err := a.Search(t.Context(), Query{
		Text:       "inovação na saúde",
		Translated: "innovation in healthcare",
		MaxResults: 5,
	})
	require.NoError(t, err)

	var titles []string
	for _, r := range records {
		titles = append(titles, r.Title)
		assert.Greater(t, r.RelevanceScore, 0.0)
	}
	assert.ElementsMatch(t, []string{
		"Inovação em saúde: hospitais brasileiros",
		"Startups de saúde digital crescem",
	}, titles)
}

func TestWebSearchSkipsMalformedEntries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"organic": [
		  {"title": ["not", "a", "string"], "link": "https://example.com/bad", "position": 1},
		  {"title": "AI in healthcare: 2025 report", "link": "https://example.com/ai-health",
		   "snippet": "How artificial intelligence transforms healthcare diagnosis.", "position": "second"},
		  {"title": "Hospitals adopt artificial intelligence", "link": "https://example.com/hospitals",
		   "snippet": "A study of intelligence tools in healthcare systems.", "position": 3}
		]}`)
	}))
	defer ts.Close()
	swap(t, &serperAPIBase, ts.URL)

	core, logs := observer.New(zapcore.WarnLevel)
	env := testEnv(ts)
	env.Log = zap.New(core)

	a := &WebAdapter{Env: env, APIKey: "k"}
	records, err := a.Search(t.Context(), Query{Text: "artificial intelligence in healthcare"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://example.com/hospitals", records[0].URL)
	assert.Equal(t, 2, logs.FilterMessage("skipping malformed entry").Len())
}

func TestWebSearchNotConfigured(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()
	swap(t, &serperAPIBase, ts.URL)

	a := &WebAdapter{Env: testEnv(ts)}
	records, err := a.Search(t.Context(), Query{Text: "ai"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Empty(t, records)
	assert.Zero(t, calls.Load())
}

func TestWebSearchHTTPErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
		exhausted bool
	}{
		{"bad request is not retried", http.StatusBadRequest, 1, false},
		{"server error is retried", http.StatusBadGateway, 3, true},
		{"rate limit is retried", http.StatusTooManyRequests, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()
			swap(t, &serperAPIBase, ts.URL)

			a := &WebAdapter{Env: testEnv(ts), APIKey: "k"}
			records, err := a.Search(t.Context(), Query{Text: "ai"})
			require.Error(t, err)
			assert.Empty(t, records)
			assert.Equal(t, tt.wantCalls, calls.Load())
			assert.Equal(t, tt.exhausted, errorIsExhausted(err))

			var status *httputil.StatusError
			require.ErrorAs(t, err, &status)
			assert.Equal(t, tt.status, status.Code)
		})
	}
}

func errorIsExhausted(err error) bool {
	return err != nil && errors.Is(err, httputil.ErrRetriesExhausted)
}

func TestWebSearchMalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"organic": [`)
	}))
	defer ts.Close()
	swap(t, &serperAPIBase, ts.URL)

	a := &WebAdapter{Env: testEnv(ts), APIKey: "k"}
	_, err := a.Search(t.Context(), Query{Text: "ai"})
	assert.ErrorContains(t, err, "parsing response")
}

func TestRecentTBS(t *testing.T) {
	day := 24 * time.Hour
	assert.Equal(t, "qdr:d", recentTBS(day))
	assert.Equal(t, "qdr:w", recentTBS(7*day))
	assert.Equal(t, "qdr:m", recentTBS(30*day))
	assert.Equal(t, "qdr:y", recentTBS(365*day))
	assert.Equal(t, "", recentTBS(3*365*day))
}

func TestParseLooseDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"2025-11-03", "2025-11-03"},
		{"2025-11-03T10:00:00Z", "2025-11-03"},
		{"Mar 3, 2025", "2025-03-03"},
		{"March 3, 2025", "2025-03-03"},
		{"3 Mar 2025", "2025-03-03"},
		{"2 days ago", "2026-02-27"},
		{"1 week ago", "2026-02-22"},
		{"5 hours ago", "2026-03-01"},
		{"3 months ago", "2025-12-01"},
		{"yesterday-ish", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLooseDate(tt.in, testNow))
		})
	}
}
