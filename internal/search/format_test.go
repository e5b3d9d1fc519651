// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/foursight/pkg/types"
)

func sampleResult() types.AggregationResult {
	web := []types.SearchRecord{{
		Title: "Blockchain in healthcare report", URL: "https://news.example/a",
		Snippet: "Ledgers for records.", PublishedDate: "2026-02-01",
		Source: types.SourceWeb, Kind: types.KindWeb, RelevanceScore: 0.8,
	}}
	papers := []types.SearchRecord{{
		Title: "Blockchain Ledgers for Healthcare Records", URL: "http://arxiv.org/abs/2401.01234v2",
		Snippet: "We study blockchain.", PublishedDate: "2024-01-03",
		Source: types.SourceAcademicPreprint, Kind: types.KindPaper, RelevanceScore: 0.9,
		Extra: map[string]any{
			types.ExtraArxivID:    "2401.01234",
			types.ExtraAuthors:    []string{"Ada Lovelace (Analytical Engine Lab)", "Babbage"},
			types.ExtraDOI:        "10.1000/chain.42",
			types.ExtraJournalRef: "J. Health Inf. 7 (2024)",
		},
	}}
	posts := []types.SearchRecord{{
		Title: "Blockchain in healthcare discussion", URL: "https://www.reddit.com/r/healthIT/comments/1/",
		Source: types.SourceDiscussionBoard, Kind: types.KindSocial, RelevanceScore: 0.6,
		Extra: map[string]any{types.ExtraSubreddit: "healthIT", types.ExtraVotes: 42},
	}}
	res := types.AggregationResult{
		Query:      "blockchain na saúde",
		Translated: "blockchain in healthcare",
		BySource: map[types.Source][]types.SearchRecord{
			types.SourceWeb:              web,
			types.SourceAcademicPreprint: papers,
			types.SourceDiscussionBoard:  posts,
			types.SourceProductDirectory: {},
		},
		Errors:   map[types.Source]string{types.SourceProductDirectory: ErrNotConfigured.Error()},
		Duration: 1500 * time.Millisecond,
	}
	for _, s := range types.Sources {
		res.All = append(res.All, res.BySource[s]...)
	}
	return res
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(sampleResult(), &buf)
	out := buf.String()

	assert.Contains(t, out, "Query: blockchain na saúde (translated: blockchain in healthcare)")
	assert.Contains(t, out, "Blockchain Ledgers for Healthcare Records")
	assert.Contains(t, out, "Ada Lovelac... et al.")
	assert.Contains(t, out, "r/healthIT ^42")
	assert.Contains(t, out, "3 results from 4 sources in 1.5s")
	assert.Contains(t, out, "warning: ")
	assert.Contains(t, out, ErrNotConfigured.Error())
	assert.NotContains(t, out, "No results found.")

	webAt := strings.Index(out, types.SourceWeb.Label())
	paperAt := strings.Index(out, types.SourceAcademicPreprint.Label())
	assert.Less(t, webAt, paperAt, "sources in aggregation order")
}

func TestFormatTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(types.AggregationResult{Query: "x", BySource: map[types.Source][]types.SearchRecord{}}, &buf)
	assert.Contains(t, buf.String(), "No results found.")
	assert.NotContains(t, buf.String(), "translated")
}

func TestDetail(t *testing.T) {
	assert.Equal(t, "", detail(types.SearchRecord{Kind: types.KindWeb}))
	assert.Equal(t, "12 votes", detail(types.SearchRecord{Kind: types.KindProduct, Extra: map[string]any{types.ExtraVotes: 12}}))
	assert.Equal(t, "Solo", detail(types.SearchRecord{Kind: types.KindPaper, Extra: map[string]any{types.ExtraAuthors: []string{"Solo"}}}))
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatJSON(sampleResult(), &buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "blockchain na saúde", decoded["query"])
	all, ok := decoded["all"].([]any)
	require.True(t, ok, "all is a list: %v", decoded)
	assert.Len(t, all, 3)
}

func TestFormatCSL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatCSL(sampleResult(), &buf))

	var items []CSLItem
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &items))
	require.Len(t, items, 2, "discussion posts are not citable")

	paper := items[0]
	assert.Equal(t, "arxiv:2401.01234", paper.ID)
	assert.Equal(t, "article-journal", paper.Type)
	assert.Equal(t, "10.1000/chain.42", paper.DOI)
	assert.Equal(t, "J. Health Inf. 7 (2024)", paper.Note)
	require.Len(t, paper.Author, 2)
	assert.Equal(t, CSLName{Given: "Ada", Family: "Lovelace"}, paper.Author[0], "affiliation stripped")
	assert.Equal(t, CSLName{Literal: "Babbage"}, paper.Author[1])
	require.NotNil(t, paper.Issued)
	assert.Equal(t, [][]int{{2024, 1, 3}}, paper.Issued.DateParts)

	page := items[1]
	assert.Equal(t, "webpage", page.Type)
	assert.Equal(t, "https://news.example/a", page.ID)
	assert.Equal(t, "https://news.example/a", page.URL)
	assert.Empty(t, page.Author)
}

func TestFormatCSLEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatCSL(types.AggregationResult{}, &buf))
	assert.Equal(t, "[]\n", buf.String())
}

func TestParseAuthorName(t *testing.T) {
	tests := []struct {
		in   string
		want CSLName
	}{
		{"Grace Hopper", CSLName{Given: "Grace", Family: "Hopper"}},
		{"Jean-Paul van Damme", CSLName{Given: "Jean-Paul van", Family: "Damme"}},
		{"Plato", CSLName{Literal: "Plato"}},
		{"Ada Lovelace (Analytical Engine Lab)", CSLName{Given: "Ada", Family: "Lovelace"}},
		{"  ", CSLName{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAuthorName(tt.in))
		})
	}
}

func TestCSLID(t *testing.T) {
	assert.Equal(t, "10.1/x", cslID(types.SearchRecord{Extra: map[string]any{types.ExtraDOI: "10.1/x"}, URL: "https://u"}))
	assert.Equal(t, "https://u", cslID(types.SearchRecord{URL: "https://u"}))
	assert.Equal(t, "a title", cslID(types.SearchRecord{Title: "A Title!"}))
}

func TestQueryFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	res := sampleResult()
	require.NoError(t, WriteQueryFile(path, 5, res, testNow))

	qf, err := ReadQueryFile(path)
	require.NoError(t, err)
	assert.Equal(t, "blockchain na saúde", qf.Query.Text)
	assert.Equal(t, "blockchain in healthcare", qf.Query.Translated)
	assert.Equal(t, 5, qf.Query.MaxResults)
	assert.Equal(t, 3, qf.Summary.Total)
	assert.Equal(t, 1, qf.Summary.Counts[types.SourceWeb])
	assert.Equal(t, 0, qf.Summary.Counts[types.SourceProductDirectory])
	assert.True(t, testNow.Equal(qf.Summary.Timestamp))

	back := qf.Result()
	assert.Equal(t, res.Query, back.Query)
	assert.Equal(t, res.Duration, back.Duration)
	assert.Equal(t, res.Errors, back.Errors)
	require.Len(t, back.All, 3)
	for i := range res.All {
		assert.Equal(t, res.All[i].Title, back.All[i].Title)
		assert.Equal(t, res.All[i].Source, back.All[i].Source)
	}
	assert.NotNil(t, back.BySource[types.SourceProductDirectory])
	assert.Equal(t, "2401.01234", back.All[1].String(types.ExtraArxivID))
	assert.Equal(t, []string{"Ada Lovelace (Analytical Engine Lab)", "Babbage"}, back.All[1].StringList(types.ExtraAuthors))
}

func TestReadQueryFileErrors(t *testing.T) {
	_, err := ReadQueryFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading query file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("query: [unterminated"), 0o644))
	_, err = ReadQueryFile(bad)
	assert.ErrorContains(t, err, "parsing query file")
}

func TestWriteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.observeSource(types.SourceWeb, OutcomeOK, 120*time.Millisecond, 4)
	m.observeAggregation(time.Second)

	path := filepath.Join(t.TempDir(), "foursight.prom")
	require.NoError(t, WriteMetrics(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `foursight_source_calls_total{outcome="ok",source="web"} 1`)
	assert.Contains(t, out, `foursight_source_records_total{source="web"} 4`)
	assert.Contains(t, out, "foursight_aggregation_duration_seconds_count 1")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeSource(types.SourceWeb, OutcomeOK, time.Second, 1)
		m.observeAggregation(time.Second)
	})
}
