// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/foursight/pkg/types"
)

var runTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.ArchiveConfig{Dir: filepath.Join(t.TempDir(), "archive"), MaxResults: 20})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func blockchainRun() types.AggregationResult {
	web := types.SearchRecord{
		Title: "Blockchain in healthcare report", URL: "https://news.example/a",
		Snippet: "Distributed ledgers for patient records.", PublishedDate: "2026-02-01",
		Source: types.SourceWeb, Kind: types.KindWeb, RelevanceScore: 0.8,
	}
	paper := types.SearchRecord{
		Title: "Consensus Protocols for Medical Data", URL: "http://arxiv.org/abs/2401.01234v2",
		Snippet: "We study blockchain consensus.", PublishedDate: "2024-01-03",
		Source: types.SourceAcademicPreprint, Kind: types.KindPaper, RelevanceScore: 0.9,
		Extra: map[string]any{
			types.ExtraArxivID: "2401.01234",
			types.ExtraAuthors: []string{"Ada Lovelace", "Charles Babbage"},
		},
	}
	post := types.SearchRecord{
		Title: "Blockchain in healthcare discussion", URL: "https://www.reddit.com/r/healthIT/comments/1/",
		Snippet: "Is anyone piloting this?",
		Source: types.SourceDiscussionBoard, Kind: types.KindSocial, RelevanceScore: 0.6,
		Extra: map[string]any{types.ExtraSubreddit: "healthIT", types.ExtraVotes: 42},
	}
	return types.AggregationResult{
		Query:      "blockchain na saúde",
		Translated: "blockchain in healthcare",
		Context:    "hospital procurement",
		BySource: map[types.Source][]types.SearchRecord{
			types.SourceWeb:              {web},
			types.SourceAcademicPreprint: {paper},
			types.SourceDiscussionBoard:  {post},
			types.SourceProductDirectory: {},
		},
		All:      []types.SearchRecord{web, paper, post},
		Errors:   map[types.Source]string{types.SourceProductDirectory: "source not configured"},
		Duration: 1500 * time.Millisecond,
	}
}

func quantumRun() types.AggregationResult {
	rec := types.SearchRecord{
		Title: "Quantum error correction survey", URL: "https://news.example/q",
		Snippet: "Surface codes and logical qubits.",
		Source: types.SourceWeb, Kind: types.KindWeb, RelevanceScore: 0.7,
	}
	return types.AggregationResult{
		Query:    "quantum computing",
		BySource: map[types.Source][]types.SearchRecord{types.SourceWeb: {rec}},
		All:      []types.SearchRecord{rec},
		Duration: time.Second,
	}
}

func saveRun(t *testing.T, s *Store, res types.AggregationResult, at time.Time) string {
	t.Helper()
	id, err := s.Save(t.Context(), res, at)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return id
}

// --- tests ---

func TestOpenCreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "archive")
	s, err := Open(types.ArchiveConfig{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())
	assert.Equal(t, defaultMaxResults, s.maxResults)
	require.NoError(t, s.Close())

	if _, err := os.Stat(filepath.Join(dir, dbFile)); err != nil {
		t.Fatalf("database file not created: %v", err)
	}

	// Reopening an existing archive keeps the schema.
	s, err = Open(types.ArchiveConfig{Dir: dir})
	require.NoError(t, err)
	s.Close()
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(types.ArchiveConfig{})
	assert.ErrorContains(t, err, "not configured")
}

func TestSaveAndRun(t *testing.T) {
	s := testStore(t)
	res := blockchainRun()
	id := saveRun(t, s, res, runTime)
	assert.Len(t, id, 36, "uuid run id")

	run, back, err := s.Run(t.Context(), id)
	require.NoError(t, err)

	assert.Equal(t, id, run.ID)
	assert.Equal(t, 3, run.Total)
	assert.True(t, runTime.Equal(run.CreatedAt))
	assert.Equal(t, 1500*time.Millisecond, run.Duration)
	assert.Equal(t, types.Sources, run.Sources)

	// Extra values come back JSON-decoded, so compare them by accessor.
	ignoreExtra := cmpopts.IgnoreFields(types.SearchRecord{}, "Extra")
	if diff := cmp.Diff(res, back, ignoreExtra); diff != "" {
		t.Errorf("rebuilt result mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "2401.01234", back.All[1].String(types.ExtraArxivID))
	assert.Equal(t, []string{"Ada Lovelace", "Charles Babbage"}, back.All[1].StringList(types.ExtraAuthors))
	assert.Equal(t, 42, back.All[2].Int(types.ExtraVotes))
	assert.Nil(t, back.All[0].Extra)
	assert.NotNil(t, back.BySource[types.SourceProductDirectory])
}

func TestRunNotFound(t *testing.T) {
	s := testStore(t)
	_, _, err := s.Run(t.Context(), "missing")
	assert.ErrorContains(t, err, "run missing not found")
}

func TestSaveEmptyResult(t *testing.T) {
	s := testStore(t)
	id := saveRun(t, s, types.AggregationResult{Query: "nothing", BySource: map[types.Source][]types.SearchRecord{}}, runTime)

	run, back, err := s.Run(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, run.Total)
	assert.Empty(t, back.All)
	assert.Nil(t, run.Errors)
}

func TestSearchFullText(t *testing.T) {
	s := testStore(t)
	first := saveRun(t, s, blockchainRun(), runTime)
	saveRun(t, s, quantumRun(), runTime.Add(time.Hour))

	tests := []struct {
		name string
		opts SearchOptions
		want []string
	}{
		{"title match", SearchOptions{Query: "quantum"}, []string{"Quantum error correction survey"}},
		{"snippet match", SearchOptions{Query: "qubits"}, []string{"Quantum error correction survey"}},
		{"source filter", SearchOptions{Query: "blockchain", Source: types.SourceAcademicPreprint}, []string{"Consensus Protocols for Medical Data"}},
		{"run filter", SearchOptions{Query: "healthcare", RunID: first}, []string{"Blockchain in healthcare report", "Blockchain in healthcare discussion"}},
		{"no match", SearchOptions{Query: "sourdough"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := s.Search(t.Context(), tt.opts)
			require.NoError(t, err)
			var titles []string
			for _, h := range hits {
				titles = append(titles, h.Title)
			}
			assert.ElementsMatch(t, tt.want, titles)
		})
	}
}

func TestSearchHitCarriesRun(t *testing.T) {
	s := testStore(t)
	id := saveRun(t, s, blockchainRun(), runTime)

	hits, err := s.Search(t.Context(), SearchOptions{Query: "consensus"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].RunID)
	assert.Equal(t, "blockchain na saúde", hits[0].RunQuery)
	assert.True(t, runTime.Equal(hits[0].RunAt))
	assert.Equal(t, types.KindPaper, hits[0].Kind)
}

func TestSearchFilterOnlyOrder(t *testing.T) {
	s := testStore(t)
	saveRun(t, s, blockchainRun(), runTime)
	saveRun(t, s, quantumRun(), runTime.Add(time.Hour))

	hits, err := s.Search(t.Context(), SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 4)
	assert.Equal(t, "quantum computing", hits[0].RunQuery, "newest run first")
	assert.Equal(t, "Blockchain in healthcare report", hits[1].Title, "original order within a run")
	assert.Equal(t, "Blockchain in healthcare discussion", hits[3].Title)

	web, err := s.Search(t.Context(), SearchOptions{Source: types.SourceWeb, MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, web, 1)
	assert.Equal(t, "Quantum error correction survey", web[0].Title)
}

func TestSearchBadQuery(t *testing.T) {
	s := testStore(t)
	saveRun(t, s, blockchainRun(), runTime)
	_, err := s.Search(t.Context(), SearchOptions{Query: `"unterminated`})
	assert.Error(t, err)
}

func TestRuns(t *testing.T) {
	s := testStore(t)
	older := saveRun(t, s, blockchainRun(), runTime)
	newer := saveRun(t, s, quantumRun(), runTime.Add(500*time.Millisecond))

	runs, err := s.Runs(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer, runs[0].ID)
	assert.Equal(t, older, runs[1].ID)
	assert.Equal(t, "source not configured", runs[1].Errors[types.SourceProductDirectory])

	runs, err = s.Runs(t.Context(), 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestDelete(t *testing.T) {
	s := testStore(t)
	id := saveRun(t, s, blockchainRun(), runTime)
	saveRun(t, s, quantumRun(), runTime)

	require.NoError(t, s.Delete(t.Context(), id))

	hits, err := s.Search(t.Context(), SearchOptions{Query: "blockchain"})
	require.NoError(t, err)
	assert.Empty(t, hits, "records and index entries removed with the run")

	all, err := s.Search(t.Context(), SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.ErrorContains(t, s.Delete(t.Context(), id), "not found")
}

func TestExportYAML(t *testing.T) {
	s := testStore(t)
	saveRun(t, s, blockchainRun(), runTime)

	path, err := s.ExportYAML(t.Context(), SearchOptions{Source: types.SourceDiscussionBoard})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "export.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []ExportEntry
	require.NoError(t, yaml.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Blockchain in healthcare discussion", entries[0].Title)
	assert.Equal(t, "reddit", entries[0].Source)
	assert.Equal(t, "blockchain na saúde", entries[0].RunQuery)
	assert.Equal(t, "healthIT", entries[0].Extra[types.ExtraSubreddit])
}

func TestExportJSON(t *testing.T) {
	s := testStore(t)
	saveRun(t, s, blockchainRun(), runTime)
	saveRun(t, s, quantumRun(), runTime)

	path, err := s.ExportJSON(t.Context(), SearchOptions{})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []ExportEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	assert.Len(t, entries, 4)
	for _, e := range entries {
		assert.NotEmpty(t, e.RunID)
		assert.NotEmpty(t, e.Title)
	}
}

func TestSearchOptionsIsEmpty(t *testing.T) {
	assert.True(t, SearchOptions{MaxResults: 5}.IsEmpty())
	assert.False(t, SearchOptions{Query: "x"}.IsEmpty())
	assert.False(t, SearchOptions{Source: types.SourceWeb}.IsEmpty())
	assert.False(t, SearchOptions{RunID: "r"}.IsEmpty())
}
