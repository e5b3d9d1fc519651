// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/foursight/pkg/types"
)

const arxivFeedFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"
      xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/"
      xmlns:arxiv="http://arxiv.org/schemas/atom">
  <opensearch:totalResults>2</opensearch:totalResults>
  <entry>
    <id>http://arxiv.org/abs/2401.01234v2</id>
    <updated>2024-02-10T08:00:00Z</updated>
    <published>2024-01-03T18:30:00Z</published>
    <title>Blockchain Ledgers for
      Healthcare Records</title>
    <summary>We study blockchain systems that secure healthcare data exchange between hospitals.</summary>
    <author>
      <name>Ada Lovelace</name>
      <arxiv:affiliation>Analytical Engine Lab</arxiv:affiliation>
    </author>
    <author><name>Charles Babbage</name></author>
    <arxiv:doi>10.1000/chain.42</arxiv:doi>
    <arxiv:comment>12 pages</arxiv:comment>
    <arxiv:journal_ref>J. Health Inf. 7 (2024)</arxiv:journal_ref>
    <link href="http://arxiv.org/abs/2401.01234v2" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2401.01234v2" rel="related" type="application/pdf"/>
    <arxiv:primary_category term="cs.CR" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.CY" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.CR" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2312.09999v1</id>
    <published>2023-12-20T00:00:00Z</published>
    <title></title>
    <summary>Smart contract audits for medical blockchain deployments.</summary>
  </entry>
</feed>`

func TestBuildArxivQuery(t *testing.T) {
	from := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	to := testNow

	tests := []struct {
		name string
		text string
		want string
	}{
		{"ai education", "AI in education", arxivAIClause + " AND " + arxivEducationClause},
		{"ai health", "artificial intelligence in healthcare", arxivAIClause + " AND " + arxivHealthClause},
		{"blockchain health", "blockchain in healthcare", "ti:blockchain AND " + arxivHealthClause},
		{"ai only", "ai agents", `(ti:"artificial intelligence" OR ti:"machine learning" OR ti:ai)`},
		{"education only", "online learning platforms", `(ti:education OR ti:learning OR ti:"educational technology")`},
		{"generic", "quantum error correction with surface codes", `(ti:"quantum" OR abs:"quantum" OR ti:"error" OR abs:"error" OR ti:"correction" OR abs:"correction")`},
		{"short words fall back to phrase", "5G in IoT", `(ti:"5G in IoT" OR abs:"5G in IoT")`},
		{"word containing ai is not ai", "rain forecasting", `(ti:"rain" OR abs:"rain" OR ti:"forecasting" OR abs:"forecasting")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildArxivQuery(tt.text, time.Time{}, to))
		})
	}

	got := buildArxivQuery("blockchain in healthcare", from, to)
	assert.True(t, strings.HasSuffix(got, " AND submittedDate:[202301010000 TO 202603012359]"), got)
}

func TestParseArxivFeed(t *testing.T) {
	records, err := parseArxivFeed([]byte(arxivFeedFixture))
	require.NoError(t, err)
	require.Len(t, records, 2)

	r := records[0]
	assert.Equal(t, "Blockchain Ledgers for Healthcare Records", r.Title)
	assert.Equal(t, "http://arxiv.org/abs/2401.01234v2", r.URL)
	assert.Equal(t, "2024-01-03", r.PublishedDate)
	assert.Equal(t, types.SourceAcademicPreprint, r.Source)
	assert.Equal(t, types.KindPaper, r.Kind)
	assert.Equal(t, "2401.01234", r.String(types.ExtraArxivID))
	assert.Equal(t, []string{"Ada Lovelace (Analytical Engine Lab)", "Charles Babbage"}, r.StringList(types.ExtraAuthors))
	assert.Equal(t, []string{"cs.CR", "cs.CY"}, r.StringList(types.ExtraCategories), "primary category first, no duplicates")
	assert.Equal(t, "cs.CR", r.String(types.ExtraPrimaryCategory))
	assert.Equal(t, "http://arxiv.org/pdf/2401.01234v2", r.String(types.ExtraPDFURL))
	assert.Equal(t, "10.1000/chain.42", r.String(types.ExtraDOI))
	assert.Equal(t, "2024-02-10", r.String(types.ExtraUpdatedDate))
	assert.Equal(t, "12 pages", r.String(types.ExtraComment))
	assert.Equal(t, "J. Health Inf. 7 (2024)", r.String(types.ExtraJournalRef))

	untitled := records[1]
	assert.Equal(t, types.UntitledPlaceholder, untitled.Title)
	assert.Equal(t, "http://arxiv.org/abs/2312.09999v1", untitled.URL, "id is the fallback URL")
	assert.Nil(t, untitled.StringList(types.ExtraAuthors))
}

func TestParseArxivFeedDOILink(t *testing.T) {
	feed := `<feed><entry>
	  <id>http://arxiv.org/abs/2201.00001v1</id><title>T</title>
	  <link title="doi" href="https://doi.org/10.5/x" rel="related"/>
	</entry></feed>`
	records, err := parseArxivFeed([]byte(feed))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "10.5/x", records[0].String(types.ExtraDOI))
	assert.Equal(t, "http://arxiv.org/abs/2201.00001v1", records[0].URL)
}

func TestParseArxivFeedEdgeCases(t *testing.T) {
	t.Run("empty body", func(t *testing.T) {
		_, err := parseArxivFeed([]byte("  "))
		assert.Error(t, err)
	})

	t.Run("zero total", func(t *testing.T) {
		records, err := parseArxivFeed([]byte(`<feed xmlns:opensearch="x"><opensearch:totalResults>0</opensearch:totalResults></feed>`))
		assert.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("api error entry", func(t *testing.T) {
		feed := `<feed><entry><id>http://arxiv.org/api/errors#bad</id><title>Error</title>
		<summary>incorrect id format</summary></entry></feed>`
		records, err := parseArxivFeed([]byte(feed))
		assert.ErrorContains(t, err, "incorrect id format")
		assert.Empty(t, records)
	})

	t.Run("entry without id or title skipped", func(t *testing.T) {
		records, err := parseArxivFeed([]byte(`<feed><entry><summary>orphan</summary></entry></feed>`))
		assert.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("truncated document keeps parsed entries", func(t *testing.T) {
		feed := `<feed><entry><id>http://arxiv.org/abs/2401.1v1</id><title>First</title></entry>
		<entry><id>http://arxiv.org/abs/2401.2v1</id><title>Sec`
		records, err := parseArxivFeed([]byte(feed))
		assert.Error(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "First", records[0].Title)
	})
}

func TestExtractArxivID(t *testing.T) {
	assert.Equal(t, "2301.07041", extractArxivID("http://arxiv.org/abs/2301.07041v1"))
	assert.Equal(t, "2301.07041", extractArxivID("http://arxiv.org/abs/2301.07041"))
	assert.Equal(t, "hep-th/9901001", extractArxivID("http://arxiv.org/abs/hep-th/9901001v3"))
	assert.Equal(t, "", extractArxivID("http://example.com/x"))
}

func TestArxivSearch(t *testing.T) {
	var params map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params = map[string]string{}
		for k := range r.URL.Query() {
			params[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, arxivFeedFixture)
	}))
	defer ts.Close()
	swap(t, &arxivAPIBase, ts.URL)

	a := &ArxivAdapter{Env: testEnv(ts), RecentYears: 3}
	records, err := a.Search(t.Context(), Query{
		Text:       "blockchain na saúde",
		Translated: "blockchain in healthcare",
		MaxResults: 5,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(params["search_query"], "ti:blockchain AND "), params["search_query"])
	assert.Contains(t, params["search_query"], "submittedDate:[202301010000 TO 202603012359]")
	assert.Equal(t, "10", params["max_results"])
	assert.Equal(t, "0", params["start"])
	assert.Equal(t, "relevance", params["sortBy"])
	assert.Equal(t, "descending", params["sortOrder"])

	require.NotEmpty(t, records)
	assert.Equal(t, "Blockchain Ledgers for Healthcare Records", records[0].Title)
	for i := 1; i < len(records); i++ {
		assert.GreaterOrEqual(t, records[i-1].RelevanceScore, records[i].RelevanceScore)
	}
}

func TestArxivSearchPartialFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<feed><entry><id>http://arxiv.org/abs/2401.1v1</id>
		<title>Blockchain for healthcare records</title>
		<summary>Blockchain in healthcare systems.</summary></entry><entry><id>http://arxiv`)
	}))
	defer ts.Close()
	swap(t, &arxivAPIBase, ts.URL)

	a := &ArxivAdapter{Env: testEnv(ts)}
	records, err := a.Search(t.Context(), Query{Text: "blockchain in healthcare"})
	assert.ErrorContains(t, err, "parsing arXiv response")
	assert.Len(t, records, 1, "entries decoded before the syntax error are kept")
}

func TestArxivSearchServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()
	swap(t, &arxivAPIBase, ts.URL)

	a := &ArxivAdapter{Env: testEnv(ts)}
	records, err := a.Search(t.Context(), Query{Text: "graph neural networks"})
	assert.ErrorContains(t, err, "arXiv API request")
	assert.Empty(t, records)
}

func TestArxivSearchEmptyQuery(t *testing.T) {
	a := &ArxivAdapter{Env: testEnv(nil)}
	records, err := a.Search(t.Context(), Query{Text: "  "})
	assert.NoError(t, err)
	assert.Empty(t, records)
}
