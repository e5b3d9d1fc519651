// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/foursight/internal/rank"
	"github.com/pdiddy/foursight/internal/textutil"
	"github.com/pdiddy/foursight/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// arxivMaxResults is the largest page the adapter requests.
const arxivMaxResults = 100

// ArxivAdapter queries the arXiv Atom API for recent preprints.
type ArxivAdapter struct {
	Env

	// RecentYears bounds the submission date range (default 3).
	RecentYears int

	// MinScore drops results below this relevance; zero uses the ranker
	// default.
	MinScore float64
}

// Name returns the source identifier.
func (a *ArxivAdapter) Name() types.Source { return types.SourceAcademicPreprint }

// Kind returns the record kind this adapter produces.
func (a *ArxivAdapter) Kind() types.Kind { return types.KindPaper }

// Search builds a field-qualified query from the translated text, limited
// to submissions of the last RecentYears calendar years.
func (a *ArxivAdapter) Search(ctx context.Context, q Query) ([]types.SearchRecord, error) {
	if q.IsEmpty() {
		return nil, nil
	}

	years := a.RecentYears
	if years <= 0 {
		years = 3
	}
	now := a.now().UTC()
	from := time.Date(now.Year()-years, 1, 1, 0, 0, 0, 0, time.UTC)
	search := buildArxivQuery(q.Effective(), from, now)

	params := url.Values{
		"search_query": {search},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(min(q.limit()*2, arxivMaxResults))},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}
	body, err := a.get(ctx, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}

	records, parseErr := parseArxivFeed(body)
	queryTerms, contextTerms := q.terms()
	ranked := a.ranker().Select(records, queryTerms, contextTerms, a.MinScore)
	a.logger().Debug("arxiv results",
		zap.String("query", search),
		zap.Int("parsed", len(records)),
		zap.Int("kept", len(ranked)))
	if parseErr != nil {
		return ranked, fmt.Errorf("parsing arXiv response: %w", parseErr)
	}
	return ranked, nil
}

const (
	arxivAIClause        = `(ti:"artificial intelligence" OR ti:"machine learning")`
	arxivEducationClause = `(ti:education OR ti:learning OR ti:teaching OR ti:educational OR abs:education OR abs:learning OR abs:teaching OR abs:educational)`
	arxivHealthClause    = `(ti:health OR ti:healthcare OR ti:medical OR abs:health OR abs:healthcare OR abs:medical)`
)

// arxivSkipWords never become search terms of the generic query.
var arxivSkipWords = []string{"with", "from", "that", "this", "these", "those", "have", "been"}

// buildArxivQuery returns the search_query parameter for text. Well-known
// topic combinations get hand-tuned title/abstract queries; anything else
// searches up to three significant words in titles and abstracts. A
// non-zero from adds a submittedDate range ending on to.
func buildArxivQuery(text string, from, to time.Time) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	words := rank.Tokenize(lower)
	containsAny := func(terms ...string) bool {
		for _, t := range terms {
			if strings.Contains(lower, t) {
				return true
			}
		}
		return false
	}
	ai := strings.Contains(lower, "artificial intelligence") || slices.Contains(words, "ai")

	var query string
	switch {
	case ai && containsAny("education", "learning", "teaching", "student", "school"):
		query = arxivAIClause + " AND " + arxivEducationClause
	case ai && containsAny("health", "healthcare", "medical", "medicine", "clinical"):
		query = arxivAIClause + " AND " + arxivHealthClause
	case strings.Contains(lower, "blockchain") && containsAny("health", "healthcare", "medical"):
		query = "ti:blockchain AND " + arxivHealthClause
	case ai:
		query = `(ti:"artificial intelligence" OR ti:"machine learning" OR ti:ai)`
	case containsAny("education", "learning"):
		query = `(ti:education OR ti:learning OR ti:"educational technology")`
	default:
		query = genericArxivQuery(text)
	}

	if !from.IsZero() {
		query += fmt.Sprintf(" AND submittedDate:[%s0000 TO %s2359]", from.Format("20060102"), to.Format("20060102"))
	}
	return query
}

func genericArxivQuery(text string) string {
	var parts []string
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, `"'.,;:!?()[]{}`)
		if len([]rune(w)) <= 3 || slices.Contains(arxivSkipWords, strings.ToLower(w)) {
			continue
		}
		parts = append(parts, fmt.Sprintf(`ti:"%s" OR abs:"%s"`, w, w))
		if len(parts) == 3 {
			break
		}
	}
	if len(parts) == 0 {
		t := strings.ReplaceAll(strings.TrimSpace(text), `"`, "")
		return fmt.Sprintf(`(ti:"%s" OR abs:"%s")`, t, t)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// arXiv Atom feed structures. Fields match on local names so documents
// with or without namespace prefixes decode alike.
type arxivEntry struct {
	ID              string          `xml:"id"`
	Title           string          `xml:"title"`
	Summary         string          `xml:"summary"`
	Published       string          `xml:"published"`
	Updated         string          `xml:"updated"`
	Authors         []arxivAuthor   `xml:"author"`
	Links           []arxivLink     `xml:"link"`
	Categories      []arxivCategory `xml:"category"`
	PrimaryCategory arxivCategory   `xml:"primary_category"`
	DOI             string          `xml:"doi"`
	Comment         string          `xml:"comment"`
	JournalRef      string          `xml:"journal_ref"`
}

type arxivAuthor struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"affiliation"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// parseArxivFeed streams entries out of an Atom document. Entries that
// cannot be used are skipped; a syntax error stops the scan and returns
// the entries read so far along with the error. An API error entry or a
// zero total yields no records.
func parseArxivFeed(body []byte) ([]types.SearchRecord, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty response body")
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	var records []types.SearchRecord
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "totalResults":
			var total string
			if err := dec.DecodeElement(&total, &start); err != nil {
				return records, err
			}
			if n, err := strconv.Atoi(strings.TrimSpace(total)); err == nil && n == 0 {
				return nil, nil
			}
		case "entry":
			var e arxivEntry
			if err := dec.DecodeElement(&e, &start); err != nil {
				return records, err
			}
			if strings.TrimSpace(e.Title) == "Error" {
				return nil, fmt.Errorf("arXiv API error: %s", textutil.CollapseSpace(e.Summary))
			}
			if rec, ok := e.record(); ok {
				records = append(records, rec)
			}
		}
	}
}

// record converts an entry, reporting false when it has neither an id
// nor a title.
func (e arxivEntry) record() (types.SearchRecord, bool) {
	id := extractArxivID(e.ID)
	if id == "" && strings.TrimSpace(e.Title) == "" {
		return types.SearchRecord{}, false
	}

	var pageURL, pdfURL, doiURL string
	for _, l := range e.Links {
		switch {
		case l.Type == "application/pdf" || l.Title == "pdf":
			pdfURL = l.Href
		case l.Title == "doi":
			doiURL = l.Href
		case l.Type == "text/html" || l.Rel == "alternate":
			if pageURL == "" {
				pageURL = l.Href
			}
		}
	}
	if pageURL == "" {
		pageURL = strings.TrimSpace(e.ID)
	}

	rec := newRecord(types.SourceAcademicPreprint, types.KindPaper, e.Title, pageURL, e.Summary)
	rec.PublishedDate = atomDate(e.Published)

	var authors []string
	for _, au := range e.Authors {
		name := textutil.CollapseSpace(au.Name)
		if name == "" {
			continue
		}
		if aff := textutil.CollapseSpace(au.Affiliation); aff != "" {
			name += " (" + aff + ")"
		}
		authors = append(authors, name)
	}

	var categories []string
	if t := strings.TrimSpace(e.PrimaryCategory.Term); t != "" {
		categories = append(categories, t)
	}
	for _, c := range e.Categories {
		if t := strings.TrimSpace(c.Term); t != "" && !slices.Contains(categories, t) {
			categories = append(categories, t)
		}
	}

	doi := strings.TrimSpace(e.DOI)
	if doi == "" && doiURL != "" {
		doi = strings.TrimPrefix(strings.TrimPrefix(doiURL, "https://doi.org/"), "http://dx.doi.org/")
	}

	setExtra(&rec, types.ExtraArxivID, id)
	setExtra(&rec, types.ExtraAuthors, authors)
	setExtra(&rec, types.ExtraCategories, categories)
	setExtra(&rec, types.ExtraPrimaryCategory, strings.TrimSpace(e.PrimaryCategory.Term))
	setExtra(&rec, types.ExtraPDFURL, pdfURL)
	setExtra(&rec, types.ExtraDOI, doi)
	setExtra(&rec, types.ExtraUpdatedDate, atomDate(e.Updated))
	setExtra(&rec, types.ExtraComment, textutil.CollapseSpace(e.Comment))
	setExtra(&rec, types.ExtraJournalRef, textutil.CollapseSpace(e.JournalRef))
	return rec, true
}

// atomDate reduces an Atom timestamp to YYYY-MM-DD.
func atomDate(s string) string {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(types.DateLayout)
	}
	if len(s) >= 10 {
		if t, err := time.Parse(types.DateLayout, s[:10]); err == nil {
			return t.Format(types.DateLayout)
		}
	}
	return ""
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := strings.TrimSpace(idURL[idx+len(prefix):])

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
