// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"io"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/foursight/pkg/types"
)

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID       string    `yaml:"id"`
	Type     string    `yaml:"type"`
	Title    string    `yaml:"title"`
	Author   []CSLName `yaml:"author,omitempty"`
	Abstract string    `yaml:"abstract,omitempty"`
	Issued   *CSLDate  `yaml:"issued,omitempty"`
	DOI      string    `yaml:"DOI,omitempty"`
	URL      string    `yaml:"URL,omitempty"`
	Note     string    `yaml:"note,omitempty"`
	Source   string    `yaml:"source,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes the citable records of res (papers, then web pages) as
// a CSL-YAML list to w. Discussion posts and products are not citable and
// are skipped.
func FormatCSL(res types.AggregationResult, w io.Writer) error {
	items := []CSLItem{}
	for _, kind := range []types.Kind{types.KindPaper, types.KindWeb} {
		for _, r := range res.All {
			if r.Kind == kind {
				items = append(items, toCSLItem(r))
			}
		}
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// toCSLItem converts a record to a CSLItem.
func toCSLItem(r types.SearchRecord) CSLItem {
	item := CSLItem{
		ID:       cslID(r),
		Type:     "webpage",
		Title:    r.Title,
		Abstract: r.Snippet,
		URL:      r.URL,
		Source:   r.Source.Label(),
	}

	if r.Kind == types.KindPaper {
		item.Type = "article"
		item.DOI = r.String(types.ExtraDOI)
		item.Note = r.String(types.ExtraJournalRef)
		if item.DOI != "" {
			item.Type = "article-journal"
		}
		for _, a := range r.StringList(types.ExtraAuthors) {
			item.Author = append(item.Author, parseAuthorName(a))
		}
	}

	if t := r.Published(); !t.IsZero() {
		item.Issued = &CSLDate{
			DateParts: [][]int{{t.Year(), int(t.Month()), t.Day()}},
		}
	}
	return item
}

// cslID prefers the arXiv identifier, then the DOI, then the URL.
func cslID(r types.SearchRecord) string {
	if id := r.String(types.ExtraArxivID); id != "" {
		return "arxiv:" + id
	}
	if doi := r.String(types.ExtraDOI); doi != "" {
		return doi
	}
	if r.URL != "" {
		return r.URL
	}
	return normalizeTitle(r.Title)
}

var affiliationRe = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// parseAuthorName splits a full name string into CSL family/given parts.
// It splits on the last space: everything before is given, the last token
// is family. Single-token names use the literal field. A trailing
// parenthesized affiliation is dropped.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(affiliationRe.ReplaceAllString(name, ""))
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
