// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/foursight/internal/textutil"
	"github.com/pdiddy/foursight/pkg/types"
)

// FormatTable writes one human-readable table per source to w, followed by
// the totals and any source errors.
func FormatTable(res types.AggregationResult, w io.Writer) {
	if res.Translated != "" && res.Translated != res.Query {
		fmt.Fprintf(w, "Query: %s (translated: %s)\n\n", res.Query, res.Translated)
	}
	if res.Total() == 0 {
		fmt.Fprintln(w, "No results found.")
	}

	for _, src := range res.SourceNames() {
		records := res.BySource[src]
		if len(records) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s (%d)\n", src.Label(), len(records))
		fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-10s  %-6s\n", "Rank", "Title", "Detail", "Date", "Score")
		fmt.Fprintln(w, strings.Repeat("-", 110))
		for i, r := range records {
			fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-10s  %-6.2f\n",
				i+1, textutil.Truncate(r.Title, 60), detail(r), r.PublishedDate, r.RelevanceScore)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%d results from %d sources in %s\n", res.Total(), len(res.BySource), res.Duration.Round(1e6))
	for _, src := range res.SourceNames() {
		if msg, ok := res.Errors[src]; ok {
			fmt.Fprintf(w, "warning: %s: %s\n", src.Label(), msg)
		}
	}
}

// detail picks the most informative source-specific field for the table.
func detail(r types.SearchRecord) string {
	switch r.Kind {
	case types.KindPaper:
		return formatAuthors(r.StringList(types.ExtraAuthors))
	case types.KindSocial:
		if sub := r.String(types.ExtraSubreddit); sub != "" {
			return textutil.Truncate(fmt.Sprintf("r/%s ^%d", sub, r.Int(types.ExtraVotes)), 20)
		}
	case types.KindProduct:
		return fmt.Sprintf("%d votes", r.Int(types.ExtraVotes))
	}
	return ""
}

// FormatJSON writes the result as indented JSON to w.
func FormatJSON(res types.AggregationResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return textutil.Truncate(authors[0], 20)
	default:
		return textutil.Truncate(authors[0], 14) + " et al."
	}
}
