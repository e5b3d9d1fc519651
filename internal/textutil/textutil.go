// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textutil normalizes upstream text into record snippets: HTML
// cleanup, whitespace folding, rune-safe truncation and sentence splitting.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"golang.org/x/net/html"
)

// Ellipsis marks a truncated snippet.
const Ellipsis = "..."

var (
	tagRe         = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)
	mdLinkRe      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdEmphasisRe  = regexp.MustCompile(`[*_]{1,3}([^*_]+)[*_]{1,3}`)
	sentenceSplit = regexp.MustCompile(`[.!?;\n]+`)
)

// Truncate shortens s to at most limit runes. A cut string ends with
// Ellipsis, which counts towards the limit. A non-positive limit disables
// truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - len(Ellipsis)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:keep]), unicode.IsSpace) + Ellipsis
}

// CollapseSpace folds every run of whitespace into one space and trims.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// LooksLikeHTML reports whether s contains markup tags.
func LooksLikeHTML(s string) bool {
	return tagRe.MatchString(s)
}

// PlainText turns an upstream fragment into readable plain text. HTML is
// converted to Markdown first and the remaining link and emphasis syntax
// is dropped; entities are unescaped in every case.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	if LooksLikeHTML(s) {
		conv := md.NewConverter("", true, nil)
		if out, err := conv.ConvertString(s); err == nil {
			s = out
		} else {
			s = tagRe.ReplaceAllString(s, " ")
		}
		s = mdLinkRe.ReplaceAllString(s, "$1")
		s = mdEmphasisRe.ReplaceAllString(s, "$1")
	}
	return CollapseSpace(html.UnescapeString(s))
}

// Snippet cleans s and truncates it to limit runes.
func Snippet(s string, limit int) string {
	return Truncate(PlainText(s), limit)
}

// Sentences splits text into sentence-like units on terminal punctuation
// and newlines. Empty units are dropped.
func Sentences(text string) []string {
	parts := sentenceSplit.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TitleOrPlaceholder trims title and substitutes placeholder when empty.
func TitleOrPlaceholder(title, placeholder string) string {
	title = CollapseSpace(title)
	if title == "" {
		return placeholder
	}
	return title
}
