// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rank

import (
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"
)

// Family is a named group of terms that denote one topic. Families drive
// dual-topic detection ("X in domain Y") and synonym expansion.
type Family struct {
	Name  string
	Terms []string
}

// Built-in topic families. Multi-word terms match as whole phrases.
var (
	FamilyAI = Family{Name: "ai", Terms: []string{
		"artificial intelligence", "ai", "machine learning", "ml", "deep learning",
		"neural network", "neural networks", "llm", "generative ai", "computer vision",
	}}
	FamilyHealth = Family{Name: "health", Terms: []string{
		"health", "healthcare", "medical", "medicine", "clinical", "hospital",
		"patient", "diagnosis", "treatment", "doctor", "physician", "wellness",
	}}
	FamilyEducation = Family{Name: "education", Terms: []string{
		"education", "teaching", "school", "student", "classroom", "edtech",
		"academic", "tutoring", "university", "course",
	}}
	FamilyBlockchain = Family{Name: "blockchain", Terms: []string{
		"blockchain", "crypto", "cryptocurrency", "web3", "defi", "smart contract",
		"bitcoin", "ethereum",
	}}
	FamilyFinance = Family{Name: "finance", Terms: []string{
		"finance", "financial", "fintech", "banking", "payment", "trading",
	}}
	FamilySecurity = Family{Name: "security", Terms: []string{
		"security", "cybersecurity", "privacy", "encryption", "authentication",
	}}
)

// DefaultFamilies lists the built-in families in detection priority order.
var DefaultFamilies = []Family{
	FamilyAI, FamilyHealth, FamilyEducation, FamilyBlockchain, FamilyFinance, FamilySecurity,
}

// Synonyms maps a main term to related terms used when expanding keyword
// sets for sources that match loosely (product topics).
var Synonyms = map[string][]string{
	"artificial intelligence": {"ai", "machine learning", "deep learning", "neural network", "ml"},
	"blockchain":              {"crypto", "cryptocurrency", "web3", "defi", "smart contract"},
	"health":                  {"healthcare", "medical", "medicine", "clinical", "wellness", "fitness"},
	"finance":                 {"financial", "fintech", "banking", "payment", "trading"},
	"education":               {"learning", "teaching", "training", "academic", "school"},
	"ecommerce":               {"shopping", "retail", "marketplace", "store"},
	"productivity":            {"workflow", "automation", "efficiency", "organization"},
	"communication":           {"messaging", "chat", "collaboration", "social"},
	"data":                    {"analytics", "visualization", "dashboard", "reporting"},
	"security":                {"cybersecurity", "privacy", "encryption", "authentication"},
}

// qualityWords signal substantive content.
var qualityWords = []string{
	"research", "study", "analysis", "report", "survey", "data", "statistics",
	"expert", "professional", "official", "review", "comparison", "guide",
}

// Tokenize lowercases text and splits it into letter/digit runs.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Terms extracts the distinct significant terms of text in order of first
// appearance: stop words and single characters are dropped.
func Terms(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range Tokenize(text) {
		if len([]rune(tok)) < 2 || snowballeng.IsStopWord(tok) || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Expand returns terms plus the synonyms of every synonym group that one of
// the terms belongs to. A term belongs to a group when it equals the main
// term, one of its synonyms, or a word of either. Order is deterministic:
// the input terms first, then additions in discovery order.
func Expand(terms []string) []string {
	out := append([]string(nil), terms...)
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		seen[t] = true
	}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, main := range sortedKeys(Synonyms) {
		group := append([]string{main}, Synonyms[main]...)
		if !belongs(terms, group) {
			continue
		}
		for _, g := range group {
			add(g)
		}
	}
	return out
}

func belongs(terms, group []string) bool {
	for _, t := range terms {
		for _, g := range group {
			if t == g {
				return true
			}
			for _, w := range strings.Fields(g) {
				if t == w {
					return true
				}
			}
		}
	}
	return false
}

// Families returns the families with at least one term present in text, in
// the order of the given list.
func Families(text string, families []Family) []Family {
	d := analyze(text)
	var out []Family
	for _, f := range families {
		if d.hasAny(f.Terms) {
			out = append(out, f)
		}
	}
	return out
}

// DualTopic reports the first two families present in query, for queries
// of the form "X in domain Y".
func DualTopic(query string, families []Family) (a, b Family, ok bool) {
	found := Families(query, families)
	if len(found) < 2 {
		return Family{}, Family{}, false
	}
	return found[0], found[1], true
}

// doc is an analyzed text: the token set, the stem set and a
// space-padded normalized form for phrase lookups.
type doc struct {
	words map[string]bool
	stems map[string]bool
	norm  string
}

func analyze(text string) doc {
	toks := Tokenize(text)
	d := doc{
		words: make(map[string]bool, len(toks)),
		stems: make(map[string]bool, len(toks)),
		norm:  " " + strings.Join(toks, " ") + " ",
	}
	for _, t := range toks {
		d.words[t] = true
		d.stems[snowballeng.Stem(t, false)] = true
	}
	return d
}

// has reports whether term occurs in the document. Single words match on
// the token or its stem; phrases match as whole-word sequences.
func (d doc) has(term string) bool {
	toks := Tokenize(term)
	switch len(toks) {
	case 0:
		return false
	case 1:
		t := toks[0]
		return d.words[t] || d.stems[snowballeng.Stem(t, false)]
	default:
		return strings.Contains(d.norm, " "+strings.Join(toks, " ")+" ")
	}
}

func (d doc) hasAny(terms []string) bool {
	for _, t := range terms {
		if d.has(t) {
			return true
		}
	}
	return false
}

func (d doc) count(terms []string) int {
	n := 0
	for _, t := range terms {
		if d.has(t) {
			n++
		}
	}
	return n
}
