// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/foursight/internal/rank"
	"github.com/pdiddy/foursight/internal/textutil"
	"github.com/pdiddy/foursight/pkg/types"
)

// productHuntAPIBase is the Product Hunt GraphQL endpoint. Declared as a
// var so tests can substitute an httptest server.
var productHuntAPIBase = "https://api.producthunt.com/v2/api/graphql"

const (
	productMaxKeywords  = 15
	productMaxTopics    = 3
	productTopicPage    = 10
	productScanPage     = 30
	productDescriptionN = 200
)

// productPostsQuery lists posts, optionally restricted to one topic slug.
const productPostsQuery = `query Posts($first: Int!, $order: PostsOrder!, $topic: String) {
  posts(first: $first, order: $order, topic: $topic) {
    edges {
      node {
        id
        name
        tagline
        description
        url
        votesCount
        commentsCount
        createdAt
        website
        topics(first: 5) { edges { node { name } } }
      }
    }
  }
}`

// productTopics maps keywords onto the directory's topic slugs.
var productTopics = map[string]string{
	"ai":                      "artificial-intelligence",
	"artificial intelligence": "artificial-intelligence",
	"machine learning":        "artificial-intelligence",
	"blockchain":              "blockchain",
	"crypto":                  "cryptocurrency",
	"health":                  "health-fitness",
	"healthcare":              "health-fitness",
	"medical":                 "health-fitness",
	"finance":                 "finance",
	"fintech":                 "finance",
	"productivity":            "productivity",
	"education":               "education",
	"ecommerce":               "e-commerce",
	"social":                  "social-media",
	"design":                  "design-tools",
	"developer":               "developer-tools",
	"marketing":               "marketing",
	"analytics":               "analytics",
}

var productDefaultTopics = []string{"artificial-intelligence", "productivity", "tech"}

// productRelevantTopics admit a scanned post even without a keyword hit.
var productRelevantTopics = []string{"artificial intelligence", "ai", "machine learning", "blockchain", "health", "productivity"}

// ProductHuntAdapter queries the Product Hunt GraphQL API.
type ProductHuntAdapter struct {
	Env
	APIKey string

	// MinScore drops products whose normalized score falls below it; zero
	// uses the ranker default.
	MinScore float64
}

// Name returns the source identifier.
func (a *ProductHuntAdapter) Name() types.Source { return types.SourceProductDirectory }

// Kind returns the record kind this adapter produces.
func (a *ProductHuntAdapter) Kind() types.Kind { return types.KindProduct }

type productRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type productResponse struct {
	Data struct {
		Posts struct {
			Edges []json.RawMessage `json:"edges"`
		} `json:"posts"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type productEdge struct {
	Node productNode `json:"node"`
}

type productNode struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Tagline       string `json:"tagline"`
	Description   string `json:"description"`
	URL           string `json:"url"`
	VotesCount    int    `json:"votesCount"`
	CommentsCount int    `json:"commentsCount"`
	CreatedAt     string `json:"createdAt"`
	Website       string `json:"website"`
	Topics        struct {
		Edges []struct {
			Node struct {
				Name string `json:"name"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"topics"`
}

// Search looks up the topics matching the query's keywords first. Only
// when that yields nothing are the newest and the most voted posts
// scanned and filtered client-side.
func (a *ProductHuntAdapter) Search(ctx context.Context, q Query) ([]types.SearchRecord, error) {
	if a.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if q.IsEmpty() {
		return nil, nil
	}

	keywords := productKeywords(q.Effective(), q.Context)
	var errs []error

	var found []types.SearchRecord
	for _, topic := range productTopicSlugs(keywords) {
		recs, err := a.posts(ctx, productScanVars(productTopicPage, "NEWEST", topic))
		if err != nil {
			errs = append(errs, fmt.Errorf("topic %s: %w", topic, err))
			continue
		}
		found = append(found, recs...)
	}

	if len(found) == 0 {
		for _, order := range []string{"NEWEST", "VOTES"} {
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				break
			}
			recs, err := a.posts(ctx, productScanVars(productScanPage, order, ""))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s posts: %w", strings.ToLower(order), err))
				continue
			}
			for _, rec := range recs {
				if productRelevant(rec, keywords) {
					found = append(found, rec)
				}
			}
		}
	}

	unique, removed := deduplicate(found)
	r := a.ranker()
	scored := make([]types.SearchRecord, len(unique))
	for i, rec := range unique {
		scored[i] = rec.Clone()
		scored[i].RelevanceScore = rank.Normalize(r.ProductScore(rec, keywords), 5)
	}
	minScore := a.MinScore
	if minScore <= 0 {
		minScore = r.Config().MinScore
	}
	ranked := rank.Rank(r.Filter(scored, nil, minScore))

	a.logger().Debug("product results",
		zap.Strings("keywords", keywords),
		zap.Int("found", len(found)),
		zap.Int("duplicates", removed),
		zap.Int("kept", len(ranked)))
	return ranked, errors.Join(errs...)
}

func productScanVars(first int, order, topic string) map[string]any {
	vars := map[string]any{"first": first, "order": order}
	if topic != "" {
		vars["topic"] = topic
	}
	return vars
}

func (a *ProductHuntAdapter) posts(ctx context.Context, vars map[string]any) ([]types.SearchRecord, error) {
	var resp productResponse
	err := a.postJSON(ctx, productHuntAPIBase,
		map[string]string{"Authorization": "Bearer " + a.APIKey},
		productRequest{Query: productPostsQuery, Variables: vars}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("graphql: %s", resp.Errors[0].Message)
	}

	edges := decodeEach[productEdge](a.logger(), types.SourceProductDirectory, resp.Data.Posts.Edges)
	records := make([]types.SearchRecord, 0, len(edges))
	for _, e := range edges {
		records = append(records, e.Node.record())
	}
	return records, nil
}

func (n productNode) record() types.SearchRecord {
	snippet := n.Tagline
	if d := strings.TrimSpace(n.Description); d != "" && d != strings.TrimSpace(n.Tagline) {
		snippet += "\n\n" + textutil.Truncate(textutil.PlainText(d), productDescriptionN)
	}
	rec := newRecord(types.SourceProductDirectory, types.KindProduct, n.Name, n.URL, snippet)
	rec.PublishedDate = atomDate(n.CreatedAt)

	var topics []string
	for _, e := range n.Topics.Edges {
		if name := strings.TrimSpace(e.Node.Name); name != "" {
			topics = append(topics, name)
		}
	}
	setExtra(&rec, types.ExtraTopics, topics)
	setExtra(&rec, types.ExtraVotes, n.VotesCount)
	setExtra(&rec, types.ExtraComments, n.CommentsCount)
	setExtra(&rec, types.ExtraWebsite, n.Website)
	setExtra(&rec, "id", n.ID)
	return rec
}

// productKeywords extracts the significant terms of the query and the
// context, expanded with their synonym groups.
func productKeywords(query, context string) []string {
	var terms []string
	for _, t := range rank.Terms(query + " " + context) {
		if len([]rune(t)) >= 3 || t == "ai" || t == "ml" {
			terms = append(terms, t)
		}
	}
	kw := rank.Expand(terms)
	if len(kw) > productMaxKeywords {
		kw = kw[:productMaxKeywords]
	}
	return kw
}

// productTopicSlugs maps keywords to topic slugs, at most productMaxTopics
// of them, falling back to broad technology topics.
func productTopicSlugs(keywords []string) []string {
	var slugs []string
	for _, k := range keywords {
		words := strings.Fields(k)
		for _, key := range sortedTopicKeys() {
			if k != key && !slices.Contains(words, key) {
				continue
			}
			if slug := productTopics[key]; !slices.Contains(slugs, slug) {
				slugs = append(slugs, slug)
			}
		}
	}
	if len(slugs) == 0 {
		return productDefaultTopics
	}
	if len(slugs) > productMaxTopics {
		slugs = slugs[:productMaxTopics]
	}
	return slugs
}

func sortedTopicKeys() []string {
	keys := make([]string, 0, len(productTopics))
	for k := range productTopics {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// productRelevant admits a scanned post that matches a keyword or carries
// one of the broadly relevant topics.
func productRelevant(rec types.SearchRecord, keywords []string) bool {
	if rank.Matched(rec, keywords) > 0 {
		return true
	}
	for _, topic := range rec.StringList(types.ExtraTopics) {
		t := strings.ToLower(topic)
		for _, rel := range productRelevantTopics {
			if t == rel || slices.Contains(rank.Tokenize(t), rel) || strings.Contains(t, rel+" ") {
				return true
			}
		}
	}
	return false
}
