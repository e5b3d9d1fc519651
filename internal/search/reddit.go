// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/foursight/internal/rank"
	"github.com/pdiddy/foursight/pkg/types"
)

// redditAPIBase is the discussion-board host. Declared as a var so tests
// can substitute an httptest server.
var redditAPIBase = "https://www.reddit.com"

// redditUserAgent is sent instead of the configured agent: the public
// search endpoint throttles non-browser clients aggressively.
const redditUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// redditMaxSubreddits bounds the subreddit filter of the topic strategy.
const redditMaxSubreddits = 5

// RedditAdapter searches Reddit's public JSON endpoint, which needs no
// credential.
type RedditAdapter struct {
	Env

	// TimeFilter is Reddit's t parameter (hour, day, week, month, year,
	// all). Default "year".
	TimeFilter string

	// MinScore applies to queries scored by the generic ranker; dual-topic
	// queries use the ranker's DualTopicCutoff instead.
	MinScore float64
}

// Name returns the source identifier.
func (a *RedditAdapter) Name() types.Source { return types.SourceDiscussionBoard }

// Kind returns the record kind this adapter produces.
func (a *RedditAdapter) Kind() types.Kind { return types.KindSocial }

// redditSearch is one search.json request.
type redditSearch struct {
	strategy string
	query    string
	sort     string
	time     string
	limit    int
}

type redditListing struct {
	Data struct {
		Children []json.RawMessage `json:"children"`
	} `json:"data"`
}

type redditChild struct {
	Data redditPost `json:"data"`
}

type redditPost struct {
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Over18      bool    `json:"over_18"`
}

// Search runs up to three strategies (subreddit hints for known topics,
// topic subreddits, a simplified popular-posts search) until enough
// relevant posts are collected. Strategy failures are joined into the
// returned error; the posts gathered by the others are kept.
func (a *RedditAdapter) Search(ctx context.Context, q Query) ([]types.SearchRecord, error) {
	if q.IsEmpty() {
		return nil, nil
	}
	text := q.Effective()
	n := q.limit()
	tf := a.TimeFilter
	if tf == "" {
		tf = "year"
	}

	searches := []redditSearch{
		redditDirectSearch(text, n, tf),
		redditTopicSearch(text, n, tf),
		redditFallbackSearch(text, n),
	}

	var kept []types.SearchRecord
	var errs []error
	for _, s := range searches {
		if len(kept) >= n {
			break
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		posts, err := a.fetchPosts(ctx, s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s strategy: %w", s.strategy, err))
			continue
		}
		scored := a.score(posts, q)
		a.logger().Debug("reddit strategy",
			zap.String("strategy", s.strategy),
			zap.String("query", s.query),
			zap.Int("posts", len(posts)),
			zap.Int("kept", len(scored)))
		kept, _ = deduplicate(append(kept, scored...))
	}
	return rank.Rank(kept), errors.Join(errs...)
}

func (a *RedditAdapter) fetchPosts(ctx context.Context, s redditSearch) ([]types.SearchRecord, error) {
	params := url.Values{
		"q":               {s.query},
		"sort":            {s.sort},
		"t":               {s.time},
		"limit":           {strconv.Itoa(s.limit)},
		"include_over_18": {"off"},
	}
	body, err := a.get(ctx, redditAPIBase+"/search.json?"+params.Encode(), map[string]string{
		"User-Agent":      redditUserAgent,
		"Accept":          "application/json",
		"Accept-Language": "en-US,en;q=0.5",
	})
	if err != nil {
		return nil, err
	}

	var listing redditListing
	if err := decodeJSON(body, &listing); err != nil {
		return nil, err
	}

	children := decodeEach[redditChild](a.logger(), types.SourceDiscussionBoard, listing.Data.Children)
	records := make([]types.SearchRecord, 0, len(children))
	for _, c := range children {
		p := c.Data
		if p.Over18 || (p.Title == "" && p.Permalink == "") {
			continue
		}
		snippet := p.Selftext
		if strings.TrimSpace(snippet) == "" {
			snippet = p.Title
		}
		link := ""
		if p.Permalink != "" {
			link = "https://www.reddit.com" + p.Permalink
		}
		rec := newRecord(types.SourceDiscussionBoard, types.KindSocial, p.Title, link, snippet)
		if p.CreatedUTC > 0 {
			rec.PublishedDate = time.Unix(int64(p.CreatedUTC), 0).UTC().Format(types.DateLayout)
		}
		setExtra(&rec, types.ExtraSubreddit, p.Subreddit)
		setExtra(&rec, types.ExtraVotes, p.Score)
		setExtra(&rec, types.ExtraComments, p.NumComments)
		records = append(records, rec)
	}
	return records, nil
}

// score keeps the relevant posts. A query spanning two topic families is
// scored with the dual-topic model and held to its cutoff, regardless of
// popularity; other queries go through the generic ranker.
func (a *RedditAdapter) score(posts []types.SearchRecord, q Query) []types.SearchRecord {
	r := a.ranker()
	fa, fb, dual := r.DualFamilies(q.Effective())
	if !dual {
		queryTerms, contextTerms := q.terms()
		return r.Select(posts, queryTerms, contextTerms, a.MinScore)
	}

	cutoff := r.Config().DualTopicCutoff
	out := make([]types.SearchRecord, 0, len(posts))
	for _, p := range posts {
		s := rank.DualTopicScore(p.Title, p.Snippet, fa, fb)
		if s < cutoff || s == 0 {
			continue
		}
		rec := p.Clone()
		rec.RelevanceScore = rank.Normalize(float64(s), 5)
		setExtra(&rec, "topic_score", s)
		out = append(out, rec)
	}
	return rank.Rank(out)
}

// redditDirectSearch targets known topic combinations with subreddit
// hints and a refined query; other queries are sent as they are.
func redditDirectSearch(text string, n int, timeFilter string) redditSearch {
	lower := strings.ToLower(text)
	words := rank.Tokenize(lower)
	has := func(terms ...string) bool {
		for _, t := range terms {
			if strings.Contains(lower, t) {
				return true
			}
		}
		return false
	}
	ai := strings.Contains(lower, "artificial intelligence") || slices.Contains(words, "ai")

	var subs []string
	refined := text
	switch {
	case ai && has("education", "learning"):
		subs, refined = []string{"artificial", "MachineLearning", "education", "edtech", "OnlineCourses"}, "AI education learning"
	case ai && has("health", "healthcare", "medical"):
		subs, refined = []string{"artificial", "MachineLearning", "HealthTech", "medicine", "healthcare"}, "AI healthcare medical"
	case ai:
		subs, refined = []string{"artificial", "MachineLearning", "AINews", "singularity"}, "artificial intelligence"
	case has("blockchain", "crypto"):
		subs, refined = []string{"CryptoTechnology", "blockchain", "CryptoCurrency"}, "blockchain technology"
	case has("education", "learning", "teaching"):
		subs, refined = []string{"education", "edtech", "OnlineCourses", "teaching"}, "education technology"
	}
	return redditSearch{
		strategy: "direct",
		query:    subredditQuery(subs, refined),
		sort:     "relevance",
		time:     timeFilter,
		limit:    n * 3,
	}
}

// redditTopicSubreddits maps query words to subreddits about them.
var redditTopicSubreddits = map[string][]string{
	"ai":           {"artificial", "MachineLearning", "AINews", "singularity", "deeplearning"},
	"intelligence": {"artificial", "MachineLearning", "AINews", "singularity", "deeplearning"},
	"artificial":   {"artificial", "MachineLearning", "AINews", "singularity", "deeplearning"},
	"machine":      {"MachineLearning", "artificial", "deeplearning", "datascience"},
	"learning":     {"MachineLearning", "learnprogramming", "education", "OnlineCourses"},
	"education":    {"education", "edtech", "OnlineCourses", "teaching", "learnprogramming"},
	"health":       {"HealthTech", "medicine", "healthcare", "Health", "medical"},
	"healthcare":   {"healthcare", "medicine", "HealthTech", "medical"},
	"medical":      {"medicine", "healthcare", "medical", "HealthTech"},
	"blockchain":   {"CryptoTechnology", "blockchain", "CryptoCurrency", "Bitcoin"},
	"crypto":       {"CryptoCurrency", "CryptoTechnology", "Bitcoin", "blockchain"},
	"technology":   {"technology", "tech", "Futurology", "gadgets"},
	"innovation":   {"Futurology", "technology", "tech", "startups"},
	"business":     {"business", "startups", "Entrepreneur", "smallbusiness"},
	"programming":  {"programming", "learnprogramming", "webdev", "coding"},
	"data":         {"datascience", "MachineLearning", "bigdata", "analytics"},
}

var redditDefaultSubreddits = []string{"technology", "Futurology", "science", "tech"}

// redditTopicSearch restricts the query to subreddits associated with its
// words, in order of first mention.
func redditTopicSearch(text string, n int, timeFilter string) redditSearch {
	var subs []string
	for _, w := range rank.Tokenize(text) {
		for _, s := range redditTopicSubreddits[w] {
			if len(subs) < redditMaxSubreddits && !slices.Contains(subs, s) {
				subs = append(subs, s)
			}
		}
	}
	if len(subs) == 0 {
		subs = redditDefaultSubreddits
	}
	return redditSearch{
		strategy: "topics",
		query:    subredditQuery(subs, text),
		sort:     "relevance",
		time:     timeFilter,
		limit:    n * 2,
	}
}

var redditImportantTerms = []string{
	"ai", "artificial", "intelligence", "machine", "learning",
	"blockchain", "health", "healthcare", "education", "technology",
}

// redditFallbackSearch sends only the well-known terms of the query and
// asks for the year's top posts.
func redditFallbackSearch(text string, n int) redditSearch {
	words := rank.Tokenize(text)
	var kept []string
	for _, t := range redditImportantTerms {
		if slices.Contains(words, t) {
			kept = append(kept, t)
		}
	}
	query := strings.Join(kept, " ")
	if query == "" {
		query = text
	}
	return redditSearch{
		strategy: "fallback",
		query:    query,
		sort:     "top",
		time:     "year",
		limit:    n * 2,
	}
}

func subredditQuery(subs []string, query string) string {
	if len(subs) == 0 {
		return query
	}
	parts := make([]string, len(subs))
	for i, s := range subs {
		parts[i] = "subreddit:" + s
	}
	return "(" + strings.Join(parts, " OR ") + ") " + query
}
