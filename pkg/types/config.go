package types

import "time"

// HTTPConfig holds shared HTTP settings used by every adapter.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`

	// UserAgent is the User-Agent header sent with API requests
	// (e.g. "foursight/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxAttempts bounds the retry wrapper (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
}

// SourceConfig holds per-source settings.
type SourceConfig struct {
	// Enabled controls whether the aggregator queries the source at all.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// APIKey is the credential for the source. Sources that require one
	// return nothing when it is empty.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxResults is the per-source default when callers pass zero.
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// MinScore drops ranked records below this score. Zero uses the
	// ranker default.
	MinScore float64 `json:"min_score" yaml:"min_score" mapstructure:"min_score"`
}

// RankConfig holds every tunable weight of the relevance model.
type RankConfig struct {
	// NeutralScore is the base score when a query has no usable terms.
	NeutralScore float64 `json:"neutral_score" yaml:"neutral_score" mapstructure:"neutral_score"`

	// TitleWeight scales the fraction of query terms found in the title.
	TitleWeight float64 `json:"title_weight" yaml:"title_weight" mapstructure:"title_weight"`

	// ContextWeight scales the fraction of context terms found in the text.
	ContextWeight float64 `json:"context_weight" yaml:"context_weight" mapstructure:"context_weight"`

	// CoLocationBonus is added when one sentence holds terms of both topic
	// families of a dual-topic query.
	CoLocationBonus float64 `json:"co_location_bonus" yaml:"co_location_bonus" mapstructure:"co_location_bonus"`

	// VoteDivisor and VoteCap normalize popularity: min(votes/divisor, cap).
	VoteDivisor float64 `json:"vote_divisor" yaml:"vote_divisor" mapstructure:"vote_divisor"`
	VoteCap     float64 `json:"vote_cap" yaml:"vote_cap" mapstructure:"vote_cap"`

	// PopularityWeight maps the normalized vote term into the [0,1] score.
	PopularityWeight float64 `json:"popularity_weight" yaml:"popularity_weight" mapstructure:"popularity_weight"`

	// RecentBonus applies to items younger than RecentDays, FreshBonus to
	// items younger than FreshDays.
	RecentBonus float64 `json:"recent_bonus" yaml:"recent_bonus" mapstructure:"recent_bonus"`
	FreshBonus  float64 `json:"fresh_bonus" yaml:"fresh_bonus" mapstructure:"fresh_bonus"`
	RecentDays  int     `json:"recent_days" yaml:"recent_days" mapstructure:"recent_days"`
	FreshDays   int     `json:"fresh_days" yaml:"fresh_days" mapstructure:"fresh_days"`

	// ShortSnippetRunes and ShortSnippetPenalty suppress low-content noise
	// that matched no query term.
	ShortSnippetRunes   int     `json:"short_snippet_runes" yaml:"short_snippet_runes" mapstructure:"short_snippet_runes"`
	ShortSnippetPenalty float64 `json:"short_snippet_penalty" yaml:"short_snippet_penalty" mapstructure:"short_snippet_penalty"`

	// QualityBonus is added (once, scaled by hits up to three) for words
	// such as "study" or "analysis".
	QualityBonus float64 `json:"quality_bonus" yaml:"quality_bonus" mapstructure:"quality_bonus"`

	// MinScore is the default threshold for the [0,1] score.
	MinScore float64 `json:"min_score" yaml:"min_score" mapstructure:"min_score"`

	// DualTopicCutoff is the minimum integer score of the discussion-board
	// dual-topic model.
	DualTopicCutoff int `json:"dual_topic_cutoff" yaml:"dual_topic_cutoff" mapstructure:"dual_topic_cutoff"`

	// ProductTitleBonus, ProductRecentBonus and ProductFreshBonus weight the
	// product-directory score.
	ProductTitleBonus  float64 `json:"product_title_bonus" yaml:"product_title_bonus" mapstructure:"product_title_bonus"`
	ProductRecentBonus float64 `json:"product_recent_bonus" yaml:"product_recent_bonus" mapstructure:"product_recent_bonus"`
	ProductFreshBonus  float64 `json:"product_fresh_bonus" yaml:"product_fresh_bonus" mapstructure:"product_fresh_bonus"`
}

// DefaultRankConfig returns the tuned weights used when nothing is
// configured.
func DefaultRankConfig() RankConfig {
	return RankConfig{
		NeutralScore:        0.5,
		TitleWeight:         0.4,
		ContextWeight:       0.1,
		CoLocationBonus:     0.2,
		VoteDivisor:         100,
		VoteCap:             5,
		PopularityWeight:    0.02,
		RecentBonus:         0.15,
		FreshBonus:          0.05,
		RecentDays:          30,
		FreshDays:           90,
		ShortSnippetRunes:   50,
		ShortSnippetPenalty: 0.2,
		QualityBonus:        0.1,
		MinScore:            0.1,
		DualTopicCutoff:     3,
		ProductTitleBonus:   2,
		ProductRecentBonus:  3,
		ProductFreshBonus:   1,
	}
}

// CacheConfig holds Result Cache settings.
type CacheConfig struct {
	// TTL is how long a cached list stays valid (default 5m).
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`

	// MaxEntries bounds the in-memory cache; the least recently used entry
	// is evicted beyond it. Zero means unbounded.
	MaxEntries int `json:"max_entries" yaml:"max_entries" mapstructure:"max_entries"`

	// SweepInterval starts a background expiry sweep when positive.
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval" mapstructure:"sweep_interval"`

	// Dir enables the persistent LevelDB tier when non-empty.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// AggregatorConfig holds settings for the context aggregator.
type AggregatorConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxResults is the per-source default when callers pass zero (default 5).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// Timeout bounds one whole GetContext call; sources still running at the
	// deadline contribute an empty list (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// RecentYears is the submission window of date-filtered preprint
	// queries (default 3).
	RecentYears int `json:"recent_years" yaml:"recent_years" mapstructure:"recent_years"`

	// RecentWindow restricts web results to this age when positive
	// (default 12 months).
	RecentWindow time.Duration `json:"recent_window" yaml:"recent_window" mapstructure:"recent_window"`

	// GlobalRerank re-sorts the flattened list by score instead of keeping
	// per-source concatenation order.
	GlobalRerank bool `json:"global_rerank" yaml:"global_rerank" mapstructure:"global_rerank"`

	// Sources maps each source to its settings.
	Sources map[Source]SourceConfig `json:"sources" yaml:"sources" mapstructure:"sources"`

	Rank  RankConfig  `json:"rank" yaml:"rank" mapstructure:"rank"`
	Cache CacheConfig `json:"cache" yaml:"cache" mapstructure:"cache"`
}

// Source returns the settings for s, or a zero (disabled) config.
func (c AggregatorConfig) Source(s Source) SourceConfig {
	return c.Sources[s]
}

// DefaultAggregatorConfig returns a configuration with every source enabled
// and no credentials.
func DefaultAggregatorConfig() AggregatorConfig {
	sources := make(map[Source]SourceConfig, len(Sources))
	for _, s := range Sources {
		sources[s] = SourceConfig{Enabled: true}
	}
	return AggregatorConfig{
		HTTPConfig: HTTPConfig{
			Timeout:     15 * time.Second,
			UserAgent:   "foursight/0.1",
			MaxAttempts: 3,
		},
		MaxResults:   5,
		Timeout:      30 * time.Second,
		RecentYears:  3,
		RecentWindow: 365 * 24 * time.Hour,
		Sources:      sources,
		Rank:         DefaultRankConfig(),
		Cache: CacheConfig{
			TTL:        5 * time.Minute,
			MaxEntries: 512,
		},
	}
}

// AIConfig holds settings for the text-generation collaborator.
type AIConfig struct {
	// Model is the model identifier (e.g. "gemini-2.0-flash").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of attempts for failed calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// MaxTokens is the default output budget (default 1000).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ArchiveConfig holds settings for the run archive.
type ArchiveConfig struct {
	// Dir holds the SQLite database and exports (default "data/archive").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default limit of archive searches (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}
