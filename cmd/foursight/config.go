// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/pdiddy/foursight/internal/secrets"
	"github.com/pdiddy/foursight/pkg/types"
)

// appConfig is everything the subcommands read from configuration.
type appConfig struct {
	Aggregator types.AggregatorConfig `mapstructure:"aggregator"`
	AI         types.AIConfig         `mapstructure:"ai"`
	Archive    types.ArchiveConfig    `mapstructure:"archive"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		Aggregator: types.DefaultAggregatorConfig(),
		AI:         types.AIConfig{MaxRetries: 3, MaxTokens: 1000},
		Archive:    types.ArchiveConfig{Dir: "data/archive", MaxResults: 20},
	}
}

// credentialEnv maps credential keys to the environment variables checked
// for them, in order.
var credentialEnv = map[string][]string{
	"credentials.serper":      {"FOURSIGHT_SERPER_API_KEY", "SERPER_API_KEY"},
	"credentials.producthunt": {"FOURSIGHT_PRODUCTHUNT_API_KEY", "PRODUCTHUNT_API_KEY"},
	"credentials.gemini":      {"FOURSIGHT_GEMINI_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY"},
}

// loadConfig overlays the configuration held by v on the defaults, then
// fills missing credentials from the environment and from key files.
// Entries under aggregator.sources replace the default entry for that
// source as a whole.
func loadConfig(v *viper.Viper, keys map[string]string) (appConfig, error) {
	cfg := defaultAppConfig()
	for _, section := range []struct {
		key string
		out any
	}{
		{"aggregator", &cfg.Aggregator},
		{"ai", &cfg.AI},
		{"archive", &cfg.Archive},
	} {
		if !v.IsSet(section.key) {
			continue
		}
		if err := v.UnmarshalKey(section.key, section.out); err != nil {
			return appConfig{}, fmt.Errorf("parsing %s configuration: %w", section.key, err)
		}
	}

	for key, envs := range credentialEnv {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return appConfig{}, fmt.Errorf("binding %s: %w", key, err)
		}
	}
	env := map[string]string{
		secrets.SerperAPIKey:      v.GetString("credentials.serper"),
		secrets.ProductHuntAPIKey: v.GetString("credentials.producthunt"),
		secrets.GeminiAPIKey:      v.GetString("credentials.gemini"),
	}
	secrets.Apply(env, &cfg.Aggregator, &cfg.AI)
	secrets.Apply(keys, &cfg.Aggregator, &cfg.AI)

	for s := range cfg.Aggregator.Sources {
		if !s.Valid() {
			return appConfig{}, fmt.Errorf("unknown source %q in configuration", s)
		}
	}
	return cfg, nil
}
