// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// Supported key files: serper-api-key, producthunt-api-key, gemini-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/foursight/pkg/types"
)

// Key file names.
const (
	SerperAPIKey      = "serper-api-key"
	ProductHuntAPIKey = "producthunt-api-key"
	GeminiAPIKey      = "gemini-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply copies loaded keys into the configurations. Keys already set (from
// the config file or the environment) win over key files.
func Apply(keys map[string]string, cfg *types.AggregatorConfig, ai *types.AIConfig) {
	setSourceKey(cfg, types.SourceWeb, keys[SerperAPIKey])
	setSourceKey(cfg, types.SourceProductDirectory, keys[ProductHuntAPIKey])
	if ai != nil && ai.APIKey == "" {
		ai.APIKey = keys[GeminiAPIKey]
	}
}

func setSourceKey(cfg *types.AggregatorConfig, s types.Source, key string) {
	if cfg == nil || key == "" {
		return
	}
	sc, ok := cfg.Sources[s]
	if !ok || sc.APIKey != "" {
		return
	}
	sc.APIKey = key
	cfg.Sources[s] = sc
}
