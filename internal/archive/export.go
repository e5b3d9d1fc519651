// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// ExportEntry holds one archived record for export.
type ExportEntry struct {
	RunID         string         `json:"run_id" yaml:"run_id"`
	RunQuery      string         `json:"run_query" yaml:"run_query"`
	Source        string         `json:"source" yaml:"source"`
	Kind          string         `json:"kind" yaml:"kind"`
	Title         string         `json:"title" yaml:"title"`
	URL           string         `json:"url,omitempty" yaml:"url,omitempty"`
	Snippet       string         `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	PublishedDate string         `json:"published_date,omitempty" yaml:"published_date,omitempty"`
	Score         float64        `json:"score" yaml:"score"`
	Extra         map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

const exportLimit = 100000

// ExportYAML writes matching records to dir/export.yaml and returns the
// path. It supports the same filters as Search.
func (s *Store) ExportYAML(ctx context.Context, opts SearchOptions) (string, error) {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, "export.yaml")
	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

// ExportJSON writes matching records to dir/export.json and returns the
// path. It supports the same filters as Search.
func (s *Store) ExportJSON(ctx context.Context, opts SearchOptions) (string, error) {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, "export.json")
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

func (s *Store) exportEntries(ctx context.Context, opts SearchOptions) ([]ExportEntry, error) {
	opts.MaxResults = exportLimit
	hits, err := s.Search(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEntry, len(hits))
	for i, h := range hits {
		entries[i] = ExportEntry{
			RunID:         h.RunID,
			RunQuery:      h.RunQuery,
			Source:        string(h.Source),
			Kind:          string(h.Kind),
			Title:         h.Title,
			URL:           h.URL,
			Snippet:       h.Snippet,
			PublishedDate: h.PublishedDate,
			Score:         h.RelevanceScore,
			Extra:         h.Extra,
		}
	}
	return entries, nil
}
