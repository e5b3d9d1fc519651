// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/foursight/pkg/types"
)

// QueryFile is the on-disk representation of an aggregation call and its
// results. A saved result can be reloaded later without re-querying the
// sources.
type QueryFile struct {
	Query   QueryParams                          `yaml:"query"`
	Results map[types.Source][]types.SearchRecord `yaml:"results"`
	Summary QuerySummary                         `yaml:"summary"`
}

// QueryParams stores the call parameters in a serializable form.
type QueryParams struct {
	Text       string `yaml:"text"`
	Translated string `yaml:"translated,omitempty"`
	Context    string `yaml:"context,omitempty"`
	MaxResults int    `yaml:"max_results"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total     int                     `yaml:"total"`
	Counts    map[types.Source]int    `yaml:"counts"`
	Errors    map[types.Source]string `yaml:"errors,omitempty"`
	Duration  time.Duration           `yaml:"duration"`
	Timestamp time.Time               `yaml:"timestamp"`
}

// WriteQueryFile saves an aggregation result to a YAML file.
func WriteQueryFile(path string, maxResults int, res types.AggregationResult, now time.Time) error {
	qf := QueryFile{
		Query: QueryParams{
			Text:       res.Query,
			Translated: res.Translated,
			Context:    res.Context,
			MaxResults: maxResults,
		},
		Results: res.BySource,
		Summary: QuerySummary{
			Total:     res.Total(),
			Counts:    make(map[types.Source]int, len(res.BySource)),
			Errors:    res.Errors,
			Duration:  res.Duration,
			Timestamp: now,
		},
	}
	for src, recs := range res.BySource {
		qf.Summary.Counts[src] = len(recs)
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// Result rebuilds the aggregation result stored in the file, with All
// concatenated in source order.
func (qf *QueryFile) Result() types.AggregationResult {
	res := types.AggregationResult{
		Query:      qf.Query.Text,
		Translated: qf.Query.Translated,
		Context:    qf.Query.Context,
		BySource:   make(map[types.Source][]types.SearchRecord, len(qf.Results)),
		All:        []types.SearchRecord{},
		Errors:     qf.Summary.Errors,
		Duration:   qf.Summary.Duration,
	}
	for src, recs := range qf.Results {
		if recs == nil {
			recs = []types.SearchRecord{}
		}
		res.BySource[src] = recs
	}
	for _, src := range res.SourceNames() {
		res.All = append(res.All, res.BySource[src]...)
	}
	return res
}
