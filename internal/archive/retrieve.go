// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/foursight/pkg/types"
)

// SearchOptions holds parameters for archive searches.
type SearchOptions struct {
	// Query is the FTS5 full-text search string over titles and snippets.
	Query string

	// Source filters by provider.
	Source types.Source

	// RunID filters by run.
	RunID string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the search has no terms or filters.
func (o SearchOptions) IsEmpty() bool {
	return o.Query == "" && o.Source == "" && o.RunID == ""
}

// Hit is an archived record with the run it came from.
type Hit struct {
	types.SearchRecord `yaml:",inline"`

	RunID    string    `json:"run_id" yaml:"run_id"`
	RunQuery string    `json:"run_query" yaml:"run_query"`
	RunAt    time.Time `json:"run_at" yaml:"run_at"`
}

// Run summarizes one archived aggregation.
type Run struct {
	ID         string                  `json:"id" yaml:"id"`
	Query      string                  `json:"query" yaml:"query"`
	Translated string                  `json:"translated,omitempty" yaml:"translated,omitempty"`
	Context    string                  `json:"context,omitempty" yaml:"context,omitempty"`
	CreatedAt  time.Time               `json:"created_at" yaml:"created_at"`
	Duration   time.Duration           `json:"duration" yaml:"duration"`
	Total      int                     `json:"total" yaml:"total"`
	Sources    []types.Source          `json:"sources" yaml:"sources"`
	Errors     map[types.Source]string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Search queries archived records with optional full-text search and
// filters. Full-text results are ranked by FTS5 relevance; filter-only
// searches list the newest runs first, in their original order.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]Hit, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT r.source, r.kind, r.title, r.url, r.snippet, r.published_date,
				r.score, r.extra, r.run_id, u.query, u.created_at
			FROM records_fts
			JOIN records r ON r.rowid = records_fts.rowid
			JOIN runs u ON u.id = r.run_id
			WHERE records_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT r.source, r.kind, r.title, r.url, r.snippet, r.published_date,
				r.score, r.extra, r.run_id, u.query, u.created_at
			FROM records r
			JOIN runs u ON u.id = r.run_id
			WHERE 1=1`)
	}

	if opts.Source != "" {
		qb.WriteString(` AND r.source = ?`)
		args = append(args, string(opts.Source))
	}
	if opts.RunID != "" {
		qb.WriteString(` AND r.run_id = ?`)
		args = append(args, opts.RunID)
	}

	if useFTS {
		qb.WriteString(` ORDER BY records_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY u.created_at DESC, r.position`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h         Hit
			source    string
			kind      sql.NullString
			url       sql.NullString
			snippet   sql.NullString
			published sql.NullString
			extra     sql.NullString
			createdAt string
		)
		if err := rows.Scan(
			&source, &kind, &h.Title, &url, &snippet, &published,
			&h.RelevanceScore, &extra, &h.RunID, &h.RunQuery, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		h.Source = types.Source(source)
		h.Kind = types.Kind(kind.String)
		h.URL = url.String
		h.Snippet = snippet.String
		h.PublishedDate = published.String
		h.Extra = decodeExtra(extra)
		h.RunAt, _ = time.Parse(timeLayout, createdAt)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Runs lists archived runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, translated, context, created_at, duration_ms, total, sources, errors
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Run rebuilds the aggregation result archived under id. Every source the
// run queried is present in BySource, with an empty list when it
// contributed nothing.
func (s *Store) Run(ctx context.Context, id string) (Run, types.AggregationResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, query, translated, context, created_at, duration_ms, total, sources, errors
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, types.AggregationResult{}, fmt.Errorf("run %s not found", id)
		}
		return Run{}, types.AggregationResult{}, err
	}

	hits, err := s.Search(ctx, SearchOptions{RunID: id, MaxResults: max(run.Total, 1)})
	if err != nil {
		return Run{}, types.AggregationResult{}, err
	}

	res := types.AggregationResult{
		Query:      run.Query,
		Translated: run.Translated,
		Context:    run.Context,
		BySource:   make(map[types.Source][]types.SearchRecord),
		Errors:     run.Errors,
		Duration:   run.Duration,
	}
	for _, src := range run.Sources {
		res.BySource[src] = []types.SearchRecord{}
	}
	for _, h := range hits {
		res.BySource[h.Source] = append(res.BySource[h.Source], h.SearchRecord)
		res.All = append(res.All, h.SearchRecord)
	}
	return run, res, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run        Run
		translated sql.NullString
		runContext sql.NullString
		createdAt  string
		durationMS sql.NullInt64
		total      sql.NullInt64
		sourcesCSV sql.NullString
		errorsJSON sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Query, &translated, &runContext, &createdAt,
		&durationMS, &total, &sourcesCSV, &errorsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	run.Translated = translated.String
	run.Context = runContext.String
	run.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	run.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	run.Total = int(total.Int64)
	if sourcesCSV.String != "" {
		for _, name := range strings.Split(sourcesCSV.String, ",") {
			run.Sources = append(run.Sources, types.Source(name))
		}
	}
	if errorsJSON.Valid {
		json.Unmarshal([]byte(errorsJSON.String), &run.Errors)
	}
	return run, nil
}

func decodeExtra(extra sql.NullString) map[string]any {
	if !extra.Valid || extra.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(extra.String), &m); err != nil {
		return nil
	}
	return m
}
