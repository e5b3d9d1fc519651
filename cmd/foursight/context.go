// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/foursight/internal/archive"
	"github.com/pdiddy/foursight/internal/cache"
	"github.com/pdiddy/foursight/internal/llm"
	"github.com/pdiddy/foursight/internal/search"
	"github.com/pdiddy/foursight/internal/translate"
	"github.com/pdiddy/foursight/pkg/types"
)

var contextCmd = &cobra.Command{
	Use:   "context [query]",
	Short: "Gather ranked context for a query from every source",
	Long: `Context queries the web, arXiv, Reddit and Product Hunt in parallel and
prints one ranked list per source. Sources without credentials, or that
fail or time out, contribute an empty list and a warning.

Use --load to print a previously saved query file instead of searching.`,
	RunE: runContext,
}

func runContext(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	if query == "" {
		query = strings.Join(args, " ")
	}
	businessContext, _ := cmd.Flags().GetString("context")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	loadPath, _ := cmd.Flags().GetString("load")

	var res types.AggregationResult
	if loadPath != "" {
		qf, err := search.ReadQueryFile(loadPath)
		if err != nil {
			return err
		}
		res = qf.Result()
	} else {
		if strings.TrimSpace(query) == "" {
			return fmt.Errorf("query required: pass it as arguments or with --query")
		}

		cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
		if err != nil {
			return err
		}
		applyContextFlags(cmd, &cfg)

		reg := prometheus.NewRegistry()
		agg, closeFn, err := newAggregator(cmd.Context(), cfg, useLLM(cmd), reg)
		if err != nil {
			return err
		}
		defer closeFn()

		res = agg.GetContext(cmd.Context(), query, maxResults, businessContext)

		if path, _ := cmd.Flags().GetString("metrics-out"); path != "" {
			if err := search.WriteMetrics(path, reg); err != nil {
				logger.Warn("writing metrics", zap.String("path", path), zap.Error(err))
			}
		}
		if path, _ := cmd.Flags().GetString("save"); path != "" {
			if err := search.WriteQueryFile(path, maxResults, res, time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Saved query file: %s\n", path)
		}
		if save, _ := cmd.Flags().GetBool("archive"); save {
			id, err := archiveResult(cmd.Context(), cfg.Archive, res)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Archived run: %s\n", id)
		}
	}

	return writeResult(cmd, os.Stdout, res)
}

// applyContextFlags lets command-line flags override configured values.
func applyContextFlags(cmd *cobra.Command, cfg *appConfig) {
	if cmd.Flags().Changed("timeout") {
		cfg.Aggregator.Timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	if cmd.Flags().Changed("rerank") {
		cfg.Aggregator.GlobalRerank, _ = cmd.Flags().GetBool("rerank")
	}
	if cmd.Flags().Changed("cache-dir") {
		cfg.Aggregator.Cache.Dir, _ = cmd.Flags().GetString("cache-dir")
	}
	if cmd.Flags().Changed("archive-dir") {
		cfg.Archive.Dir, _ = cmd.Flags().GetString("archive-dir")
	}
	if only, _ := cmd.Flags().GetStringSlice("sources"); len(only) > 0 {
		for s, sc := range cfg.Aggregator.Sources {
			sc.Enabled = false
			for _, name := range only {
				if types.Source(name) == s {
					sc.Enabled = true
				}
			}
			cfg.Aggregator.Sources[s] = sc
		}
	}
}

func useLLM(cmd *cobra.Command) bool {
	on, _ := cmd.Flags().GetBool("llm-translate")
	return on
}

// newAggregator wires the adapters, cache, translator and metrics described
// by cfg. The returned function releases the cache.
func newAggregator(ctx context.Context, cfg appConfig, withLLM bool, reg prometheus.Registerer) (*search.Aggregator, func(), error) {
	c, closeCache, err := cache.New(cfg.Aggregator.Cache, cache.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}

	tr, err := newTranslator(ctx, cfg.AI, withLLM)
	if err != nil {
		closeCache()
		return nil, nil, err
	}

	adapters := search.NewAdapters(cfg.Aggregator, search.Env{Log: logger})
	agg := search.NewAggregator(cfg.Aggregator, adapters,
		search.WithCache(c),
		search.WithTranslator(tr),
		search.WithLogger(logger),
		search.WithMetrics(search.NewMetrics(reg)),
	)
	return agg, func() {
		if err := closeCache(); err != nil {
			logger.Warn("closing cache", zap.Error(err))
		}
	}, nil
}

// newTranslator returns the dictionary translator, or the model-backed one
// when withLLM is set and a credential is configured.
func newTranslator(ctx context.Context, ai types.AIConfig, withLLM bool) (translate.Translator, error) {
	dict := translate.NewDictionary()
	if !withLLM {
		return dict, nil
	}
	completer, err := llm.NewGenAI(ctx, ai, logger)
	if errors.Is(err, llm.ErrNoAPIKey) {
		logger.Warn("no Gemini API key configured, using dictionary translation")
		return dict, nil
	}
	if err != nil {
		return nil, err
	}
	return translate.NewLLM(completer, dict, logger), nil
}

func archiveResult(ctx context.Context, cfg types.ArchiveConfig, res types.AggregationResult) (string, error) {
	store, err := archive.Open(cfg)
	if err != nil {
		return "", err
	}
	defer store.Close()
	return store.Save(ctx, res, time.Now())
}

// writeResult renders res in the format selected by --json or --csl.
func writeResult(cmd *cobra.Command, w io.Writer, res types.AggregationResult) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	asCSL, _ := cmd.Flags().GetBool("csl")
	switch {
	case asJSON && asCSL:
		return fmt.Errorf("--json and --csl are mutually exclusive")
	case asJSON:
		return search.FormatJSON(res, w)
	case asCSL:
		return search.FormatCSL(res, w)
	default:
		search.FormatTable(res, w)
		return nil
	}
}

// addContextFlags defines the flags of the context command on cmd.
func addContextFlags(cmd *cobra.Command) {
	cmd.Flags().String("query", "", "query text (alternative to positional arguments)")
	cmd.Flags().String("context", "", "business context used to weight relevance")
	cmd.Flags().Int("max-results", 0, "maximum results per source (0 = configured default)")
	cmd.Flags().StringSlice("sources", nil, "restrict to these sources: web, arxiv, reddit, producthunt")
	cmd.Flags().Duration("timeout", 0, "overall deadline for the aggregation")
	cmd.Flags().Bool("rerank", false, "sort the combined list by score instead of by source")
	cmd.Flags().Bool("llm-translate", false, "translate non-English queries with Gemini (falls back to the dictionary)")
	cmd.Flags().String("cache-dir", "", "enable the persistent cache tier in this directory")
	cmd.Flags().Bool("json", false, "output the result as JSON")
	cmd.Flags().Bool("csl", false, "output citable records as CSL-YAML")
	cmd.Flags().String("save", "", "save the result to a YAML query file")
	cmd.Flags().String("load", "", "print a saved query file instead of searching")
	cmd.Flags().Bool("archive", false, "record the run in the local archive")
	cmd.Flags().String("archive-dir", "", "archive directory (default from config)")
	cmd.Flags().String("metrics-out", "", "write Prometheus metrics for the run to this file")
}

func init() {
	addContextFlags(contextCmd)
	rootCmd.AddCommand(contextCmd)
}
