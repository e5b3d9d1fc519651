// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/foursight/internal/archive"
	"github.com/pdiddy/foursight/internal/search"
	"github.com/pdiddy/foursight/internal/textutil"
	"github.com/pdiddy/foursight/pkg/types"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Search, inspect and export archived runs",
	Long: `Archive manages the local SQLite journal of aggregation runs recorded
with "foursight context --archive". Archived records are indexed with FTS5
so earlier context can be found again without querying the providers.`,
}

// --- search subcommand ---

var archiveSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over archived records",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		opts := searchOptsFromFlags(cmd, args)
		if opts.IsEmpty() {
			return fmt.Errorf("query or filter required: provide a search query, --source, or --run")
		}
		hits, err := store.Search(cmd.Context(), opts)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(hits)
		}
		if len(hits) == 0 {
			fmt.Println("No results found.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "%-4s  %-12s  %-50s  %-24s  %s\n", "Rank", "Source", "Title", "Run query", "Run")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
		for i, h := range hits {
			fmt.Fprintf(os.Stdout, "%-4d  %-12s  %-50s  %-24s  %s\n",
				i+1, h.Source.Label(), textutil.Truncate(h.Title, 50),
				textutil.Truncate(h.RunQuery, 24), shortID(h.RunID))
		}
		fmt.Fprintf(os.Stdout, "\n%d results\n", len(hits))
		return nil
	},
}

// --- runs subcommand ---

var archiveRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := store.Runs(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No archived runs.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(os.Stdout, "%s  %s  %3d results  %s\n",
				r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Total, r.Query)
		}
		return nil
	},
}

// --- show subcommand ---

var archiveShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print an archived run as it was returned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		run, res, err := store.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if path, _ := cmd.Flags().GetString("save"); path != "" {
			if err := search.WriteQueryFile(path, 0, res, run.CreatedAt); err != nil {
				return err
			}
		}
		return writeResult(cmd, os.Stdout, res)
	},
}

// --- export subcommand ---

var archiveExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived records to YAML or JSON",
	Long: `Export writes archived records (all of them, or those matching the
filters) to export.yaml or export.json in the archive directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		format, _ := cmd.Flags().GetString("format")
		opts := searchOptsFromFlags(cmd, args)

		var path string
		switch format {
		case "yaml", "":
			path, err = store.ExportYAML(cmd.Context(), opts)
		case "json":
			path, err = store.ExportJSON(cmd.Context(), opts)
		default:
			return fmt.Errorf("unsupported format %q: use yaml or json", format)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Exported to %s\n", path)
		return nil
	},
}

// --- delete subcommand ---

var archiveDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Remove an archived run and its records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Delete(cmd.Context(), args[0])
	},
}

// --- shared helpers ---

func openArchive(cmd *cobra.Command) (*archive.Store, error) {
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("archive-dir"); dir != "" {
		cfg.Archive.Dir = dir
	}
	return archive.Open(cfg.Archive)
}

func searchOptsFromFlags(cmd *cobra.Command, args []string) archive.SearchOptions {
	query, _ := cmd.Flags().GetString("query")
	if query == "" && len(args) > 0 {
		query = strings.Join(args, " ")
	}
	source, _ := cmd.Flags().GetString("source")
	runID, _ := cmd.Flags().GetString("run")
	limit, _ := cmd.Flags().GetInt("limit")
	return archive.SearchOptions{
		Query:      query,
		Source:     types.Source(source),
		RunID:      runID,
		MaxResults: limit,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	archiveCmd.PersistentFlags().String("archive-dir", "", "archive directory (default from config)")

	archiveSearchCmd.Flags().String("query", "", "full-text search query")
	archiveSearchCmd.Flags().String("source", "", "filter by source: web, arxiv, reddit, producthunt")
	archiveSearchCmd.Flags().String("run", "", "filter by run id")
	archiveSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	archiveSearchCmd.Flags().Bool("json", false, "output results as JSON")

	archiveRunsCmd.Flags().Int("limit", 0, "maximum runs (0 = use default)")

	archiveShowCmd.Flags().Bool("json", false, "output the run as JSON")
	archiveShowCmd.Flags().Bool("csl", false, "output citable records as CSL-YAML")
	archiveShowCmd.Flags().String("save", "", "also write the run to a YAML query file")

	archiveExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	archiveExportCmd.Flags().String("query", "", "full-text search filter for partial export")
	archiveExportCmd.Flags().String("source", "", "filter by source for partial export")
	archiveExportCmd.Flags().String("run", "", "filter by run id for partial export")

	archiveCmd.AddCommand(archiveSearchCmd)
	archiveCmd.AddCommand(archiveRunsCmd)
	archiveCmd.AddCommand(archiveShowCmd)
	archiveCmd.AddCommand(archiveExportCmd)
	archiveCmd.AddCommand(archiveDeleteCmd)

	rootCmd.AddCommand(archiveCmd)
}
