// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the foursight CLI. It gathers
// context for a query from the web, arXiv, Reddit and Product Hunt, ranks
// it, and prints, saves or archives the result.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/foursight/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from the secrets directory at startup.
var loadedSecrets map[string]string

// logger is built in PersistentPreRunE from --verbose.
var logger = zap.NewNop()

// rootCmd is the base command for the foursight CLI.
var rootCmd = &cobra.Command{
	Use:   "foursight",
	Short: "Multi-source context retrieval and ranking",
	Long: `foursight gathers context for a query from four providers (web search,
arXiv preprints, Reddit discussions and Product Hunt launches), filters
and ranks each list for relevance, and returns them together.

Queries in other languages are translated to English first. Results can be
printed as a table, JSON or CSL-YAML, saved to a query file, or archived in
a local full-text index for later search.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		dir, _ := cmd.Flags().GetString("secrets-dir")
		return setup(verbose, dir)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// setup builds the logger, installs it as zap's global logger for packages
// that log through zap.L, and loads the API key files in secretsDir.
func setup(verbose bool, secretsDir string) error {
	log, err := newLogger(verbose)
	if err != nil {
		return err
	}
	logger = log
	zap.ReplaceGlobals(log)

	s, err := secrets.Load(secretsDir)
	if err != nil {
		return err
	}
	loadedSecrets = s
	if len(s) > 0 {
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		logger.Debug("loaded secrets", zap.Strings("keys", keys))
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./foursight.yaml or ~/.config/foursight/foursight.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of API key files")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log adapter activity to stderr")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("foursight")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "foursight"))
		}
	}

	viper.SetEnvPrefix("FOURSIGHT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger returns a console logger on stderr: debug level when verbose,
// warnings only otherwise.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		cfg.DisableStacktrace = true
	}
	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
