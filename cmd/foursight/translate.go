// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var translateCmd = &cobra.Command{
	Use:   "translate [text]",
	Short: "Show the English query the aggregator would search for",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
		if err != nil {
			return err
		}
		tr, err := newTranslator(cmd.Context(), cfg.AI, useLLM(cmd))
		if err != nil {
			return err
		}
		hint, _ := cmd.Flags().GetString("context")
		fmt.Println(tr.Translate(cmd.Context(), strings.Join(args, " "), hint))
		return nil
	},
}

func init() {
	translateCmd.Flags().String("context", "", "business context passed to the model as a hint")
	translateCmd.Flags().Bool("llm-translate", false, "translate with Gemini (falls back to the dictionary)")

	rootCmd.AddCommand(translateCmd)
}
