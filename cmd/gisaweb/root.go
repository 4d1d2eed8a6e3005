package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gisaweb",
	Short: "GiSaWeb - unification gateway for OpenAI-compatible backends",
	Long: `GiSaWeb aggregates the model catalogs of multiple OpenAI-compatible
backends into one namespace and routes requests to the connection owning the
requested model.

It provides:
  - Merged model catalogs with per-connection prefixes and tags
  - Dialect translation for reasoning models and managed deployments
  - Streaming relay with per-model access control
  - Knowledge base aggregation and permission forwarding`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
}
