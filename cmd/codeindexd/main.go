// Command codeindexd is the indexing and search daemon: it walks a
// repository, extracts entities, embeds and stores them across Postgres,
// Qdrant, and Neo4j, and serves hybrid search over the result.
//
// Configuration is loaded from a YAML file plus environment overrides. See
// internal/config for details.
//
// Usage:
//
//	codeindexd init --repo <path> --collection <name>
//	codeindexd index --repo <path>
//	codeindexd serve --port 8080
//	codeindexd search --repo <path> --query <text>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build).
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "codeindexd",
	Short:   "Hybrid code search indexer",
	Long:    `codeindexd parses a repository, extracts and embeds its entities, and serves hybrid semantic/fulltext/graph search over the result.`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", version, gitCommit, buildDate),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: ~/.config/codeindexd/config.yaml)")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
}
