// Command shopmesh runs the product search assistant: an HTTP server, a
// catalog ingester and an interactive terminal chat.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "shopmesh",
	Short: "Retrieval-augmented product search assistant",
	Long: `ShopMesh answers shopping questions from a product catalog. It retrieves
matching products from a vector index, keeps a compact memory of each
conversation and falls back to degraded replies when a backend fails.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./shopmesh.yaml or ~/.config/shopmesh/shopmesh.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
