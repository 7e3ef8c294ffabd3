package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	noGit      bool
	dryRun     bool
	mockSource bool
)

var rootCmd = &cobra.Command{
	Use:   "fngtracker",
	Short: "CNN Fear & Greed Index tracker",
	Long: `fngtracker keeps a local SQLite copy of the CNN Fear & Greed Index,
regenerates a README with statistics and versions the results.`,
	SilenceUsage: true,
}

func init() {
	defaultConfig := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&noGit, "no-git", false, "Disable git commit and push")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Use an in-memory store and skip versioning")
	rootCmd.PersistentFlags().BoolVar(&mockSource, "mock", false, "Serve generated data instead of calling CNN")

	rootCmd.AddCommand(onceCmd, autoCmd, initCmd, statusCmd, syncCmd, fillGapsCmd, historyCmd, exportCmd, importCmd)
}

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
