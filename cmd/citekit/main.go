// Package main provides the citekit CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/darisdzakwanhoesien2/research-landscape/internal/config"
	"github.com/darisdzakwanhoesien2/research-landscape/internal/logging"
	"github.com/darisdzakwanhoesien2/research-landscape/internal/registry"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	logLevel    string
	logFormat   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "citekit",
	Short: "Resolve and clean LaTeX citations against a BibTeX corpus",
	Long: `citekit resolves the citation tokens of a LaTeX document against a
BibTeX corpus and a curated key/DOI registry, then rewrites the document so
every citation uses a canonical key.

Resolution order: corpus key, curated registry, reverse DOI lookup in the
corpus. Unresolved numeric placeholders are dropped when rewriting.

Large corpora can be indexed once into SQLite with 'citekit index build'.
All commands output JSON by default; use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Load .env file if present (for CITEKIT_* overrides)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error, off)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (json, console)")
	rootCmd.Version = Version
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// newLogger builds the logger for one command run. Flags override config.
func newLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	level, format := cfg.LogLevel, cfg.LogFormat
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	return logging.WithRun(logging.New(logging.Config{Level: level, Format: format}), cmd.CommandPath())
}

// mustLoadRegistry loads the curated registry from config or the embedded
// default, exits on error. Rejected rows are logged, not fatal.
func mustLoadRegistry(cfg *config.Config, logger zerolog.Logger) *registry.Registry {
	var reg *registry.Registry
	var err error
	if cfg.RegistryPath != "" {
		reg, err = registry.LoadFile(cfg.RegistryPath)
	} else {
		reg, err = registry.Default()
	}
	if err != nil {
		exitWithError(ExitConfigError, "loading registry: %v", err)
	}
	if len(cfg.PartialDOIPrefixes) > 0 {
		reg = reg.WithPrefixes(cfg.PartialDOIPrefixes)
	}

	for _, rej := range reg.Rejected() {
		logger.Warn().
			Int("line", rej.Line).
			Str("key", rej.Key).
			Str("doi", rej.DOI).
			Str("reason", rej.Reason).
			Msg("rejected registry row")
	}
	logger.Debug().Int("entries", reg.Len()).Str("path", cfg.RegistryPath).Msg("loaded registry")
	return reg
}
