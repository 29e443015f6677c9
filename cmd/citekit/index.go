package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/darisdzakwanhoesien2/research-landscape/internal/bibtex"
	"github.com/darisdzakwanhoesien2/research-landscape/internal/corpus"
)

var (
	indexBatchSize int
	indexForce     bool
	indexClear     bool
)

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.AddCommand(indexLookupCmd)

	indexCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Corpus database path (default from config)")
	indexBuildCmd.Flags().StringSliceVar(&bibPaths, "bib", nil, "BibTeX corpus file(s) to ingest, in order")
	indexBuildCmd.Flags().IntVar(&indexBatchSize, "batch-size", 0, "Entries parsed per batch (default from config)")
	indexBuildCmd.Flags().BoolVar(&indexForce, "force", false, "Re-ingest files even if unchanged")
	indexBuildCmd.Flags().BoolVar(&indexClear, "clear", false, "Drop every indexed source before ingesting")
	indexBuildCmd.MarkFlagRequired("bib")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the SQLite corpus index",
	Long: `Commands for building and inspecting the SQLite corpus index.

An indexed corpus is parsed once, in batches, and can then be used with
'citekit resolve --db' without holding the parsed corpus in memory.`,
}

// IndexFileResult reports the ingest of one file.
type IndexFileResult struct {
	Path      string `json:"path"`
	Status    string `json:"status"` // indexed or unchanged
	Batches   int    `json:"batches,omitempty"`
	Attempted int    `json:"attempted,omitempty"`
	Parsed    int    `json:"parsed,omitempty"`
}

// IndexBuildResult is the response for the index build command.
type IndexBuildResult struct {
	Status          string            `json:"status"`
	DB              string            `json:"db"`
	Cleared         bool              `json:"cleared,omitempty"`
	Files           []IndexFileResult `json:"files"`
	DurationSeconds float64           `json:"duration_seconds"`
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Ingest BibTeX files into the corpus index",
	Long: `Ingest BibTeX files into the corpus index.

Each file is split into entry spans and parsed in batches inside one
transaction. Files whose content fingerprint is unchanged since the last
build are skipped unless --force is given. A key defined by several files
resolves to the file ingested last. --clear empties the index first, so only
the listed files remain. Interrupting a build rolls back the file in progress.

Examples:
  citekit index build --bib refs.bib
  citekit index build --bib huge.bib.xz --batch-size 2000 --db corpus.db`,
	RunE: runIndexBuild,
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	logger := newLogger(cmd, cfg)

	path := dbPath
	if path == "" {
		path = cfg.DBPath
	}
	batchSize := indexBatchSize
	if batchSize <= 0 {
		batchSize = cfg.BatchSize
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		exitWithError(ExitError, "creating database directory: %v", err)
	}
	db := mustOpenDatabase(path, logger)
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	result := IndexBuildResult{Status: "complete", DB: path}
	if indexClear {
		if err := db.Clear(); err != nil {
			exitWithError(ExitError, "clearing index: %v", err)
		}
		logger.Info().Str("db", path).Msg("cleared index")
		result.Cleared = true
	}
	for _, p := range bibPaths {
		f, err := corpus.ReadFile(p)
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}

		if !indexForce && !indexClear {
			current, err := db.IsCurrent(f.Path, f.Fingerprint)
			if err != nil {
				exitWithError(ExitError, "checking %s: %v", f.Path, err)
			}
			if current {
				logger.Info().Str("file", f.Path).Msg("unchanged, skipping")
				result.Files = append(result.Files, IndexFileResult{Path: f.Path, Status: "unchanged"})
				continue
			}
		}

		ingest, err := db.Ingest(ctx, f.Path, f.Fingerprint, bibtex.NewSpanIterator(f.Text), batchSize)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				exitWithError(ExitError, "interrupted while indexing %s; its changes were rolled back", f.Path)
			}
			exitWithError(ExitError, "indexing %s: %v", f.Path, err)
		}
		logger.Info().
			Str("file", f.Path).
			Int("batches", ingest.Batches).
			Int("parsed", ingest.Stats.Parsed).
			Int("skipped", ingest.Stats.Skipped()).
			Msg("indexed corpus")
		result.Files = append(result.Files, IndexFileResult{
			Path:      f.Path,
			Status:    "indexed",
			Batches:   ingest.Batches,
			Attempted: ingest.Stats.Attempted,
			Parsed:    ingest.Stats.Parsed,
		})
	}
	result.DurationSeconds = time.Since(start).Seconds()

	if humanOutput {
		outputHuman("Index %s\n", path)
		for _, f := range result.Files {
			if f.Status == "unchanged" {
				outputHuman("  %s: unchanged\n", f.Path)
				continue
			}
			outputHuman("  %s: %d/%d entries in %d batches\n", f.Path, f.Parsed, f.Attempted, f.Batches)
		}
		outputHuman("Done in %.1fs\n", result.DurationSeconds)
		return nil
	}
	outputJSON(result)
	return nil
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus index statistics",
	RunE:  runIndexStats,
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	logger := newLogger(cmd, cfg)

	path := dbPath
	if path == "" {
		path = cfg.DBPath
	}
	db := mustOpenExistingDatabase(path, logger)
	defer db.Close()

	stats, err := db.Stats()
	if err != nil {
		exitWithError(ExitError, "reading stats: %v", err)
	}

	if humanOutput {
		outputHuman("Index %s\n", path)
		outputHuman("  entries: %d (%d with DOI, %d distinct DOIs)\n", stats.Entries, stats.WithDOI, stats.DOIs)
		if shadowed := stats.Definitions - stats.Entries; shadowed > 0 {
			outputHuman("  shadowed definitions: %d\n", shadowed)
		}
		for _, s := range stats.Sources {
			outputHuman("  %s: %d/%d parsed, indexed %s\n", s.Path, s.Parsed, s.Attempted,
				time.Unix(s.IndexedAt, 0).Format(time.RFC3339))
		}
		return nil
	}
	outputJSON(stats)
	return nil
}
