package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/darisdzakwanhoesien2/research-landscape/internal/bibtex"
	"github.com/darisdzakwanhoesien2/research-landscape/internal/config"
	"github.com/darisdzakwanhoesien2/research-landscape/internal/corpus"
	"github.com/darisdzakwanhoesien2/research-landscape/internal/resolve"
	"github.com/darisdzakwanhoesien2/research-landscape/internal/storage"
)

var (
	bibPaths []string
	dbPath   string
)

// addCorpusFlags registers the flags selecting the corpus to resolve against.
func addCorpusFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&bibPaths, "bib", nil, "BibTeX corpus file(s), later files win on duplicate keys; .gz and .xz accepted")
	cmd.Flags().StringVar(&dbPath, "db", "", "Resolve against an indexed corpus database (see 'citekit index build'); ignored when --bib is given")
}

type corpusSource int

const (
	corpusNone corpusSource = iota
	corpusBib
	corpusDB
)

// selectCorpus picks the corpus for a run. --bib wins over --db. Without
// either flag the configured database is used if it exists.
func selectCorpus(bibs []string, flagDB, configDB string) (corpusSource, string) {
	switch {
	case len(bibs) > 0:
		return corpusBib, ""
	case flagDB != "":
		return corpusDB, flagDB
	case configDB != "":
		if _, err := os.Stat(configDB); err == nil {
			return corpusDB, configDB
		}
	}
	return corpusNone, ""
}

// mustOpenDatabase opens the SQLite corpus index, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(path string, logger zerolog.Logger) *storage.DB {
	db, err := storage.OpenDB(path)
	if err != nil {
		exitWithError(ExitError, "opening database %s: %v", path, err)
	}
	db.SetLogger(logger)
	return db
}

// mustOpenExistingDatabase is mustOpenDatabase for read-only commands: a
// missing file is an error instead of a fresh empty index.
func mustOpenExistingDatabase(path string, logger zerolog.Logger) *storage.DB {
	if _, err := os.Stat(path); err != nil {
		exitWithError(ExitDataError, "no corpus index at %s\n\nRun 'citekit index build --bib <file>' to create it.", path)
	}
	return mustOpenDatabase(path, logger)
}

// mustParseCorpus reads and parses the --bib files into one index. Each file
// is parsed on its own and merged in order so skipped entries report their
// own file and line.
func mustParseCorpus(paths []string, logger zerolog.Logger) *bibtex.Index {
	files, err := corpus.ReadFiles(paths)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	idx := bibtex.NewIndex()
	for _, f := range files {
		part, stats := bibtex.Parse(f.Text)
		for _, pe := range stats.Errors {
			logger.Warn().Str("file", f.Path).Int("line", pe.Line).Str("key", pe.Key).Err(pe.Err).Msg("skipping entry")
		}
		logger.Info().
			Str("file", f.Path).
			Str("compression", f.Compression).
			Int("attempted", stats.Attempted).
			Int("parsed", stats.Parsed).
			Msg("parsed corpus")
		idx.Merge(part)
	}
	return idx
}

// mustOpenCorpus returns the corpus selected by selectCorpus, and a close
// function. With no corpus, resolution uses the curated registry only and the
// returned corpus is nil.
func mustOpenCorpus(cfg *config.Config, logger zerolog.Logger) (resolve.Corpus, func()) {
	source, path := selectCorpus(bibPaths, dbPath, cfg.DBPath)
	switch source {
	case corpusBib:
		if dbPath != "" {
			logger.Warn().Str("db", dbPath).Msg("--bib given; ignoring --db")
		}
		return resolve.FromIndex(mustParseCorpus(bibPaths, logger)), func() {}
	case corpusDB:
		logger.Info().Str("db", path).Msg("using indexed corpus")
		db := mustOpenExistingDatabase(path, logger)
		return db, func() { db.Close() }
	default:
		logger.Warn().Msg("no corpus given; resolving with the curated registry only")
		return nil, func() {}
	}
}

// mustReadSource reads a LaTeX or AUX source; "-" reads stdin.
func mustReadSource(path string) string {
	if path == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitWithError(ExitDataError, "reading stdin: %v", err)
		}
		f, err := corpus.Decode(raw)
		if err != nil {
			exitWithError(ExitDataError, "decoding stdin: %v", err)
		}
		return f.Text
	}
	f, err := corpus.ReadFile(path)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	return f.Text
}
