package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/darisdzakwanhoesien2/research-landscape/internal/bibtex"
	"github.com/darisdzakwanhoesien2/research-landscape/internal/corpus"
)

var (
	splitStart     int
	splitEnd       int
	splitBatchSize int
)

func init() {
	rootCmd.AddCommand(splitCmd)
	splitCmd.Flags().IntVar(&splitStart, "start", 0, "First span to parse (inclusive)")
	splitCmd.Flags().IntVar(&splitEnd, "end", -1, "Span to stop at (exclusive); omit to only count spans")
	splitCmd.Flags().IntVar(&splitBatchSize, "batch-size", 0, "Show the batch ranges for this size")
}

var splitCmd = &cobra.Command{
	Use:   "split <bib>",
	Short: "Split a corpus into entry spans and optionally parse a range",
	Long: `Split a BibTeX corpus into entry spans. Without --end, report the span
count (and batch ranges with --batch-size). With --start/--end, parse only
spans [start, end) and report the result.

Examples:
  citekit split huge.bib --batch-size 5000
  citekit split huge.bib --start 10000 --end 15000 --human`,
	Args: cobra.ExactArgs(1),
	RunE: runSplit,
}

// SplitResult is the response for split without a range.
type SplitResult struct {
	Path    string         `json:"path"`
	Spans   int            `json:"spans"`
	Batches []bibtex.Range `json:"batches,omitempty"`
}

// SplitRangeResult is the response for split with a range.
type SplitRangeResult struct {
	Path      string            `json:"path"`
	Range     bibtex.Range      `json:"range"`
	Attempted int               `json:"attempted"`
	Parsed    int               `json:"parsed"`
	Entries   int               `json:"entries"`
	KeyToDOI  map[string]string `json:"key_to_doi"`
	Skipped   []SkippedEntry    `json:"skipped,omitempty"`
}

// SkippedEntry describes an entry that failed to parse.
type SkippedEntry struct {
	Line  int    `json:"line"`
	Key   string `json:"key,omitempty"`
	Error string `json:"error"`
}

func runSplit(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	logger := newLogger(cmd, cfg)

	f, err := corpus.ReadFile(args[0])
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	spans := bibtex.Split(f.Text)
	logger.Debug().Str("file", f.Path).Int("spans", len(spans)).Msg("split corpus")

	if !cmd.Flags().Changed("end") {
		result := SplitResult{Path: f.Path, Spans: len(spans)}
		if splitBatchSize > 0 {
			result.Batches = bibtex.Batches(len(spans), splitBatchSize)
		}
		if humanOutput {
			outputHuman("%s: %d entry spans\n", f.Path, len(spans))
			for _, r := range result.Batches {
				outputHuman("  [%d, %d)\n", r.Start, r.End)
			}
			return nil
		}
		outputJSON(result)
		return nil
	}

	idx, stats, err := bibtex.ParseRange(spans, splitStart, splitEnd)
	if err != nil {
		if errors.Is(err, bibtex.ErrInvalidRange) {
			exitWithError(ExitDataError, "%v (%s)", err, errors.FlattenHints(err))
		}
		exitWithError(ExitError, "%v", err)
	}

	result := SplitRangeResult{
		Path:      f.Path,
		Range:     bibtex.Range{Start: splitStart, End: splitEnd},
		Attempted: stats.Attempted,
		Parsed:    stats.Parsed,
		Entries:   idx.Len(),
		KeyToDOI:  idx.KeyToDOI(),
	}
	for _, pe := range stats.Errors {
		result.Skipped = append(result.Skipped, SkippedEntry{Line: pe.Line, Key: pe.Key, Error: pe.Err.Error()})
	}

	if humanOutput {
		outputHuman("%s [%d, %d): %d/%d entries parsed, %d with DOI\n",
			f.Path, splitStart, splitEnd, stats.Parsed, stats.Attempted, len(result.KeyToDOI))
		for _, s := range result.Skipped {
			outputHuman("  skipped line %d %s: %s\n", s.Line, s.Key, s.Error)
		}
		return nil
	}
	outputJSON(result)
	return nil
}
