package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/darisdzakwanhoesien2/research-landscape/internal/citation"
	"github.com/darisdzakwanhoesien2/research-landscape/internal/config"
	"github.com/darisdzakwanhoesien2/research-landscape/internal/export"
	"github.com/darisdzakwanhoesien2/research-landscape/internal/resolve"
)

var (
	exportCitep   bool
	exportFromLog string
)

func init() {
	rootCmd.AddCommand(exportCmd)
	addCorpusFlags(exportCmd)
	exportCmd.Flags().StringVar(&exportFromLog, "from-log", "", "Use a saved 'resolve --format jsonl' log instead of resolving a source")
	exportCmd.Flags().BoolVar(&exportCitep, "citep", false, "Print one \\citep macro citing every resolved key instead")
}

var exportCmd = &cobra.Command{
	Use:   "export [source]",
	Short: "Export BibTeX stubs for the resolved citations of a document",
	Long: `Resolve the citations of a LaTeX or AUX file and write a BibTeX stub
(key, doi and doi.org url) for every resolved key that has a DOI.

Examples:
  citekit export paper.tex --bib refs.bib > references.bib
  citekit export paper.aux --citep
  citekit export --from-log resolved.jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	if (exportFromLog == "") == (len(args) == 0) {
		exitWithError(ExitError, "give either a source file or --from-log")
	}

	cfg := mustLoadConfig()
	logger := newLogger(cmd, cfg)

	var table resolve.Table
	if exportFromLog != "" {
		table = mustReadLog(exportFromLog)
	} else {
		table = mustResolveSource(args[0], cfg, logger)
	}

	stubs := export.StubsFromTable(table)
	logger.Info().Int("tokens", len(table)).Int("stubs", len(stubs)).Msg("exporting")

	if exportCitep {
		outputHuman("%s\n", export.Citep(stubs))
		return nil
	}
	outputHuman("%s", export.ToBibTeXList(stubs))
	return nil
}

// mustResolveSource resolves the citation tokens of a source file.
func mustResolveSource(path string, cfg *config.Config, logger zerolog.Logger) resolve.Table {
	reg := mustLoadRegistry(cfg, logger)
	corpus, closeCorpus := mustOpenCorpus(cfg, logger)
	defer closeCorpus()

	source := mustReadSource(path)
	table, err := resolve.New(corpus, reg, resolve.WithLogger(logger)).Resolve(citation.Extract(source))
	if err != nil {
		exitWithError(ExitError, "resolving citations: %v", err)
	}
	return table
}

// mustReadLog loads a resolution log written by 'resolve --format jsonl'.
func mustReadLog(path string) resolve.Table {
	f, err := os.Open(path)
	if err != nil {
		exitWithError(ExitDataError, "opening log: %v", err)
	}
	defer f.Close()

	table, err := resolve.ReadJSONL(f)
	if err != nil {
		exitWithError(ExitDataError, "reading log %s: %v", path, err)
	}
	return table
}
