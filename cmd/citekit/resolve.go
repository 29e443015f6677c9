package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/darisdzakwanhoesien2/research-landscape/internal/resolve"
)

var (
	resolveFormat     string
	resolveUnresolved bool
	resolveStrict     bool
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	addCorpusFlags(resolveCmd)
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "json", "Output format: json, jsonl, csv or human")
	resolveCmd.Flags().BoolVar(&resolveUnresolved, "unresolved", false, "Only report tokens that could not be resolved")
	resolveCmd.Flags().BoolVar(&resolveStrict, "strict", false, "Exit with code 4 if any token is unresolved")
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <source>",
	Short: "Resolve the citation tokens of a LaTeX or AUX file",
	Long: `Extract every \cite, \citep, \citet, \citealp and \citation token from a
LaTeX or AUX file and report how each one resolves.

Examples:
  citekit resolve paper.tex --bib refs.bib
  citekit resolve paper.aux --bib a.bib --bib b.bib.xz --format csv > log.csv
  citekit resolve paper.tex --bib refs.bib --format jsonl > resolved.jsonl
  citekit resolve paper.tex --db ~/.cache/citekit/corpus.db --unresolved --human`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

// ResolveResponse is the response for the resolve command.
type ResolveResponse struct {
	Source  string                 `json:"source"`
	Tokens  int                    `json:"tokens"`
	Counts  map[resolve.Method]int `json:"counts"`
	Records resolve.Table          `json:"records"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	if humanOutput {
		resolveFormat = "human"
	}
	switch resolveFormat {
	case "json", "jsonl", "csv", "human":
	default:
		exitWithError(ExitError, "invalid --format %q (valid: json, jsonl, csv, human)", resolveFormat)
	}

	cfg := mustLoadConfig()
	logger := newLogger(cmd, cfg)
	reg := mustLoadRegistry(cfg, logger)
	corpus, closeCorpus := mustOpenCorpus(cfg, logger)
	defer closeCorpus()

	source := mustReadSource(args[0])
	res, err := resolve.New(corpus, reg, resolve.WithLogger(logger)).Run(source)
	if err != nil {
		exitWithError(ExitError, "resolving citations: %v", err)
	}

	table := res.Table
	counts := table.Counts()
	if resolveUnresolved {
		table = table.Unresolved()
	}

	switch resolveFormat {
	case "csv":
		if err := table.WriteCSV(os.Stdout); err != nil {
			exitWithError(ExitError, "writing csv: %v", err)
		}
	case "jsonl":
		if err := table.WriteJSONL(os.Stdout); err != nil {
			exitWithError(ExitError, "writing jsonl: %v", err)
		}
	case "human":
		printResolveHuman(args[0], table, counts)
	default:
		outputJSON(ResolveResponse{
			Source:  args[0],
			Tokens:  len(res.Table),
			Counts:  counts,
			Records: table,
		})
	}

	if resolveStrict && counts[resolve.MethodUnresolved] > 0 {
		os.Exit(ExitUnresolved)
	}
	return nil
}

func printResolveHuman(source string, table resolve.Table, counts map[resolve.Method]int) {
	total := 0
	for _, n := range counts {
		total += n
	}
	outputHuman("%s: %d distinct citation tokens\n", source, total)
	for _, m := range resolve.Methods {
		outputHuman("  %-20s %d\n", m, counts[m])
	}
	if len(table) == 0 {
		return
	}
	fmt.Println()
	for _, r := range table {
		switch {
		case !r.Resolved():
			outputHuman("  ✗ %s (%s)\n", r.Raw, r.Kind)
		case r.ResolvedKey != "" && r.ResolvedDOI != "":
			outputHuman("  ✓ %s → %s [%s] via %s\n", r.Raw, r.ResolvedKey, r.ResolvedDOI, r.Method)
		default:
			outputHuman("  ✓ %s → %s%s via %s\n", r.Raw, r.ResolvedKey, r.ResolvedDOI, r.Method)
		}
	}
}
