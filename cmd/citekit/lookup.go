package main

import (
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/darisdzakwanhoesien2/research-landscape/internal/bibtex"
)

var (
	lookupKey       string
	lookupAnthology string
)

func init() {
	indexLookupCmd.Flags().StringSliceVar(&bibPaths, "bib", nil, "Look up in BibTeX file(s) instead of the index")
	indexLookupCmd.Flags().StringVar(&lookupKey, "key", "", "Citation key")
	indexLookupCmd.Flags().StringVar(&lookupAnthology, "anthology", "", "Anthology identifier, e.g. 2021.acl-long.201")
}

var indexLookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Show the corpus entry for a key or anthology id",
	Long: `Show the current corpus entry for a citation key or an anthology
identifier taken from the entry's url field.

Examples:
  citekit index lookup --key devlin-etal-2019-bert
  citekit index lookup --anthology N19-1423 --bib acl.bib.xz`,
	RunE: runIndexLookup,
}

// entryFinder is implemented by storage.DB and by the in-memory index adapter.
type entryFinder interface {
	GetEntry(key string) (*bibtex.Entry, error)
	EntryByExternalID(id string) (*bibtex.Entry, error)
}

type indexFinder struct {
	idx *bibtex.Index
}

func (f indexFinder) GetEntry(key string) (*bibtex.Entry, error) {
	e, _ := f.idx.Entry(key)
	return e, nil
}

func (f indexFinder) EntryByExternalID(id string) (*bibtex.Entry, error) {
	e, _ := f.idx.ByExternalID(id)
	return e, nil
}

// LookupResult is the response for index lookup.
type LookupResult struct {
	Key       string        `json:"key,omitempty"`
	Anthology string        `json:"anthology,omitempty"`
	Found     bool          `json:"found"`
	Entry     *bibtex.Entry `json:"entry,omitempty"`
}

// findEntry looks an entry up by key, or by anthology id when key is empty.
func findEntry(f entryFinder, key, anthology string) (LookupResult, error) {
	result := LookupResult{Key: key, Anthology: anthology}
	var e *bibtex.Entry
	var err error
	if key != "" {
		e, err = f.GetEntry(key)
	} else {
		e, err = f.EntryByExternalID(anthology)
	}
	if err != nil {
		return result, err
	}
	result.Found = e != nil
	result.Entry = e
	return result, nil
}

func runIndexLookup(cmd *cobra.Command, args []string) error {
	if (lookupKey == "") == (lookupAnthology == "") {
		exitWithError(ExitError, "give exactly one of --key or --anthology")
	}

	cfg := mustLoadConfig()
	logger := newLogger(cmd, cfg)

	var finder entryFinder
	switch source, path := selectCorpus(bibPaths, dbPath, cfg.DBPath); source {
	case corpusBib:
		finder = indexFinder{idx: mustParseCorpus(bibPaths, logger)}
	case corpusDB:
		db := mustOpenExistingDatabase(path, logger)
		defer db.Close()
		finder = db
	default:
		exitWithError(ExitDataError, "no corpus index at %s\n\nRun 'citekit index build --bib <file>' or pass --bib.", cfg.DBPath)
	}

	result, err := findEntry(finder, lookupKey, lookupAnthology)
	if err != nil {
		exitWithError(ExitError, "looking up entry: %v", err)
	}

	if humanOutput {
		if !result.Found {
			outputHuman("not found\n")
		} else {
			printEntryHuman(result.Entry)
		}
	} else {
		outputJSON(result)
	}
	if !result.Found {
		os.Exit(ExitNotFound)
	}
	return nil
}

func printEntryHuman(e *bibtex.Entry) {
	outputHuman("@%s{%s}\n", e.Type, e.Key)
	if e.ExternalID != "" {
		outputHuman("  anthology: %s\n", e.ExternalID)
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		outputHuman("  %s = %s\n", name, e.Fields[name])
	}
}
