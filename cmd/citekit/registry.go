package main

import (
	"github.com/spf13/cobra"

	"github.com/darisdzakwanhoesien2/research-landscape/internal/registry"
)

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryLookupCmd)
	registryCmd.AddCommand(registryKindCmd)
}

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the curated key/DOI registry",
	Long: `Inspect the curated key/DOI registry.

The embedded table is used unless registry_path is set in the config file
or CITEKIT_REGISTRY points at another YAML file.`,
}

// RegistryListResult is the response for registry list.
type RegistryListResult struct {
	Count    int                  `json:"count"`
	Prefixes []string             `json:"partial_doi_prefixes"`
	Entries  []registry.Entry     `json:"entries"`
	Rejected []registry.Rejection `json:"rejected,omitempty"`
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List curated entries in definition order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		reg := mustLoadRegistry(cfg, newLogger(cmd, cfg))

		if humanOutput {
			for _, e := range reg.Entries() {
				outputHuman("%-28s %s\n", e.Key, e.DOI)
			}
			for _, r := range reg.Rejected() {
				outputHuman("rejected line %d %s: %s\n", r.Line, r.Key, r.Reason)
			}
			return nil
		}
		outputJSON(RegistryListResult{
			Count:    reg.Len(),
			Prefixes: reg.Prefixes(),
			Entries:  reg.Entries(),
			Rejected: reg.Rejected(),
		})
		return nil
	},
}

// RegistryLookupResult is the response for registry lookup.
type RegistryLookupResult struct {
	Key          string   `json:"key"`
	Found        bool     `json:"found"`
	DOI          string   `json:"doi,omitempty"`
	CanonicalKey string   `json:"canonical_key,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
}

var registryLookupCmd = &cobra.Command{
	Use:   "lookup <key>",
	Short: "Look up a curated key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		reg := mustLoadRegistry(cfg, newLogger(cmd, cfg))

		result := RegistryLookupResult{Key: args[0]}
		if doi, ok := reg.LookupByKey(args[0]); ok {
			result.Found = true
			result.DOI = doi
			result.CanonicalKey, _ = reg.CanonicalKey(doi)
			result.Aliases = reg.KeysForDOI(doi)
		}

		if humanOutput {
			if !result.Found {
				outputHuman("%s: not in registry\n", result.Key)
				return nil
			}
			outputHuman("%s → %s (canonical key %s)\n", result.Key, result.DOI, result.CanonicalKey)
			return nil
		}
		outputJSON(result)
		return nil
	},
}

// RegistryKindResult is the response for registry kind.
type RegistryKindResult struct {
	Token string        `json:"token"`
	Kind  registry.Kind `json:"kind"`
}

var registryKindCmd = &cobra.Command{
	Use:   "kind <token>...",
	Short: "Classify tokens as doi, partial-doi or bibkey",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		reg := mustLoadRegistry(cfg, newLogger(cmd, cfg))

		results := make([]RegistryKindResult, 0, len(args))
		for _, tok := range args {
			results = append(results, RegistryKindResult{Token: tok, Kind: reg.DetectKind(tok)})
		}

		if humanOutput {
			for _, r := range results {
				outputHuman("%s\t%s\n", r.Kind, r.Token)
			}
			return nil
		}
		outputJSON(results)
		return nil
	},
}
