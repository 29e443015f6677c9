// Package export renders resolved citations as BibTeX stubs and LaTeX.
package export

import (
	"fmt"
	"strings"

	"github.com/darisdzakwanhoesien2/research-landscape/internal/resolve"
)

// Stub is the minimal bibliography record for a resolved citation.
type Stub struct {
	Key string `json:"key"`
	DOI string `json:"doi"`
}

// DOIURL returns the resolver link for a DOI.
func DOIURL(doi string) string {
	return "https://doi.org/" + doi
}

// StubsFromTable collects one stub per resolved key, in table order. Records
// lacking either a key or a DOI are skipped.
func StubsFromTable(table resolve.Table) []Stub {
	seen := make(map[string]bool)
	var stubs []Stub
	for _, r := range table {
		if !r.Resolved() || r.ResolvedKey == "" || r.ResolvedDOI == "" || seen[r.ResolvedKey] {
			continue
		}
		seen[r.ResolvedKey] = true
		stubs = append(stubs, Stub{Key: r.ResolvedKey, DOI: r.ResolvedDOI})
	}
	return stubs
}

// ToBibTeX converts a stub to a BibTeX entry.
func ToBibTeX(s Stub) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@article{%s,\n", s.Key))
	b.WriteString(fmt.Sprintf("  doi = {%s},\n", escapeBraces(s.DOI)))
	b.WriteString(fmt.Sprintf("  url = {%s}\n", escapeBraces(DOIURL(s.DOI))))
	b.WriteString("}\n")

	return b.String()
}

// ToBibTeXList converts multiple stubs to BibTeX, separated by blank lines.
func ToBibTeXList(stubs []Stub) string {
	var entries []string
	for _, s := range stubs {
		entries = append(entries, ToBibTeX(s))
	}
	return strings.Join(entries, "\n")
}

// Citep returns a single \citep macro citing every stub, or "" for none.
func Citep(stubs []Stub) string {
	if len(stubs) == 0 {
		return ""
	}
	keys := make([]string, len(stubs))
	for i, s := range stubs {
		keys[i] = s.Key
	}
	return `\citep{` + strings.Join(keys, ",") + `}`
}

// escapeBraces keeps a value from closing its BibTeX field early.
func escapeBraces(s string) string {
	return strings.NewReplacer("{", `\{`, "}", `\}`).Replace(s)
}
