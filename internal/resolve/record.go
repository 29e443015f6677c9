// Package resolve maps citation tokens to canonical keys and DOIs through an
// ordered chain of strategies and records how each token was resolved.
package resolve

import (
	"github.com/darisdzakwanhoesien2/research-landscape/internal/registry"
)

// Method names the strategy that resolved a token.
type Method string

const (
	MethodCorpusKey        Method = "corpus-key"
	MethodCuratedDB        Method = "curated-db"
	MethodCorpusDOIReverse Method = "corpus-doi-reverse"
	MethodUnresolved       Method = "unresolved"
)

// Methods lists every method in strategy order, unresolved last.
var Methods = []Method{MethodCorpusKey, MethodCuratedDB, MethodCorpusDOIReverse, MethodUnresolved}

// Record is the resolution outcome for one distinct token. Unless Method is
// unresolved, at least one of ResolvedKey and ResolvedDOI is set.
type Record struct {
	Raw         string        `json:"raw"`
	Kind        registry.Kind `json:"detected_kind"`
	ResolvedKey string        `json:"resolved_key,omitempty"`
	ResolvedDOI string        `json:"resolved_doi,omitempty"`
	Method      Method        `json:"method"`
}

// Resolved reports whether the record carries a resolution.
func (r Record) Resolved() bool {
	return r.Method != MethodUnresolved
}
