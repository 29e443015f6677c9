package registry

import (
	"regexp"
	"strings"
)

// Kind is the shape of a citation token. It is a classification only and
// never resolves a token by itself.
type Kind string

const (
	KindDOI        Kind = "doi"
	KindPartialDOI Kind = "partial-doi"
	KindBibKey     Kind = "bibkey"
)

// doiRegex matches a complete DOI: 10.<4-9 digit registrant>/<suffix>
var doiRegex = regexp.MustCompile(`(?i)^10\.\d{4,9}/[-._;()/:A-Z0-9]+$`)

// DefaultPartialPrefixes are short-form DOI suffixes some venues use as keys
// without the 10.xxxx/ header (e.g. csr.70133 for 10.1002/csr.70133).
var DefaultPartialPrefixes = []string{"csr.", "ssrn."}

// IsDOI reports whether s has the shape of a DOI.
func IsDOI(s string) bool {
	return doiRegex.MatchString(s)
}

// DetectKind classifies a raw token as a DOI, a partial DOI or a plain key.
func DetectKind(token string, partialPrefixes []string) Kind {
	if IsDOI(token) {
		return KindDOI
	}
	lower := strings.ToLower(token)
	for _, p := range partialPrefixes {
		if p != "" && strings.HasPrefix(lower, strings.ToLower(p)) {
			return KindPartialDOI
		}
	}
	return KindBibKey
}
