// Package citation finds citation macros in LaTeX and AUX source text and
// rewrites their key lists.
package citation

import (
	"regexp"
	"sort"
	"strings"
)

// Macros lists the recognized citation commands.
var Macros = []string{"citep", "citet", "citealp", "citation", "cite"}

// macroRegex matches \name, an optional star, up to two [..] arguments and
// the {..} key list. Longer names come first so \citep never matches as \cite.
//
// Submatches: 1 name, 2 star, 3 optional args, 4 key list.
var macroRegex = regexp.MustCompile(
	`\\(` + strings.Join(Macros, "|") + `)(\*?)((?:\[[^\]]*\]){0,2})\{([^}]*)\}`)

// Occurrence is one citation macro found in a source text.
type Occurrence struct {
	Macro  string   `json:"macro"`
	Start  int      `json:"start"`
	End    int      `json:"end"`
	Tokens []string `json:"tokens"`
}

// Find returns every citation macro occurrence in document order.
func Find(text string) []Occurrence {
	matches := macroRegex.FindAllStringSubmatchIndex(text, -1)
	occs := make([]Occurrence, 0, len(matches))
	for _, m := range matches {
		occs = append(occs, Occurrence{
			Macro:  text[m[2]:m[3]],
			Start:  m[0],
			End:    m[1],
			Tokens: SplitTokens(text[m[8]:m[9]]),
		})
	}
	return occs
}

// SplitTokens splits a macro argument on commas, trimming whitespace and
// dropping empty tokens left by stray commas.
func SplitTokens(list string) []string {
	var tokens []string
	for _, part := range strings.Split(list, ",") {
		if tok := strings.TrimSpace(part); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// Extract returns the distinct citation tokens of a document, sorted.
// Purely numeric tokens are included; the rewriter decides what to drop.
func Extract(text string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, occ := range Find(text) {
		for _, tok := range occ.Tokens {
			if !seen[tok] {
				seen[tok] = true
				tokens = append(tokens, tok)
			}
		}
	}
	sort.Strings(tokens)
	return tokens
}

// IsNumeric reports whether a token consists only of decimal digits, the
// shape of numeric citation placeholders.
func IsNumeric(tok string) bool {
	if tok == "" {
		return false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return false
		}
	}
	return true
}
