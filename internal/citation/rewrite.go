package citation

import (
	"strings"
	"unicode"
)

// RewriteStats summarizes a rewrite pass.
type RewriteStats struct {
	Macros    int `json:"macros"`    // occurrences found
	Rewritten int `json:"rewritten"` // occurrences whose list changed
	Removed   int `json:"removed"`   // occurrences dropped because their list emptied
	Replaced  int `json:"replaced"`  // tokens replaced by a different key
	Dropped   int `json:"dropped"`   // unresolved numeric tokens removed
}

// Rewrite replaces citation tokens by their canonical keys in a single pass.
//
// A token with an entry in keys is replaced; an unresolved purely numeric
// token is dropped; anything else passes through. An occurrence whose list
// becomes empty is removed entirely. Occurrences that need no change, and all
// text outside citation macros, are copied byte for byte.
func Rewrite(text string, keys map[string]string) (string, RewriteStats) {
	var stats RewriteStats
	matches := macroRegex.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, stats
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		stats.Macros++
		b.WriteString(text[last:m[0]])
		last = m[1]

		list, changed, replaced, dropped := rewriteList(text[m[8]:m[9]], keys)
		stats.Replaced += replaced
		stats.Dropped += dropped
		switch {
		case !changed:
			b.WriteString(text[m[0]:m[1]])
		case list == "":
			stats.Removed++
		default:
			stats.Rewritten++
			b.WriteString(text[m[0]:m[8]])
			b.WriteString(list)
			b.WriteString(text[m[9]:m[1]])
		}
	}
	b.WriteString(text[last:])
	return b.String(), stats
}

// rewriteList rewrites one comma-separated key list. When nothing changes it
// reports changed=false and the caller keeps the original bytes.
func rewriteList(list string, keys map[string]string) (string, bool, int, int) {
	parts := strings.Split(list, ",")
	kept := make([]string, 0, len(parts))
	replaced, dropped := 0, 0

	for _, part := range parts {
		tok := strings.TrimSpace(part)
		if tok == "" {
			continue
		}
		if key, ok := keys[tok]; ok && key != "" {
			if key != tok {
				replaced++
			}
			lead := part[:len(part)-len(strings.TrimLeftFunc(part, unicode.IsSpace))]
			trail := part[len(strings.TrimRightFunc(part, unicode.IsSpace)):]
			kept = append(kept, lead+key+trail)
			continue
		}
		if IsNumeric(tok) {
			dropped++
			continue
		}
		kept = append(kept, part)
	}

	if replaced == 0 && dropped == 0 {
		return list, false, 0, 0
	}
	return strings.TrimSpace(strings.Join(kept, ",")), true, replaced, dropped
}
