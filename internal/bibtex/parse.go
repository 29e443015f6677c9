package bibtex

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// newlineRunRegex matches a line break with its surrounding indentation.
var newlineRunRegex = regexp.MustCompile(`[ \t\r]*\n\s*`)

// ParseStats reports how many entries a parse attempted and kept.
type ParseStats struct {
	Attempted int                `json:"attempted"`
	Parsed    int                `json:"parsed"`
	Errors    []*EntryParseError `json:"-"`
}

// Skipped returns the number of entries dropped because they were malformed.
func (s ParseStats) Skipped() int {
	return s.Attempted - s.Parsed
}

// Add folds the counts of another parse into s.
func (s *ParseStats) Add(other ParseStats) {
	s.Attempted += other.Attempted
	s.Parsed += other.Parsed
	s.Errors = append(s.Errors, other.Errors...)
}

// Parse parses a whole corpus. It never fails as a whole: malformed entries
// are skipped and listed in the returned stats.
func Parse(text string) (*Index, ParseStats) {
	return parseSpans(Split(text))
}

func parseSpans(spans []Span) (*Index, ParseStats) {
	idx := NewIndex()
	var stats ParseStats
	for _, span := range spans {
		stats.Attempted++
		entry, err := ParseEntry(span.Text)
		if err != nil {
			perr := &EntryParseError{Line: span.Line, Err: err}
			if entry != nil {
				perr.Key = entry.Key
			}
			stats.Errors = append(stats.Errors, perr)
			continue
		}
		idx.Add(entry)
		stats.Parsed++
	}
	return idx, stats
}

// ParseEntry parses the text of a single entry starting at its @.
// On a field error the returned entry carries the key for reporting.
func ParseEntry(text string) (*Entry, error) {
	at := strings.IndexByte(text, '@')
	open := strings.IndexByte(text, '{')
	if at < 0 || open < at {
		return nil, ErrMissingKey
	}
	entryType := strings.ToLower(strings.TrimSpace(text[at+1 : open]))

	closeIdx := matchBrace(text, open)
	if closeIdx < 0 {
		return nil, ErrUnbalancedBraces
	}
	body := text[open+1 : closeIdx]

	var key, rest string
	if comma := strings.IndexByte(body, ','); comma >= 0 {
		key, rest = strings.TrimSpace(body[:comma]), body[comma+1:]
	} else {
		key = strings.TrimSpace(body)
	}
	if key == "" || strings.ContainsAny(key, " \t\r\n={}\"") {
		return nil, ErrMissingKey
	}

	entry := &Entry{Key: key, Type: entryType, Fields: make(map[string]string)}
	if err := parseFields(rest, entry.Fields); err != nil {
		return entry, err
	}
	entry.ExternalID = ExtractExternalID(entry.Fields["url"])
	return entry, nil
}

// matchBrace returns the index of the brace closing the one at open, or -1.
// Backslash-escaped braces do not count.
func matchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseFields reads `name = value` pairs separated by commas into fields.
// Field names are lower-cased; a repeated field keeps its last value.
func parseFields(s string, fields map[string]string) error {
	i := 0
	for {
		i = skipSpaceAndCommas(s, i)
		if i >= len(s) {
			return nil
		}

		nameStart := i
		for i < len(s) && isNameChar(s[i]) {
			i++
		}
		name := strings.ToLower(s[nameStart:i])
		if name == "" {
			return errors.Wrapf(ErrMalformedField, "unexpected %q", s[i])
		}

		i = skipSpace(s, i)
		if i >= len(s) || s[i] != '=' {
			return errors.Wrapf(ErrMalformedField, "field %s has no value", name)
		}
		i = skipSpace(s, i+1)

		var value strings.Builder
		for {
			part, next, err := readValue(s, i)
			if err != nil {
				return errors.Wrapf(err, "field %s", name)
			}
			value.WriteString(part)
			i = skipSpace(s, next)
			// # concatenates adjacent values
			if i < len(s) && s[i] == '#' {
				i = skipSpace(s, i+1)
				continue
			}
			break
		}
		fields[name] = collapseNewlines(value.String())

		if i < len(s) && s[i] != ',' {
			return errors.Wrapf(ErrMalformedField, "unexpected %q after field %s", s[i], name)
		}
	}
}

// readValue reads one brace-delimited, quote-delimited or bare value at i and
// returns its content and the offset just past it.
func readValue(s string, i int) (string, int, error) {
	if i >= len(s) {
		return "", i, ErrMalformedField
	}
	switch s[i] {
	case '{':
		end := matchBrace(s, i)
		if end < 0 {
			return "", i, ErrUnbalancedBraces
		}
		return s[i+1 : end], end + 1, nil
	case '"':
		depth := 0
		for j := i + 1; j < len(s); j++ {
			switch s[j] {
			case '\\':
				j++
			case '{':
				depth++
			case '}':
				depth--
			case '"':
				if depth == 0 {
					return s[i+1 : j], j + 1, nil
				}
			}
		}
		return "", i, errors.Wrap(ErrMalformedField, "unterminated quoted value")
	default:
		j := i
		for j < len(s) && s[j] != ',' && s[j] != '#' && !isSpace(s[j]) {
			if s[j] == '{' || s[j] == '}' || s[j] == '"' {
				return "", i, errors.Wrapf(ErrMalformedField, "unexpected %q in bare value", s[j])
			}
			j++
		}
		if j == i {
			return "", i, errors.Wrap(ErrMalformedField, "empty value")
		}
		return s[i:j], j, nil
	}
}

func collapseNewlines(s string) string {
	return strings.TrimSpace(newlineRunRegex.ReplaceAllString(s, " "))
}

func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == ':' || c == '.' || c == '+'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func skipSpaceAndCommas(s string, i int) int {
	for i < len(s) && (isSpace(s[i]) || s[i] == ',') {
		i++
	}
	return i
}
