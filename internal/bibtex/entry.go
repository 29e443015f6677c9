// Package bibtex parses BibTeX corpora into entries and builds the key and DOI
// indexes used for citation resolution.
package bibtex

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// Entry is one parsed bibliographic record.
type Entry struct {
	Key        string            `json:"key"`
	Type       string            `json:"type"`
	Fields     map[string]string `json:"fields"`
	ExternalID string            `json:"external_id,omitempty"` // Anthology ID taken from the url field
}

// DOI returns the literal doi field value, or "" if absent.
func (e *Entry) DOI() string {
	return e.Fields["doi"]
}

// Sentinel errors for entry-level parse failures.
var (
	ErrMissingKey       = errors.New("missing citation key")
	ErrUnbalancedBraces = errors.New("unbalanced braces")
	ErrMalformedField   = errors.New("malformed field")
)

// EntryParseError describes a single entry that was skipped during parsing.
// It never aborts the enclosing corpus parse.
type EntryParseError struct {
	Line int    // 1-based line of the entry start in the corpus
	Key  string // Key if it could be read
	Err  error
}

func (e *EntryParseError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("entry %s at line %d: %v", e.Key, e.Line, e.Err)
	}
	return fmt.Sprintf("entry at line %d: %v", e.Line, e.Err)
}

func (e *EntryParseError) Unwrap() error {
	return e.Err
}

// Anthology URLs embed a stable paper identifier in their path, e.g.
// https://aclanthology.org/2021.acl-long.201/ or .../P19-1001.pdf
var externalIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)aclanthology\.org/([A-Za-z0-9][\w.-]*?)(?:\.pdf|\.bib)?/?$`),
	regexp.MustCompile(`(?i)aclweb\.org/anthology/([A-Za-z0-9][\w.-]*?)(?:\.pdf|\.bib)?/?$`),
}

// ExtractExternalID returns the anthology identifier embedded in a URL, or "".
func ExtractExternalID(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	for _, pat := range externalIDPatterns {
		if m := pat.FindStringSubmatch(url); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
