// Package registry holds the curated citation key to DOI table that acts as a
// trust anchor independent of any uploaded bibliography.
package registry

import (
	_ "embed"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

//go:embed curated.yaml
var defaultTable []byte

// ErrInvalidDOI marks registry values that do not have the shape of a DOI.
var ErrInvalidDOI = errors.New("invalid DOI")

// Entry is one curated key -> DOI mapping.
type Entry struct {
	Key string `json:"key" yaml:"key"`
	DOI string `json:"doi" yaml:"doi"`
}

// Rejection records a table row that was not loaded.
type Rejection struct {
	Entry
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Registry is an immutable key -> DOI table. Definition order is preserved:
// the first key registered for a DOI is its canonical key.
type Registry struct {
	entries   []Entry
	byKey     map[string]string
	doiToKeys map[string][]string // lower-cased DOI -> keys in definition order
	prefixes  []string
	rejected  []Rejection
}

// file mirrors the YAML layout. Entries stay a raw node so that mapping
// order survives decoding.
type file struct {
	PartialDOIPrefixes []string  `yaml:"partial_doi_prefixes"`
	Entries            yaml.Node `yaml:"entries"`
}

// New builds a registry from entries in definition order. Entries whose DOI
// fails validation, and repeated keys, are rejected rather than trusted.
// A nil prefixes slice selects DefaultPartialPrefixes.
func New(entries []Entry, prefixes []string) *Registry {
	if prefixes == nil {
		prefixes = DefaultPartialPrefixes
	}
	r := &Registry{
		byKey:     make(map[string]string),
		doiToKeys: make(map[string][]string),
		prefixes:  append([]string(nil), prefixes...),
	}
	for _, e := range entries {
		r.add(e, 0)
	}
	return r
}

func (r *Registry) add(e Entry, line int) {
	e.Key = strings.TrimSpace(e.Key)
	e.DOI = strings.TrimSpace(e.DOI)

	switch {
	case e.Key == "":
		r.rejected = append(r.rejected, Rejection{Entry: e, Line: line, Reason: "empty key"})
		return
	case !IsDOI(e.DOI):
		r.rejected = append(r.rejected, Rejection{Entry: e, Line: line, Reason: ErrInvalidDOI.Error()})
		return
	}
	if _, dup := r.byKey[e.Key]; dup {
		r.rejected = append(r.rejected, Rejection{Entry: e, Line: line, Reason: "duplicate key"})
		return
	}

	r.entries = append(r.entries, e)
	r.byKey[e.Key] = e.DOI
	norm := strings.ToLower(e.DOI)
	r.doiToKeys[norm] = append(r.doiToKeys[norm], e.Key)
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Load(defaultTable)
}

// LoadFile reads a registry table from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading registry")
	}
	r, err := Load(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return r, nil
}

// Load parses a YAML registry table.
func Load(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing registry")
	}

	r := New(nil, f.PartialDOIPrefixes)
	if f.Entries.Kind == 0 || f.Entries.ShortTag() == "!!null" {
		return r, nil
	}
	if f.Entries.Kind != yaml.MappingNode {
		return nil, errors.WithHint(
			errors.Newf("registry entries must be a mapping, got line %d", f.Entries.Line),
			"write entries as `Key: 10.xxxx/suffix` pairs")
	}

	content := f.Entries.Content
	for i := 0; i+1 < len(content); i += 2 {
		k, v := content[i], content[i+1]
		if v.Kind != yaml.ScalarNode {
			r.rejected = append(r.rejected, Rejection{
				Entry:  Entry{Key: k.Value},
				Line:   k.Line,
				Reason: "value is not a scalar",
			})
			continue
		}
		r.add(Entry{Key: k.Value, DOI: v.Value}, k.Line)
	}
	return r, nil
}

// WithPrefixes returns a copy of r that detects partial DOIs using prefixes.
func (r *Registry) WithPrefixes(prefixes []string) *Registry {
	cp := *r
	cp.prefixes = append([]string(nil), prefixes...)
	return &cp
}

// LookupByKey returns the DOI curated for an exact key.
func (r *Registry) LookupByKey(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	doi, ok := r.byKey[key]
	return doi, ok
}

// KeysForDOI returns every key registered for a DOI in definition order.
func (r *Registry) KeysForDOI(doi string) []string {
	if r == nil {
		return nil
	}
	keys := r.doiToKeys[strings.ToLower(doi)]
	return append([]string(nil), keys...)
}

// CanonicalKey returns the first key registered for a DOI.
func (r *Registry) CanonicalKey(doi string) (string, bool) {
	if r == nil {
		return "", false
	}
	keys := r.doiToKeys[strings.ToLower(doi)]
	if len(keys) == 0 {
		return "", false
	}
	return keys[0], true
}

// Entries returns the accepted entries in definition order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Rejected returns rows that failed validation at load time.
func (r *Registry) Rejected() []Rejection {
	return append([]Rejection(nil), r.rejected...)
}

// Len returns the number of accepted entries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Prefixes returns the partial-DOI prefixes used by DetectKind.
func (r *Registry) Prefixes() []string {
	if r == nil {
		return DefaultPartialPrefixes
	}
	return r.prefixes
}

// DetectKind classifies a token using the registry's partial-DOI prefixes.
func (r *Registry) DetectKind(token string) Kind {
	return DetectKind(token, r.Prefixes())
}
