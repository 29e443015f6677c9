package bibtex

import (
	"sort"
	"strings"
)

// Index holds the parsed entries of a corpus and the lookups derived from them.
//
// Duplicate keys follow a last-entry-wins policy in scan order. When an entry
// is replaced, its previous DOI and external ID mappings are dropped so that
// every lookup describes the same final set of entries.
type Index struct {
	entries     map[string]*Entry
	seq         map[string]int // key -> scan position of its surviving definition
	next        int
	keyToDOI    map[string]string              // literal DOI as written in the corpus
	doiToKeys   map[string]map[string]struct{} // lower-cased DOI -> keys
	externalIDs map[string]map[string]struct{} // anthology id -> keys
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		entries:     make(map[string]*Entry),
		seq:         make(map[string]int),
		keyToDOI:    make(map[string]string),
		doiToKeys:   make(map[string]map[string]struct{}),
		externalIDs: make(map[string]map[string]struct{}),
	}
}

// NormalizeDOI returns the lookup form of a DOI. Only case is normalized.
func NormalizeDOI(doi string) string {
	return strings.ToLower(doi)
}

// Add inserts an entry, replacing any earlier entry with the same key. The
// entry takes the latest scan position.
func (idx *Index) Add(e *Entry) {
	if old, ok := idx.entries[e.Key]; ok {
		idx.unlink(old)
	}
	idx.entries[e.Key] = e
	idx.next++
	idx.seq[e.Key] = idx.next

	if doi := e.DOI(); doi != "" {
		idx.keyToDOI[e.Key] = doi
		norm := NormalizeDOI(doi)
		keys, ok := idx.doiToKeys[norm]
		if !ok {
			keys = make(map[string]struct{})
			idx.doiToKeys[norm] = keys
		}
		keys[e.Key] = struct{}{}
	}
	if e.ExternalID != "" {
		keys, ok := idx.externalIDs[e.ExternalID]
		if !ok {
			keys = make(map[string]struct{})
			idx.externalIDs[e.ExternalID] = keys
		}
		keys[e.Key] = struct{}{}
	}
}

func (idx *Index) unlink(old *Entry) {
	if doi := old.DOI(); doi != "" {
		norm := NormalizeDOI(doi)
		if keys, ok := idx.doiToKeys[norm]; ok {
			delete(keys, old.Key)
			if len(keys) == 0 {
				delete(idx.doiToKeys, norm)
			}
		}
	}
	delete(idx.keyToDOI, old.Key)
	if keys, ok := idx.externalIDs[old.ExternalID]; ok {
		delete(keys, old.Key)
		if len(keys) == 0 {
			delete(idx.externalIDs, old.ExternalID)
		}
	}
}

// Merge folds a later fragment into idx using the same last-entry-wins policy
// as a single scan. Entries of other are replayed in its scan order, so
// merging the fragments of a corpus yields the same index as parsing it whole.
func (idx *Index) Merge(other *Index) {
	if other == nil {
		return
	}
	for _, e := range other.InOrder() {
		idx.Add(e)
	}
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entry returns the entry for a key.
func (idx *Index) Entry(key string) (*Entry, bool) {
	e, ok := idx.entries[key]
	return e, ok
}

// InOrder returns all entries in scan order. A replaced key appears at the
// position of its last definition.
func (idx *Index) InOrder() []*Entry {
	out := make([]*Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return idx.seq[out[i].Key] < idx.seq[out[j].Key] })
	return out
}

// DOIForKey returns the DOI recorded for a key. Keys without a DOI field are absent.
func (idx *Index) DOIForKey(key string) (string, bool) {
	doi, ok := idx.keyToDOI[key]
	return doi, ok
}

// KeysForDOI returns the keys sharing a DOI, sorted. The DOI is matched case-insensitively.
func (idx *Index) KeysForDOI(doi string) []string {
	set := idx.doiToKeys[NormalizeDOI(doi)]
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ByExternalID returns the entry carrying an anthology identifier. When
// several entries share it, the one scanned last wins.
func (idx *Index) ByExternalID(id string) (*Entry, bool) {
	var best string
	for k := range idx.externalIDs[id] {
		if best == "" || idx.seq[k] > idx.seq[best] {
			best = k
		}
	}
	if best == "" {
		return nil, false
	}
	return idx.entries[best], true
}

// KeyToDOI returns a copy of the key -> DOI mapping.
func (idx *Index) KeyToDOI() map[string]string {
	out := make(map[string]string, len(idx.keyToDOI))
	for k, v := range idx.keyToDOI {
		out[k] = v
	}
	return out
}

// DOICount returns the number of distinct (normalized) DOIs.
func (idx *Index) DOICount() int {
	return len(idx.doiToKeys)
}
