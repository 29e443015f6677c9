package resolve

import (
	"github.com/darisdzakwanhoesien2/research-landscape/internal/bibtex"
)

// Corpus is the read-only view of a bibliography the pipeline consults.
// Implementations must not change while a pipeline uses them.
type Corpus interface {
	// LookupKey returns the DOI recorded for a citation key.
	LookupKey(key string) (doi string, ok bool, err error)
	// LookupDOI returns the keys sharing a DOI (case-insensitive), sorted.
	LookupDOI(doi string) ([]string, error)
}

// FromIndex adapts an in-memory index to the Corpus interface.
func FromIndex(idx *bibtex.Index) Corpus {
	if idx == nil {
		return nil
	}
	return indexCorpus{idx: idx}
}

type indexCorpus struct {
	idx *bibtex.Index
}

func (c indexCorpus) LookupKey(key string) (string, bool, error) {
	doi, ok := c.idx.DOIForKey(key)
	return doi, ok, nil
}

func (c indexCorpus) LookupDOI(doi string) ([]string, error) {
	return c.idx.KeysForDOI(doi), nil
}
