package bibtex

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

const sampleCorpus = `% exported corpus
@article{Li2024Greenwashing,
  title = {Greenwashing in {ESG} Reports},
  doi = {10.1002/CSR.70133},
  year = 2024
}

@inproceedings{devlin-etal-2019-bert,
    title = "{BERT}: Pre-training of Deep Bidirectional Transformers
             for Language Understanding",
    DOI = "10.18653/v1/N19-1423",
    url = "https://aclanthology.org/N19-1423/",
}

@misc{NoDOI2020,
  title = {A preprint without a DOI}
}
`

func TestParse_Basic(t *testing.T) {
	idx, stats := Parse(sampleCorpus)

	if stats.Attempted != 3 || stats.Parsed != 3 {
		t.Fatalf("Parse() stats = %d/%d, want 3/3", stats.Parsed, stats.Attempted)
	}
	if idx.Len() != 3 {
		t.Errorf("Len() = %d, want 3", idx.Len())
	}

	doi, ok := idx.DOIForKey("Li2024Greenwashing")
	if !ok || doi != "10.1002/CSR.70133" {
		t.Errorf("DOIForKey(Li2024Greenwashing) = %q, %v, want original casing", doi, ok)
	}

	if _, ok := idx.DOIForKey("NoDOI2020"); ok {
		t.Error("DOIForKey(NoDOI2020) should be absent for an entry without doi")
	}
	if _, ok := idx.Entry("NoDOI2020"); !ok {
		t.Error("Entry(NoDOI2020) should still be indexed")
	}

	keys := idx.KeysForDOI("10.1002/csr.70133")
	if len(keys) != 1 || keys[0] != "Li2024Greenwashing" {
		t.Errorf("KeysForDOI() = %v, want [Li2024Greenwashing]", keys)
	}
}

func TestParse_FieldValues(t *testing.T) {
	idx, _ := Parse(sampleCorpus)

	bert, ok := idx.Entry("devlin-etal-2019-bert")
	if !ok {
		t.Fatal("Entry(devlin-etal-2019-bert) not found")
	}
	if bert.Type != "inproceedings" {
		t.Errorf("Type = %q, want inproceedings", bert.Type)
	}
	wantTitle := "{BERT}: Pre-training of Deep Bidirectional Transformers for Language Understanding"
	if got := bert.Fields["title"]; got != wantTitle {
		t.Errorf("title = %q, want %q", got, wantTitle)
	}
	if got := bert.Fields["doi"]; got != "10.18653/v1/N19-1423" {
		t.Errorf("doi (uppercase field name) = %q", got)
	}
	if bert.ExternalID != "N19-1423" {
		t.Errorf("ExternalID = %q, want N19-1423", bert.ExternalID)
	}
	if e, ok := idx.ByExternalID("N19-1423"); !ok || e.Key != bert.Key {
		t.Errorf("ByExternalID(N19-1423) = %v, %v", e, ok)
	}

	li, _ := idx.Entry("Li2024Greenwashing")
	if got := li.Fields["year"]; got != "2024" {
		t.Errorf("bare year = %q, want 2024", got)
	}
}

func TestParse_FaultIsolation(t *testing.T) {
	corpus := `@article{Good1, doi = {10.1000/one}}
@article{Broken, doi = {10.1000/two}
@article{Good2, doi = {10.1000/three}}
@article{, doi = {10.1000/four}}
@article{Good3, doi = {10.1000/five}}
`
	idx, stats := Parse(corpus)

	if stats.Attempted != 5 {
		t.Errorf("Attempted = %d, want 5", stats.Attempted)
	}
	if stats.Parsed != 3 || idx.Len() != 3 {
		t.Errorf("Parsed = %d, Len = %d, want 3", stats.Parsed, idx.Len())
	}
	if stats.Skipped() != 2 || len(stats.Errors) != 2 {
		t.Fatalf("Skipped = %d, errors = %d, want 2", stats.Skipped(), len(stats.Errors))
	}
	if !errors.Is(stats.Errors[0], ErrUnbalancedBraces) {
		t.Errorf("first error = %v, want unbalanced braces", stats.Errors[0])
	}
	if stats.Errors[0].Line != 2 {
		t.Errorf("first error line = %d, want 2", stats.Errors[0].Line)
	}
	if !errors.Is(stats.Errors[1], ErrMissingKey) {
		t.Errorf("second error = %v, want missing key", stats.Errors[1])
	}
	for _, key := range []string{"Good1", "Good2", "Good3"} {
		if _, ok := idx.DOIForKey(key); !ok {
			t.Errorf("DOIForKey(%s) missing", key)
		}
	}
}

func TestParse_NothingParsable(t *testing.T) {
	for _, corpus := range []string{"", "no entries here", "@article{x, title = {unclosed"} {
		idx, _ := Parse(corpus)
		if idx == nil {
			t.Fatalf("Parse(%q) returned nil index", corpus)
		}
		if idx.Len() != 0 || len(idx.KeyToDOI()) != 0 {
			t.Errorf("Parse(%q) should yield an empty index", corpus)
		}
	}
}

func TestParse_DuplicateKeyLastWins(t *testing.T) {
	corpus := `@article{Dup, doi = {10.1000/first}}
@article{Dup, doi = {10.1000/second}}
`
	idx, stats := Parse(corpus)
	if stats.Parsed != 2 {
		t.Errorf("Parsed = %d, want 2", stats.Parsed)
	}
	if doi, _ := idx.DOIForKey("Dup"); doi != "10.1000/second" {
		t.Errorf("DOIForKey(Dup) = %q, want last entry", doi)
	}
	if keys := idx.KeysForDOI("10.1000/first"); len(keys) != 0 {
		t.Errorf("KeysForDOI(first) = %v, want none after replacement", keys)
	}
}

// sharedAnthologyCorpus defines keys A..H, all pointing at the same anthology paper.
func sharedAnthologyCorpus() string {
	var b strings.Builder
	for _, k := range "ABCDEFGH" {
		fmt.Fprintf(&b, "@inproceedings{%c,\n  url = {https://aclanthology.org/2021.acl-long.201/}\n}\n\n", k)
	}
	return b.String()
}

func TestByExternalID_LastScannedWins(t *testing.T) {
	idx, _ := Parse(sharedAnthologyCorpus())
	e, ok := idx.ByExternalID("2021.acl-long.201")
	if !ok || e.Key != "H" {
		t.Fatalf("ByExternalID() = %v, %v, want H", e, ok)
	}
}

func TestMerge_MatchesSingleScan(t *testing.T) {
	corpus := sharedAnthologyCorpus()
	single, _ := Parse(corpus)
	want, _ := single.ByExternalID("2021.acl-long.201")

	for i := 0; i < 50; i++ {
		part, _ := Parse(corpus)
		merged := NewIndex()
		merged.Merge(part)
		got, ok := merged.ByExternalID("2021.acl-long.201")
		if !ok || got.Key != want.Key {
			t.Fatalf("run %d: merged ByExternalID() = %v, want %s", i, got, want.Key)
		}
	}
}

func TestByExternalID_ReplacedEntry(t *testing.T) {
	corpus := `@inproceedings{A, url = {https://aclanthology.org/N19-1423/}}
@inproceedings{B, url = {https://aclanthology.org/N19-1423/}}
@misc{B, title = {no url any more}}
`
	idx, _ := Parse(corpus)
	e, ok := idx.ByExternalID("N19-1423")
	if !ok || e.Key != "A" {
		t.Errorf("ByExternalID(N19-1423) = %v, %v, want A", e, ok)
	}
	if _, ok := idx.ByExternalID("missing"); ok {
		t.Error("ByExternalID(missing) should not be found")
	}
}

func TestInOrder(t *testing.T) {
	corpus := `@misc{C, title = {c}}
@misc{A, title = {a}}
@misc{C, title = {c again}}
@misc{B, title = {b}}
`
	idx, _ := Parse(corpus)
	var keys []string
	for _, e := range idx.InOrder() {
		keys = append(keys, e.Key)
	}
	if got := strings.Join(keys, ","); got != "A,C,B" {
		t.Errorf("InOrder() keys = %s, want A,C,B", got)
	}
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantKey string
		wantErr error
		fields  map[string]string
	}{
		{
			name:    "nested braces",
			text:    `@article{K1, title = {The {DNA} of {{Nested}} braces}}`,
			wantKey: "K1",
			fields:  map[string]string{"title": "The {DNA} of {{Nested}} braces"},
		},
		{
			name:    "irregular whitespace",
			text:    "@Article { K2 ,\n\tDoi   =\n {10.1/x} ,  }",
			wantKey: "K2",
			fields:  map[string]string{"doi": "10.1/x"},
		},
		{
			name:    "string concatenation",
			text:    `@misc{K3, note = "part one " # {part two}}`,
			wantKey: "K3",
			fields:  map[string]string{"note": "part one part two"},
		},
		{
			name:    "key only",
			text:    `@misc{K4}`,
			wantKey: "K4",
			fields:  map[string]string{},
		},
		{
			name:    "escaped brace in value",
			text:    `@misc{K5, title = {50\% off \{really\}}}`,
			wantKey: "K5",
			fields:  map[string]string{"title": `50\% off \{really\}`},
		},
		{
			name:    "missing key",
			text:    `@article{ , title = {x}}`,
			wantErr: ErrMissingKey,
		},
		{
			name:    "unbalanced",
			text:    `@article{K6, title = {x}`,
			wantErr: ErrUnbalancedBraces,
		},
		{
			name:    "field without value",
			text:    `@article{K7, title}`,
			wantErr: ErrMalformedField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseEntry(tt.text)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseEntry() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEntry() unexpected error: %v", err)
			}
			if e.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", e.Key, tt.wantKey)
			}
			if len(e.Fields) != len(tt.fields) {
				t.Errorf("Fields = %v, want %v", e.Fields, tt.fields)
			}
			for k, v := range tt.fields {
				if e.Fields[k] != v {
					t.Errorf("Fields[%s] = %q, want %q", k, e.Fields[k], v)
				}
			}
		})
	}
}

func TestExtractExternalID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://aclanthology.org/2021.acl-long.201", "2021.acl-long.201"},
		{"https://aclanthology.org/2021.acl-long.201/", "2021.acl-long.201"},
		{"https://aclanthology.org/2021.acl-long.201.pdf", "2021.acl-long.201"},
		{"https://www.aclweb.org/anthology/P19-1001", "P19-1001"},
		{"https://aclanthology.org/volumes/2025.acl-long/", ""},
		{"https://doi.org/10.1002/csr.70133", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := ExtractExternalID(tt.url); got != tt.want {
				t.Errorf("ExtractExternalID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
