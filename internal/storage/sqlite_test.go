package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/darisdzakwanhoesien2/research-landscape/internal/bibtex"
	"github.com/darisdzakwanhoesien2/research-landscape/internal/resolve"
)

var _ resolve.Corpus = (*DB)(nil)

const testCorpus = `
@article{Li2024Greenwashing,
  title = {Greenwashing in corporate reporting},
  doi = {10.1002/CSR.70133}
}

@inproceedings{devlin-etal-2019-bert,
  title = "{BERT}: Pre-training",
  url = "https://aclanthology.org/N19-1423/",
  doi = "10.18653/v1/N19-1423"
}

@article{Broken2020,
  title = {Missing brace
@misc{NoDOI2020, title={Untitled}}

@article{Alias2024, doi={10.1002/csr.70133}}
`

// setupTestDB opens a fresh database in a temp dir.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenDB(filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ingest(t *testing.T, db *DB, path, text string, batchSize int) *IngestResult {
	t.Helper()
	res, err := db.Ingest(context.Background(), path, "fp-"+path, bibtex.NewSpanIterator(text), batchSize)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	return res
}

func TestIngest(t *testing.T) {
	db := setupTestDB(t)
	res := ingest(t, db, "refs.bib", testCorpus, 2)

	if res.Batches != 3 {
		t.Errorf("Batches = %d, want 3", res.Batches)
	}
	if res.Stats.Attempted != 5 || res.Stats.Parsed != 4 {
		t.Errorf("Stats = %d attempted, %d parsed; want 5, 4", res.Stats.Attempted, res.Stats.Parsed)
	}

	doi, ok, err := db.LookupKey("Li2024Greenwashing")
	if err != nil || !ok {
		t.Fatalf("LookupKey() = %q, %v, %v", doi, ok, err)
	}
	if doi != "10.1002/CSR.70133" {
		t.Errorf("LookupKey() = %q, want literal casing", doi)
	}

	if _, ok, _ := db.LookupKey("NoDOI2020"); ok {
		t.Error("LookupKey(NoDOI2020) should be absent")
	}

	keys, err := db.LookupDOI("10.1002/csr.70133")
	if err != nil {
		t.Fatalf("LookupDOI() error = %v", err)
	}
	if want := []string{"Alias2024", "Li2024Greenwashing"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("LookupDOI() = %v, want %v", keys, want)
	}
}

func TestGetEntry(t *testing.T) {
	db := setupTestDB(t)
	ingest(t, db, "refs.bib", testCorpus, 0)

	e, err := db.GetEntry("devlin-etal-2019-bert")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if e == nil {
		t.Fatal("GetEntry() returned nil")
	}
	if e.Type != "inproceedings" || e.Fields["title"] != "{BERT}: Pre-training" {
		t.Errorf("GetEntry() = %+v", e)
	}
	if e.ExternalID != "N19-1423" {
		t.Errorf("ExternalID = %q, want N19-1423", e.ExternalID)
	}

	missing, err := db.GetEntry("Nope")
	if err != nil || missing != nil {
		t.Errorf("GetEntry(Nope) = %v, %v; want nil, nil", missing, err)
	}
}

func TestEntryByExternalID(t *testing.T) {
	db := setupTestDB(t)
	ingest(t, db, "refs.bib", testCorpus, 0)

	e, err := db.EntryByExternalID("N19-1423")
	if err != nil {
		t.Fatalf("EntryByExternalID() error = %v", err)
	}
	if e == nil || e.Key != "devlin-etal-2019-bert" {
		t.Errorf("EntryByExternalID() = %+v", e)
	}
}

func TestIngest_LastKeyWinsAcrossBatches(t *testing.T) {
	text := `
@article{Dup, doi={10.1/first}}
@article{Other, doi={10.1/other}}
@article{Dup, doi={10.1/second}}
`
	db := setupTestDB(t)
	ingest(t, db, "dup.bib", text, 1)

	doi, _, _ := db.LookupKey("Dup")
	if doi != "10.1/second" {
		t.Errorf("LookupKey(Dup) = %q, want 10.1/second", doi)
	}
	if keys, _ := db.LookupDOI("10.1/first"); len(keys) != 0 {
		t.Errorf("LookupDOI(10.1/first) = %v, want none", keys)
	}
}

func TestIngest_MatchesInMemoryIndex(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		key := fmt.Sprintf("K%02d", i%17)
		if i%5 == 0 {
			fmt.Fprintf(&b, "@misc{%s, title={T%d}}\n", key, i)
			continue
		}
		fmt.Fprintf(&b, "@article{%s, doi={10.1000/d%d}}\n", key, i%9)
	}
	text := b.String()

	idx, _ := bibtex.Parse(text)
	for _, size := range []int{1, 3, 40} {
		t.Run(fmt.Sprintf("batch=%d", size), func(t *testing.T) {
			db := setupTestDB(t)
			ingest(t, db, "gen.bib", text, size)

			for key, want := range idx.KeyToDOI() {
				got, ok, err := db.LookupKey(key)
				if err != nil || !ok || got != want {
					t.Errorf("LookupKey(%s) = %q, %v, %v; want %q", key, got, ok, err, want)
				}
			}
			for _, e := range idx.InOrder() {
				if e.DOI() == "" {
					if _, ok, _ := db.LookupKey(e.Key); ok {
						t.Errorf("LookupKey(%s) found a DOI, want none", e.Key)
					}
					continue
				}
				got, _ := db.LookupDOI(e.DOI())
				if want := idx.KeysForDOI(e.DOI()); !reflect.DeepEqual(got, want) {
					t.Errorf("LookupDOI(%s) = %v, want %v", e.DOI(), got, want)
				}
			}
		})
	}
}

func TestIngest_Cancelled(t *testing.T) {
	db := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.Ingest(ctx, "refs.bib", "fp", bibtex.NewSpanIterator(testCorpus), 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Ingest() error = %v, want context.Canceled", err)
	}

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Entries != 0 || len(stats.Sources) != 0 {
		t.Errorf("cancelled ingest left data behind: %+v", stats)
	}
}

func TestIngest_ReplacesSource(t *testing.T) {
	db := setupTestDB(t)
	ingest(t, db, "a.bib", "@article{Gone, doi={10.1/gone}}\n@article{Kept, doi={10.1/kept}}", 0)
	ingest(t, db, "b.bib", "@article{Other, doi={10.1/other}}", 0)
	ingest(t, db, "a.bib", "@article{Kept, doi={10.1/kept2}}", 0)

	if _, ok, _ := db.LookupKey("Gone"); ok {
		t.Error("entry removed from a.bib should be gone after re-ingest")
	}
	if doi, _, _ := db.LookupKey("Kept"); doi != "10.1/kept2" {
		t.Errorf("LookupKey(Kept) = %q, want 10.1/kept2", doi)
	}
	if _, ok, _ := db.LookupKey("Other"); !ok {
		t.Error("entries from b.bib should survive")
	}
}

func TestIngest_EarlierSourceResurfaces(t *testing.T) {
	db := setupTestDB(t)
	ingest(t, db, "a.bib", "@article{K, doi={10.1111/a}}", 0)
	ingest(t, db, "b.bib", "@article{K, doi={10.1111/b}}\n@article{X, doi={10.1111/x}}", 0)

	if doi, _, _ := db.LookupKey("K"); doi != "10.1111/b" {
		t.Errorf("LookupKey(K) = %q, want the later source's 10.1111/b", doi)
	}
	if keys, _ := db.LookupDOI("10.1111/a"); len(keys) != 0 {
		t.Errorf("LookupDOI(10.1111/a) = %v, want none while shadowed", keys)
	}

	// b.bib drops K; a.bib is unchanged and never re-ingested
	ingest(t, db, "b.bib", "@article{X, doi={10.1111/x}}", 0)

	doi, ok, err := db.LookupKey("K")
	if err != nil || !ok || doi != "10.1111/a" {
		t.Errorf("LookupKey(K) = %q, %v, %v; want 10.1111/a", doi, ok, err)
	}
	if keys, _ := db.LookupDOI("10.1111/a"); !reflect.DeepEqual(keys, []string{"K"}) {
		t.Errorf("LookupDOI(10.1111/a) = %v, want [K]", keys)
	}
	if keys, _ := db.LookupDOI("10.1111/b"); len(keys) != 0 {
		t.Errorf("LookupDOI(10.1111/b) = %v, want none", keys)
	}
	if current, _ := db.IsCurrent("a.bib", "fp-a.bib"); !current {
		t.Error("IsCurrent(a.bib) should still be true")
	}

	stats, _ := db.Stats()
	if stats.Entries != 2 || stats.Definitions != 2 {
		t.Errorf("Stats() = %+v, want 2 entries and 2 definitions", stats)
	}
}

func TestIngest_ShadowedDefinitionsCounted(t *testing.T) {
	db := setupTestDB(t)
	ingest(t, db, "a.bib", "@article{K, doi={10.1111/a}}", 0)
	ingest(t, db, "b.bib", "@article{K, doi={10.1111/b}}", 0)

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Entries != 1 || stats.Definitions != 2 || stats.DOIs != 1 {
		t.Errorf("Stats() = %+v, want 1 entry over 2 definitions", stats)
	}
}

func TestEntryByExternalID_LastScannedWins(t *testing.T) {
	text := `
@inproceedings{Zed, url = {https://aclanthology.org/2021.acl-long.201/}}
@inproceedings{Alpha, url = {https://aclanthology.org/2021.acl-long.201/}}
`
	idx, _ := bibtex.Parse(text)
	want, _ := idx.ByExternalID("2021.acl-long.201")

	for _, size := range []int{0, 1} {
		db := setupTestDB(t)
		ingest(t, db, "acl.bib", text, size)

		e, err := db.EntryByExternalID("2021.acl-long.201")
		if err != nil {
			t.Fatalf("EntryByExternalID() error = %v", err)
		}
		if e == nil || e.Key != want.Key {
			t.Errorf("batch=%d: EntryByExternalID() = %+v, want %s", size, e, want.Key)
		}
	}
}

func TestIsCurrent(t *testing.T) {
	db := setupTestDB(t)

	current, err := db.IsCurrent("refs.bib", "fp-refs.bib")
	if err != nil || current {
		t.Fatalf("IsCurrent() before ingest = %v, %v", current, err)
	}

	ingest(t, db, "refs.bib", testCorpus, 0)

	if current, _ := db.IsCurrent("refs.bib", "fp-refs.bib"); !current {
		t.Error("IsCurrent() should be true for the ingested fingerprint")
	}
	if current, _ := db.IsCurrent("refs.bib", "changed"); current {
		t.Error("IsCurrent() should be false for a different fingerprint")
	}
}

func TestStatsAndClear(t *testing.T) {
	db := setupTestDB(t)
	ingest(t, db, "refs.bib", testCorpus, 0)

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Entries != 4 || stats.WithDOI != 3 || stats.DOIs != 2 || stats.Definitions != 4 {
		t.Errorf("Stats() = %+v", stats)
	}
	if len(stats.Sources) != 1 || stats.Sources[0].Attempted != 5 || stats.Sources[0].Parsed != 4 {
		t.Errorf("Sources = %+v", stats.Sources)
	}

	if err := db.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	stats, _ = db.Stats()
	if stats.Entries != 0 || len(stats.Sources) != 0 {
		t.Errorf("Stats() after Clear = %+v", stats)
	}
}

func TestDB_AsResolveCorpus(t *testing.T) {
	db := setupTestDB(t)
	ingest(t, db, "refs.bib", testCorpus, 0)

	p := resolve.New(db, nil)
	rec, err := p.ResolveToken("10.1002/csr.70133")
	if err != nil {
		t.Fatalf("ResolveToken() error = %v", err)
	}
	if rec.Method != resolve.MethodCorpusDOIReverse || rec.ResolvedKey != "Alias2024" {
		t.Errorf("ResolveToken() = %+v", rec)
	}
}
