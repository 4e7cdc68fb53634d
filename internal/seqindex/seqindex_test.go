package seqindex

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loda/internal/sequence"
	"loda/internal/uid"
)

func mustUID(t *testing.T, s string) uid.UID {
	t.Helper()
	id, err := uid.Parse(s)
	if err != nil {
		t.Fatalf("parse uid %q: %v", s, err)
	}
	return id
}

// fakeStore is an in-memory BFileStore for tests.
type fakeStore struct {
	content  map[uid.UID]string
	removed  map[uid.UID]bool
	reported map[uid.UID]bool
	fetch    func(id uid.UID) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		content:  make(map[uid.UID]string),
		removed:  make(map[uid.UID]bool),
		reported: make(map[uid.UID]bool),
	}
}

func (f *fakeStore) Open(id uid.UID) (io.ReadCloser, error) {
	c, ok := f.content[id]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(c)), nil
}

func (f *fakeStore) Remove(id uid.UID) { f.removed[id] = true }

func (f *fakeStore) Fetch(id uid.UID) error {
	if f.fetch != nil {
		return f.fetch(id)
	}
	return os.ErrNotExist
}

func (f *fakeStore) ReportBroken(id uid.UID) { f.reported[id] = true }

func TestGetTermsWithinStrippedRange(t *testing.T) {
	id := mustUID(t, "A000045")
	s := NewWithTerms(id, "Fibonacci", sequence.New(0, 1, 1, 2, 3, 5, 8), nil, nil)
	got, err := s.GetTerms(4)
	if err != nil {
		t.Fatalf("GetTerms: %v", err)
	}
	if !got.Equal(sequence.New(0, 1, 1, 2)) {
		t.Fatalf("got %v", got)
	}
}

func TestGetTermsExtendsFromBFile(t *testing.T) {
	id := mustUID(t, "A000045")
	store := newFakeStore()
	store.content[id] = "0 0\n1 1\n2 1\n3 2\n4 3\n5 5\n6 8\n7 13\n"
	s := NewWithTerms(id, "Fibonacci", sequence.New(0, 1, 1), store, nil)

	got, err := s.GetTerms(6)
	if err != nil {
		t.Fatalf("GetTerms: %v", err)
	}
	if !got.Equal(sequence.New(0, 1, 1, 2, 3, 5)) {
		t.Fatalf("got %v", got)
	}
}

func TestGetTermsRemovesInvalidBFile(t *testing.T) {
	id := mustUID(t, "A000045")
	store := newFakeStore()
	// disagrees with the trusted stripped terms and can't be aligned
	store.content[id] = "0 9\n1 9\n2 9\n3 9\n"
	s := NewWithTerms(id, "Fibonacci", sequence.New(0, 1, 1), store, nil)

	if _, err := s.GetTerms(6); err == nil {
		t.Fatalf("expected an error loading an invalid b-file for a curated sequence")
	}
	if !store.removed[id] || !store.reported[id] {
		t.Fatalf("expected the broken b-file to be removed and reported")
	}
}

func TestGetTermsZeroIDInvalid(t *testing.T) {
	s := New(uid.UID{}, nil, nil)
	if _, err := s.GetTerms(5); err == nil {
		t.Fatalf("expected an error for the zero-value id")
	}
}

func TestSequenceIndexLookup(t *testing.T) {
	idx := NewSequenceIndex()
	id := mustUID(t, "A000001")
	idx.Add(NewWithTerms(id, "count", sequence.New(0, 1, 1, 1), nil, nil))

	if !idx.Exists(id) {
		t.Fatalf("expected id to exist")
	}
	expected, ok := idx.Lookup(id)
	if !ok {
		t.Fatalf("expected lookup to succeed")
	}
	if expected.IDString() != id.String() {
		t.Fatalf("got %s, want %s", expected.IDString(), id.String())
	}
	if idx.Len() != 1 {
		t.Fatalf("expected len 1, got %d", idx.Len())
	}
}

func TestSequenceLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "stripped"), ""+
		"# comment\n"+
		"A000001 ,0,1,1,1,2,1,\n"+
		"A000002 ,1,1,2,1,1,2,\n")
	writeFile(t, filepath.Join(dir, "names"), ""+
		"A000001 number of groups of order n\n"+
		"A000002 Kolakoski sequence\n")
	writeFile(t, filepath.Join(dir, "offsets"), "A000001: 1\nA000002:0\n")

	idx := NewSequenceIndex()
	loader := NewSequenceLoader(idx, 3, nil, nil)
	if err := loader.Load(dir, 'A'); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loader.NumTotal() != 2 || loader.NumLoaded() != 2 {
		t.Fatalf("expected 2/2, got %d/%d", loader.NumLoaded(), loader.NumTotal())
	}

	s, ok := idx.Get(mustUID(t, "A000001"))
	if !ok {
		t.Fatalf("expected A000001 to be indexed")
	}
	if s.Name != "number of groups of order n" {
		t.Fatalf("unexpected name %q", s.Name)
	}
	if s.Offset != 1 {
		t.Fatalf("expected offset 1, got %d", s.Offset)
	}
	if s.ExistingNumTerms() != 6 {
		t.Fatalf("expected 6 terms, got %d", s.ExistingNumTerms())
	}

	if err := loader.CheckConsistency(); err != nil {
		t.Fatalf("check consistency: %v", err)
	}
}

func TestSequenceLoaderMinNumTermsFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "stripped"), "A000001 ,0,1,\n")
	writeFile(t, filepath.Join(dir, "names"), "A000001 short one\n")

	idx := NewSequenceIndex()
	loader := NewSequenceLoader(idx, 5, nil, nil)
	if err := loader.Load(dir, 'A'); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loader.NumTotal() != 1 || loader.NumLoaded() != 0 {
		t.Fatalf("expected 1/0, got %d/%d", loader.NumLoaded(), loader.NumTotal())
	}
	if idx.Exists(mustUID(t, "A000001")) {
		t.Fatalf("expected the too-short sequence to be filtered out")
	}
}

func TestLoadListAndMergeCounts(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "protect.txt")
	writeFile(t, listPath, "# protected ids\nA000001: keep forever\nA000002\n")

	set, err := LoadList(listPath, nil)
	if err != nil {
		t.Fatalf("load list: %v", err)
	}
	if set.Len() != 2 || !set.Exists(mustUID(t, "A000001")) || !set.Exists(mustUID(t, "A000002")) {
		t.Fatalf("unexpected set contents, len=%d", set.Len())
	}

	delta := map[uid.UID]int64{mustUID(t, "A000001"): 3}
	if err := MergeCounts(nil, dir, "invalid_matches.txt", delta, nil); err != nil {
		t.Fatalf("merge counts: %v", err)
	}
	if len(delta) != 0 {
		t.Fatalf("expected delta to be cleared after merge")
	}

	counts, ok, err := LoadCounts(filepath.Join(dir, "invalid_matches.txt"), nil)
	if err != nil || !ok {
		t.Fatalf("load counts: ok=%v err=%v", ok, err)
	}
	if counts[mustUID(t, "A000001")] != 3 {
		t.Fatalf("expected 3, got %d", counts[mustUID(t, "A000001")])
	}

	// merging again should accumulate on top of the persisted value
	delta2 := map[uid.UID]int64{mustUID(t, "A000001"): 2}
	if err := MergeCounts(nil, dir, "invalid_matches.txt", delta2, nil); err != nil {
		t.Fatalf("merge counts again: %v", err)
	}
	counts2, _, err := LoadCounts(filepath.Join(dir, "invalid_matches.txt"), nil)
	if err != nil {
		t.Fatalf("load counts again: %v", err)
	}
	if counts2[mustUID(t, "A000001")] != 5 {
		t.Fatalf("expected 5 after accumulation, got %d", counts2[mustUID(t, "A000001")])
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
