package finder

import (
	"testing"

	"loda/internal/evaluator"
	"loda/internal/matcher"
	"loda/internal/number"
	"loda/internal/program"
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

// fakeSequence is a minimal ExpectedSequence backed by a fixed term list.
type fakeSequence struct {
	id    uid.UID
	terms sequence.Sequence
}

func (f *fakeSequence) UID() uid.UID     { return f.id }
func (f *fakeSequence) IDString() string { return f.id.String() }
func (f *fakeSequence) GetTerms(numTerms int) (sequence.Sequence, error) {
	if numTerms > len(f.terms) {
		numTerms = len(f.terms)
	}
	return f.terms[:numTerms], nil
}
func (f *fakeSequence) ExistingNumTerms() int { return len(f.terms) }

// fakeLookup resolves ids against a fixed set of fakeSequences.
type fakeLookup map[uid.UID]*fakeSequence

func (l fakeLookup) Lookup(id uid.UID) (ExpectedSequence, bool) {
	s, ok := l[id]
	return s, ok
}

func identityProgram() *program.Program {
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, program.NewDirect(0), program.NewDirect(0)),
	}
	return p
}

func TestFindSequence(t *testing.T) {
	id := mustUID(t, "A000001")
	terms := sequence.New(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15)

	m := matcher.NewDirectMatcher(nil)
	m.Insert(terms, id)

	ev := evaluator.New(nil, evaluator.AllModes, 100000, 1000)
	f := New([]matcher.Matcher{m}, ev, 1000, nil)

	lookup := fakeLookup{id: {id: id, terms: terms}}
	normSeq, hits := f.FindSequence(identityProgram(), lookup)

	if !normSeq.Equal(sequence.New(0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)) {
		t.Fatalf("expected the OutputCell sequence (never written) to be all zero, got %v", normSeq)
	}
	if len(hits) != 1 {
		t.Fatalf("expected one hit, got %d: %v", len(hits), hits)
	}
	if hits[0].TargetID != id {
		t.Fatalf("expected hit for %v, got %v", id, hits[0].TargetID)
	}
}

func TestIsOptimizedBetterSimpler(t *testing.T) {
	ev := evaluator.New(nil, evaluator.AllModes, 100000, 1000)
	f := New(nil, ev, 1000, nil)

	existing := program.New()
	existing.Ops = []program.Operation{
		program.NewOperation(program.Add, program.NewDirect(0), program.NewConstant(number.FromInt64(1024))),
	}
	optimized := program.New()
	optimized.Ops = []program.Operation{
		program.NewOperation(program.Add, program.NewDirect(0), program.NewConstant(number.FromInt64(7))),
	}
	seq := &fakeSequence{id: mustUID(t, "A000002"), terms: sequence.New(1025, 1026)}

	verdict := f.IsOptimizedBetter(existing, optimized, seq, false, 0)
	if verdict != "Simpler" {
		t.Fatalf("expected Simpler, got %q", verdict)
	}
}

func TestIsOptimizedBetterNoImprovement(t *testing.T) {
	ev := evaluator.New(nil, evaluator.AllModes, 100000, 1000)
	f := New(nil, ev, 1000, nil)

	existing := program.New()
	existing.Ops = []program.Operation{
		program.NewOperation(program.Add, program.NewDirect(0), program.NewConstant(number.FromInt64(7))),
	}
	optimized := existing.Clone()
	seq := &fakeSequence{id: mustUID(t, "A000003"), terms: sequence.New(7, 8)}

	verdict := f.IsOptimizedBetter(existing, optimized, seq, false, 0)
	if verdict != "" {
		t.Fatalf("expected no improvement for an identical program, got %q", verdict)
	}
}

func TestHasBadConstant(t *testing.T) {
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Add, program.NewDirect(0), program.NewConstant(number.FromInt64(1024))),
	}
	if !hasBadConstant(p) {
		t.Fatalf("expected 1024 (a power of two) to be flagged as a bad constant")
	}

	clean := program.New()
	clean.Ops = []program.Operation{
		program.NewOperation(program.Add, program.NewDirect(0), program.NewConstant(number.FromInt64(7))),
	}
	if hasBadConstant(clean) {
		t.Fatalf("did not expect 7 to be flagged as a bad constant")
	}

	zero := program.New()
	zero.Ops = []program.Operation{
		program.NewOperation(program.Add, program.NewDirect(0), program.NewConstant(number.Zero)),
	}
	if hasBadConstant(zero) {
		t.Fatalf("did not expect a literal 0 constant to be flagged as a bad constant")
	}
}

func TestNotifyInvalidMatch(t *testing.T) {
	ev := evaluator.New(nil, evaluator.AllModes, 100000, 1000)
	f := New(nil, ev, 1000, nil)
	id := mustUID(t, "A000004")

	f.notifyInvalidMatch(id)
	f.notifyInvalidMatch(id)

	counts := f.InvalidMatchCounts()
	if counts[id] != 2 {
		t.Fatalf("expected 2 invalid matches for %v, got %d", id, counts[id])
	}
}
