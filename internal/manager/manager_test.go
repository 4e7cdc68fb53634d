package manager

import (
	"testing"

	"loda/internal/config"
	"loda/internal/evaluator"
	"loda/internal/finder"
	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/seqindex"
	"loda/internal/sequence"
	"loda/internal/stats"
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

func newTestManager(t *testing.T, overwrite config.OverwriteMode) (*Manager, uid.UID) {
	t.Helper()
	id := mustUID(t, "A000012")

	idx := seqindex.NewSequenceIndex()
	terms := sequence.New(7, 7, 7, 7, 7, 7, 7, 7)
	idx.Add(seqindex.NewWithTerms(id, "all sevens", terms, nil, nil))

	st := stats.New(nil)
	st.AllProgramIDs.Insert(id)

	ev := evaluator.New(nil, evaluator.AllModes, 100000, 1000)
	f := finder.New(nil, ev, 1000, nil)

	m := New(Config{Overwrite: overwrite, Domains: "A"}, idx, f, st, nil, nil)
	return m, id
}

// TestShouldMatchAutoComplexOverride checks the auto-overwrite threshold:
// a sequence whose existing program has transitive length over 10 is
// still offered to the matchers for improvement attempts, even though it
// is not on the explicit overwrite list.
func TestShouldMatchAutoComplexOverride(t *testing.T) {
	m, id := newTestManager(t, config.OverwriteAuto)
	m.Stats.ProgramLengths[id] = 11

	seq, _ := m.Index.Get(id)
	if !m.ShouldMatch(seq) {
		t.Fatalf("expected a complex (transitive length > 10) program to remain matchable under auto overwrite")
	}
}

// TestShouldMatchAutoSimpleProgramLocked checks the other side of the
// threshold: a short existing program is left alone under auto overwrite
// once it exists, unless explicitly listed.
func TestShouldMatchAutoSimpleProgramLocked(t *testing.T) {
	m, id := newTestManager(t, config.OverwriteAuto)
	m.Stats.ProgramLengths[id] = 3

	seq, _ := m.Index.Get(id)
	if m.ShouldMatch(seq) {
		t.Fatalf("expected a simple existing program to be left alone under auto overwrite")
	}
}

func constProgram(v int64) *program.Program {
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Add, program.NewDirect(0), program.NewConstant(number.FromInt64(v))),
	}
	return p
}

// TestUpdateProgramAutoComplexNoImprovement is the manager-level half of
// scenario 6: with overwrite_mode=auto and a target whose existing
// program has transitive length over 10 (so ShouldMatch lets candidates
// through), a candidate that is not simpler/faster/better than the
// existing program must not replace it.
func TestUpdateProgramAutoComplexNoImprovement(t *testing.T) {
	m, id := newTestManager(t, config.OverwriteAuto)
	m.Stats.ProgramLengths[id] = 11

	existing := constProgram(7)
	m.cfg.ProgramsDir = t.TempDir()
	if err := m.persist(id, existing, ""); err != nil {
		t.Fatalf("persist existing: %v", err)
	}

	candidate := constProgram(7) // identical, not an improvement
	result, err := m.UpdateProgram(id, candidate, config.ValidationExtended)
	if err != nil {
		t.Fatalf("UpdateProgram: %v", err)
	}
	if result.Updated {
		t.Fatalf("expected updated=false for a non-improving candidate, got %+v", result)
	}
}
