package stats

import (
	"testing"

	"loda/internal/number"
	"loda/internal/program"
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

func TestUpdateProgramStatsBasic(t *testing.T) {
	s := New(nil)
	id := mustUID(t, "A000001")

	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, program.NewDirect(1), program.NewDirect(0)),
		program.NewOperation(program.Add, program.NewDirect(1), program.NewConstant(number.FromInt64(1))),
	}
	s.UpdateProgramStats(id, p, "tester")

	if s.ProgramLengths[id] != int64(p.NumOps(false)) {
		t.Fatalf("expected program length %d, got %d", p.NumOps(false), s.ProgramLengths[id])
	}
	if s.SubmitterOf[id] != "tester" {
		t.Fatalf("expected submitter recorded")
	}
	if s.NumOpsPerType[program.Mov] != 1 || s.NumOpsPerType[program.Add] != 1 {
		t.Fatalf("expected one mov and one add counted")
	}
	if s.numConstants[number.FromInt64(1).String()] != 1 {
		t.Fatalf("expected the constant 1 to be counted once")
	}
}

func TestUpdateSequenceStatsAndTransitiveLength(t *testing.T) {
	s := New(nil)
	caller := mustUID(t, "A000002")
	callee := mustUID(t, "A000003")

	s.ProgramLengths[caller] = 3
	s.ProgramLengths[callee] = 4
	s.CallGraph[caller] = []uid.UID{callee}

	if got := s.GetTransitiveLength(caller); got != 7 {
		t.Fatalf("expected transitive length 7, got %d", got)
	}

	s.UpdateSequenceStats(caller, true, false)
	if s.NumSequences != 1 || s.NumPrograms != 1 || s.NumFormulas != 0 {
		t.Fatalf("unexpected summary counters: %+v", s)
	}
	if !s.AllProgramIDs.Exists(caller) {
		t.Fatalf("expected caller to be marked as having a program")
	}
}

func TestGetTransitiveLengthDetectsCycle(t *testing.T) {
	s := New(nil)
	a := mustUID(t, "A000004")
	b := mustUID(t, "A000005")
	s.ProgramLengths[a] = 1
	s.ProgramLengths[b] = 1
	s.CallGraph[a] = []uid.UID{b}
	s.CallGraph[b] = []uid.UID{a}

	got := s.GetTransitiveLength(a)
	if got != -1 {
		t.Fatalf("expected -1 for a cyclic call graph, got %d", got)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(nil)
	id := mustUID(t, "A000006")

	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, program.NewDirect(1), program.NewDirect(0)),
	}
	s.UpdateProgramStats(id, p, "tester")
	s.UpdateSequenceStats(id, true, false)
	s.Finalize()

	if err := s.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.NumSequences != 1 || loaded.NumPrograms != 1 {
		t.Fatalf("unexpected loaded summary: %+v", loaded)
	}
	if loaded.ProgramLengths[id] != s.ProgramLengths[id] {
		t.Fatalf("expected program length to round-trip, got %d want %d", loaded.ProgramLengths[id], s.ProgramLengths[id])
	}
	if !loaded.AllProgramIDs.Exists(id) {
		t.Fatalf("expected id to round-trip into all_program_ids")
	}
}

func TestBlockCollectorCutsOnLoopBoundary(t *testing.T) {
	c := NewBlockCollector()
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, program.NewDirect(1), program.NewDirect(0)),
		program.NewOperation(program.Lpb, program.NewDirect(0), program.NewConstant(number.FromInt64(1))),
		program.NewOperation(program.Sub, program.NewDirect(0), program.NewConstant(number.FromInt64(1))),
		program.NewOperation(program.Lpe, program.Operand{}, program.Operand{}),
	}
	c.Add(p)
	if c.Empty() {
		t.Fatalf("expected at least one block to be recorded")
	}

	blocks := c.Finalize()
	if blocks.NumBlocks() == 0 {
		t.Fatalf("expected finalize to produce at least one block")
	}
	var total float64
	for _, r := range blocks.Rates {
		total += r
	}
	if total < 0.99 || total > 1.01 {
		t.Fatalf("expected rates to sum to ~1, got %f", total)
	}
}
