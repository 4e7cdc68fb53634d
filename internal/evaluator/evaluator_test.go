package evaluator

import (
	"testing"

	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/sequence"
	"loda/internal/uid"
)

// doubleProgram computes add $0,$0 (2*n).
func doubleProgram() *program.Program {
	p := program.New()
	d := program.NewDirect(0)
	p.Ops = []program.Operation{
		program.NewOperation(program.Add, d, d),
	}
	return p
}

func mustUID(t *testing.T, s string) uid.UID {
	t.Helper()
	id, err := uid.Parse(s)
	if err != nil {
		t.Fatalf("parse uid %q: %v", s, err)
	}
	return id
}

func TestEval(t *testing.T) {
	e := New(nil, AllModes, 100000, 1000)
	got, steps, err := e.Eval(doubleProgram(), 5)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	want := sequence.New(0, 2, 4, 6, 8)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if steps.Runs != 5 {
		t.Fatalf("expected 5 runs, got %d", steps.Runs)
	}
}

func TestEvalMultiCell(t *testing.T) {
	e := New(nil, AllModes, 100000, 1000)
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, program.NewDirect(2), program.NewDirect(0)),
		program.NewOperation(program.Add, program.NewDirect(2), program.NewConstant(number.FromInt64(1))),
	}
	seqs, _, err := e.EvalMultiCell(p, 2, 4)
	if err != nil {
		t.Fatalf("eval multi cell: %v", err)
	}
	if len(seqs) != 3 {
		t.Fatalf("expected 3 cell sequences, got %d", len(seqs))
	}
	if !seqs[0].Equal(sequence.New(0, 1, 2, 3)) {
		t.Fatalf("cell 0 = %v", seqs[0])
	}
	if !seqs[2].Equal(sequence.New(1, 2, 3, 4)) {
		t.Fatalf("cell 2 = %v", seqs[2])
	}
}

func TestCheckOK(t *testing.T) {
	e := New(nil, AllModes, 100000, 1000)
	expected := sequence.New(0, 2, 4, 6, 8)
	status, _ := e.Check(doubleProgram(), expected, 5, mustUID(t, "A000001"))
	if status != OK {
		t.Fatalf("expected OK, got %s", status)
	}
}

func TestCheckError(t *testing.T) {
	e := New(nil, AllModes, 100000, 1000)
	expected := sequence.New(0, 2, 4, 6, 9) // last term wrong
	status, _ := e.Check(doubleProgram(), expected, 5, mustUID(t, "A000002"))
	if status != Error {
		t.Fatalf("expected Error, got %s", status)
	}
}

func TestCheckWarningOnShortRun(t *testing.T) {
	// MaxMemory of 2 makes an indirect write to cell $n fail once n
	// exceeds 2, so terms 0..2 compute but term 3 doesn't.
	e := New(nil, AllModes, 100000, 2)
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, program.NewDirect(1), program.NewDirect(0)),
		program.NewOperation(program.Mov, program.NewIndirect(1), program.NewConstant(number.FromInt64(5))),
		program.NewOperation(program.Mov, program.NewDirect(0), program.NewConstant(number.FromInt64(5))),
	}
	expected := sequence.New(5, 5, 5, 5, 5)
	status, _ := e.Check(p, expected, 2, mustUID(t, "A000003"))
	if status != Warning {
		t.Fatalf("expected Warning, got %s", status)
	}
}

func TestStepsAdd(t *testing.T) {
	var s Steps
	s.Add(3)
	s.Add(1)
	s.Add(5)
	if s.Min != 1 || s.Max != 5 || s.Total != 9 || s.Runs != 3 {
		t.Fatalf("unexpected steps: %+v", s)
	}
}
