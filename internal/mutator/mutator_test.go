package mutator

import (
	"testing"

	"loda/internal/number"
	"loda/internal/program"
)

func sampleProgram() *program.Program {
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, program.NewDirect(1), program.NewDirect(0)),
		program.NewOperation(program.Add, program.NewDirect(1), program.NewConstant(number.FromInt64(3))),
	}
	return p
}

func TestMutateRandomTouchesAtMostOneOperation(t *testing.T) {
	m := New(nil)
	p := sampleProgram()
	before := p.Clone()
	m.MutateRandom(p)

	changed := 0
	for i := range p.Ops {
		if !p.Ops[i].Target.Equal(before.Ops[i].Target) || !p.Ops[i].Source.Equal(before.Ops[i].Source) || p.Ops[i].Type != before.Ops[i].Type {
			changed++
		}
	}
	if changed > 1 {
		t.Fatalf("expected MutateRandom to touch at most one operation, got %d", changed)
	}
	if len(p.Ops) != len(before.Ops) {
		t.Fatalf("expected MutateRandom to preserve operation count")
	}
}

func TestMutateRandomSkipsNops(t *testing.T) {
	m := New(nil)
	p := program.New()
	p.Ops = []program.Operation{program.NewOperation(program.Nop, program.Operand{}, program.Operand{})}
	before := p.Clone()
	m.MutateRandom(p)
	if !p.Ops[0].Target.Equal(before.Ops[0].Target) {
		t.Fatalf("expected nop-only program to be left unchanged")
	}
}

func TestMutateConstantsRespectsRateZero(t *testing.T) {
	m := NewWithRate(nil, 0, false)
	p := sampleProgram()
	before := p.Clone()
	m.MutateConstants(p)
	for i := range p.Ops {
		if !p.Ops[i].Source.Equal(before.Ops[i].Source) {
			t.Fatalf("expected zero mutation rate to leave constants untouched")
		}
	}
}

func TestMutateCopiesRandomProducesIndependentClones(t *testing.T) {
	m := New(nil)
	base := sampleProgram()
	copies := m.MutateCopiesRandom(base, 5)
	if len(copies) != 5 {
		t.Fatalf("expected 5 copies, got %d", len(copies))
	}
	if base.Ops[0].Target.CellIndex() != 1 {
		t.Fatalf("expected base program to remain unmodified")
	}
}

func TestMutateCopiesConstants(t *testing.T) {
	m := New(nil)
	base := sampleProgram()
	copies := m.MutateCopiesConstants(base, 3)
	if len(copies) != 3 {
		t.Fatalf("expected 3 copies, got %d", len(copies))
	}
}
