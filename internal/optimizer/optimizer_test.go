package optimizer

import (
	"testing"

	"loda/internal/number"
	"loda/internal/program"
)

func TestFoldConstantsSimple(t *testing.T) {
	d := program.NewDirect
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, d(1), c(2)),
		program.NewOperation(program.Add, d(1), c(3)),
		program.NewOperation(program.Mov, d(0), d(1)),
	}
	out := Optimize(p)
	if !out.Ops[len(out.Ops)-1].Source.IsConstant() {
		t.Fatalf("expected the final mov's source to fold to a constant, got %+v", out.Ops[len(out.Ops)-1])
	}
	if got := out.Ops[len(out.Ops)-1].Source.Value; !got.Equal(number.FromInt64(5)) {
		t.Fatalf("expected folded value 5, got %v", got)
	}
}

func TestRemoveEmptyLoop(t *testing.T) {
	d := program.NewDirect
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, d(0), c(5)),
		program.NewOperation(program.Lpb, d(1), c(1)),
		program.NewOperation(program.Nop, program.Operand{}, program.Operand{}),
		program.NewOperation(program.Lpe, program.Operand{}, program.Operand{}),
	}
	out := removeEmptyLoops(p)
	for _, op := range out.Ops {
		if program.Meta(op.Type).LoopBegin || program.Meta(op.Type).LoopEnd {
			t.Fatal("expected the empty loop to be removed")
		}
	}
}

func TestDeadStoreElimination(t *testing.T) {
	d := program.NewDirect
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, d(2), c(99)), // never read again: dead
		program.NewOperation(program.Mov, d(1), c(7)),
		program.NewOperation(program.Mov, d(program.OutputCell), d(1)),
	}
	out := eliminateDeadStores(p)
	for _, op := range out.Ops {
		if op.Target.IsDirect() && op.Target.CellIndex() == 2 {
			t.Fatal("expected dead store to cell 2 to be removed")
		}
	}
}
