package analyzer

import (
	"testing"

	"loda/internal/number"
	"loda/internal/program"
)

func c(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }

func TestExtractSimpleLoopFibonacci(t *testing.T) {
	d := program.NewDirect
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, d(1), c(1)),
		program.NewOperation(program.Lpb, d(0), c(1)),
		program.NewOperation(program.Sub, d(0), c(1)),
		program.NewOperation(program.Mov, d(2), d(1)),
		program.NewOperation(program.Add, d(1), d(3)),
		program.NewOperation(program.Mov, d(3), d(2)),
		program.NewOperation(program.Lpe, program.Operand{}, program.Operand{}),
		program.NewOperation(program.Mov, d(0), d(3)),
	}
	sl := ExtractSimpleLoop(p)
	if !sl.IsSimpleLoop {
		t.Fatal("expected fibonacci program to be a simple loop")
	}
	if sl.Counter != 0 {
		t.Fatalf("expected counter cell 0, got %d", sl.Counter)
	}
	if len(sl.PreLoop.Ops) != 1 || len(sl.Body.Ops) != 4 || len(sl.PostLoop.Ops) != 1 {
		t.Fatalf("unexpected split: pre=%d body=%d post=%d",
			len(sl.PreLoop.Ops), len(sl.Body.Ops), len(sl.PostLoop.Ops))
	}
}

func TestNotSimpleLoopWithIndirect(t *testing.T) {
	d := program.NewDirect
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Lpb, d(0), c(1)),
		program.NewOperation(program.Mov, program.NewIndirect(0), c(1)),
		program.NewOperation(program.Lpe, program.Operand{}, program.Operand{}),
	}
	if ExtractSimpleLoop(p).IsSimpleLoop {
		t.Fatal("expected indirect operand to disqualify simple loop")
	}
}

func TestHasLogarithmicComplexity(t *testing.T) {
	d := program.NewDirect
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Lpb, d(0), c(1)),
		program.NewOperation(program.Div, d(0), c(2)),
		program.NewOperation(program.Add, d(1), c(1)),
		program.NewOperation(program.Lpe, program.Operand{}, program.Operand{}),
	}
	if !HasLogarithmicComplexity(p) {
		t.Fatal("expected log complexity")
	}
}

func TestHasExponentialComplexity(t *testing.T) {
	d := program.NewDirect
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, d(1), c(2)),
		program.NewOperation(program.Pow, d(1), d(0)),
		program.NewOperation(program.Lpb, d(1), c(1)),
		program.NewOperation(program.Sub, d(1), c(2)),
		program.NewOperation(program.Lpe, program.Operand{}, program.Operand{}),
	}
	if !HasExponentialComplexity(p) {
		t.Fatal("expected exponential complexity")
	}
}
