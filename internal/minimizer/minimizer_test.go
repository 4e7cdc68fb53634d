package minimizer

import (
	"testing"

	"loda/internal/interp"
	"loda/internal/memory"
	"loda/internal/number"
	"loda/internal/program"
)

func makeEval() Eval {
	ip := interp.New(nil)
	return func(p *program.Program, numTerms int) ([]number.Number, int64, error) {
		var seq []number.Number
		var total int64
		for n := 0; n < numTerms; n++ {
			mem := memory.New()
			mem.Set(0, number.FromInt64(int64(n)))
			steps, err := ip.Run(p, &mem, interp.Options{MaxCycles: 100000, MaxMemory: 1000})
			if err != nil {
				return nil, 0, err
			}
			total += steps
			seq = append(seq, mem.Get(0))
		}
		return seq, total, nil
	}
}

func constantThreeProgram() *program.Program {
	d := program.NewDirect
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, d(1), c(0)),
		program.NewOperation(program.Add, d(1), c(1)),
		program.NewOperation(program.Add, d(1), c(1)),
		program.NewOperation(program.Add, d(1), c(1)),
		program.NewOperation(program.Mov, d(0), d(1)),
	}
	return p
}

func TestOptimizeAndMinimizeShrinksConstantProgram(t *testing.T) {
	p := constantThreeProgram()
	eval := makeEval()
	result, err := OptimizeAndMinimize(p, eval, 5)
	if err != nil {
		t.Fatal(err)
	}
	seq, _, err := eval(result, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range seq {
		if !v.Equal(number.FromInt64(3)) {
			t.Fatalf("expected constant sequence of 3s, got %v", seq)
		}
	}
	if result.NumOps(false) > len(constantThreeProgram().Ops) {
		t.Fatalf("expected minimized program not to grow: got %d ops", result.NumOps(false))
	}
}

func TestUnrollSmallClear(t *testing.T) {
	d := program.NewDirect
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	p := program.New()
	p.Ops = []program.Operation{program.NewOperation(program.Clr, d(0), c(3))}
	out := unrollSmallClears(p)
	if len(out.Ops) != 3 {
		t.Fatalf("expected 3 unrolled movs, got %d", len(out.Ops))
	}
	for _, op := range out.Ops {
		if op.Type != program.Mov {
			t.Fatalf("expected mov ops after unrolling, got %v", op.Type)
		}
	}
}
