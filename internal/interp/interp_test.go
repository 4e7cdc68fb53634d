package interp

import (
	"fmt"
	"testing"

	"loda/internal/memory"
	"loda/internal/number"
	"loda/internal/program"
)

func runProgram(t *testing.T, p *program.Program, input int64) number.Number {
	t.Helper()
	ip := New(nil)
	mem := memory.New()
	mem.Set(0, number.FromInt64(input))
	if _, err := ip.Run(p, &mem, Options{MaxCycles: 100000, MaxMemory: 1000}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return mem.Get(0)
}

func fibonacciProgram() *program.Program {
	p := program.New()
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	d := program.NewDirect
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
	return p
}

func TestFibonacci(t *testing.T) {
	want := []int64{0, 1, 1, 2, 3, 5, 8, 13, 21, 34}
	p := fibonacciProgram()
	for n, w := range want {
		got := runProgram(t, p, int64(n))
		if !got.Equal(number.FromInt64(w)) {
			t.Fatalf("fib(%d) = %v, want %d", n, got, w)
		}
	}
}

func factorialProgram() *program.Program {
	p := program.New()
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	d := program.NewDirect
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, d(1), c(1)),
		program.NewOperation(program.Lpb, d(0), c(1)),
		program.NewOperation(program.Mul, d(1), d(0)),
		program.NewOperation(program.Sub, d(0), c(1)),
		program.NewOperation(program.Lpe, program.Operand{}, program.Operand{}),
		program.NewOperation(program.Mov, d(0), d(1)),
	}
	return p
}

func TestFactorial(t *testing.T) {
	want := []int64{1, 1, 2, 6, 24, 120, 720}
	p := factorialProgram()
	for n, w := range want {
		got := runProgram(t, p, int64(n))
		if !got.Equal(number.FromInt64(w)) {
			t.Fatalf("fact(%d) = %v, want %d", n, got, w)
		}
	}
}

func TestCycleLimitExceeded(t *testing.T) {
	p := program.New()
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	d := program.NewDirect
	// lpb $0, 1 ; lpe  -- body never decreases $0, so it loops until the
	// cycle bound trips.
	p.Ops = []program.Operation{
		program.NewOperation(program.Lpb, d(0), c(1)),
		program.NewOperation(program.Lpe, program.Operand{}, program.Operand{}),
	}
	ip := New(nil)
	mem := memory.New()
	mem.Set(0, number.FromInt64(5))
	_, err := ip.Run(p, &mem, Options{MaxCycles: 1000, MaxMemory: 1000})
	if err == nil {
		t.Fatal("expected cycle limit error")
	}
}

func TestClearRegion(t *testing.T) {
	p := program.New()
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	d := program.NewDirect
	p.Ops = []program.Operation{program.NewOperation(program.Clr, d(0), c(3))}
	ip := New(nil)
	mem := memory.New()
	mem.Set(0, number.FromInt64(7))
	mem.Set(1, number.FromInt64(8))
	mem.Set(2, number.FromInt64(9))
	if _, err := ip.Run(p, &mem, Options{MaxCycles: -1}); err != nil {
		t.Fatal(err)
	}
	for i := int64(0); i < 3; i++ {
		if !mem.Get(i).Equal(number.Zero) {
			t.Fatalf("expected cell %d cleared, got %v", i, mem.Get(i))
		}
	}
}

type mapLoader map[int64]*program.Program

func (m mapLoader) Load(id int64) (*program.Program, error) {
	if p, ok := m[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no such program id %d", id)
}

func TestSeqCall(t *testing.T) {
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	d := program.NewDirect
	doubler := program.New()
	doubler.Ops = []program.Operation{
		program.NewOperation(program.Mov, d(program.OutputCell), d(program.InputCell)),
		program.NewOperation(program.Add, d(program.OutputCell), d(program.InputCell)),
	}
	loader := mapLoader{42: doubler}

	caller := program.New()
	caller.Ops = []program.Operation{program.NewOperation(program.Seq, d(0), c(42))}

	ip := New(loader)
	mem := memory.New()
	mem.Set(0, number.FromInt64(5))
	if _, err := ip.Run(caller, &mem, Options{MaxCycles: 1000}); err != nil {
		t.Fatal(err)
	}
	if !mem.Get(0).Equal(number.FromInt64(10)) {
		t.Fatalf("seq(42) on 5 = %v, want 10", mem.Get(0))
	}
}
