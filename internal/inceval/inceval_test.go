package inceval

import (
	"testing"

	"loda/internal/interp"
	"loda/internal/number"
	"loda/internal/program"
)

// counterProgram counts loop iterations into OUTPUT_CELL (cell 1): the
// body increments the accumulator once per decrement of the input
// counter, so term(n) = n.
func counterProgram() *program.Program {
	d := program.NewDirect
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	p := program.New()
	p.Ops = []program.Operation{
		program.NewOperation(program.Mov, d(1), c(0)),
		program.NewOperation(program.Lpb, d(0), c(1)),
		program.NewOperation(program.Add, d(1), c(1)),
		program.NewOperation(program.Sub, d(0), c(1)),
		program.NewOperation(program.Lpe, program.Operand{}, program.Operand{}),
	}
	return p
}

func TestInitAcceptsCounterProgram(t *testing.T) {
	ev := New(interp.New(nil))
	if !ev.Init(counterProgram()) {
		t.Fatal("expected counter program to qualify for incremental evaluation")
	}
}

func TestInitRejectsNonSimpleLoop(t *testing.T) {
	d := program.NewDirect
	c := func(v int64) program.Operand { return program.NewConstant(number.FromInt64(v)) }
	p := program.New()
	p.Ops = []program.Operation{program.NewOperation(program.Add, d(0), c(1))}
	ev := New(interp.New(nil))
	if ev.Init(p) {
		t.Fatal("expected a program with no loop to be rejected")
	}
}

func TestNextMatchesCounterSequence(t *testing.T) {
	ev := New(interp.New(nil))
	if !ev.Init(counterProgram()) {
		t.Fatal("expected Init to succeed")
	}
	opts := interp.Options{MaxCycles: 10000, MaxMemory: 1000}
	for n := int64(0); n < 5; n++ {
		got, _, err := ev.Next(opts)
		if err != nil {
			t.Fatalf("Next() at n=%d: %v", n, err)
		}
		if !got.Equal(number.FromInt64(n)) {
			t.Fatalf("Next() at n=%d = %v, want %d", n, got, n)
		}
	}
}
