package program

import (
	"testing"

	"loda/internal/number"
)

func fib() *Program {
	p := New()
	p.Ops = []Operation{
		NewOperation(Mov, NewDirect(1), NewConstant(number.FromInt64(1))),
		NewOperation(Lpb, NewDirect(0), NewConstant(number.FromInt64(1))),
		NewOperation(Sub, NewDirect(0), NewConstant(number.FromInt64(1))),
		NewOperation(Mov, NewDirect(2), NewDirect(1)),
		NewOperation(Add, NewDirect(1), NewDirect(3)),
		NewOperation(Mov, NewDirect(3), NewDirect(2)),
		NewOperation(Lpe, Operand{}, Operand{}),
		NewOperation(Mov, NewDirect(0), NewDirect(3)),
	}
	return p
}

func TestValidateBalancedLoop(t *testing.T) {
	if err := fib().Validate(); err != nil {
		t.Fatalf("expected valid program, got %v", err)
	}
}

func TestValidateUnbalancedLoop(t *testing.T) {
	p := New()
	p.Ops = []Operation{NewOperation(Lpb, NewDirect(0), NewConstant(number.One))}
	if err := p.Validate(); err == nil {
		t.Fatal("expected unbalanced loop to fail validation")
	}
}

func TestValidateNegativeCellIndex(t *testing.T) {
	p := New()
	p.Ops = []Operation{NewOperation(Mov, NewDirect(-1), NewConstant(number.Zero))}
	if err := p.Validate(); err == nil {
		t.Fatal("expected negative cell index to fail validation")
	}
}

func TestHashIgnoresCommentsAndNops(t *testing.T) {
	a := fib()
	b := fib()
	b.Ops[0].Comment = "initialize $1"
	b.Ops = append([]Operation{NewOperation(Nop, Operand{}, Operand{})}, b.Ops...)
	if a.Hash() != b.Hash() {
		t.Fatal("expected hash to ignore comments and nops")
	}
}

func TestRemoveOps(t *testing.T) {
	p := fib()
	before := p.NumOps(true)
	p.RemoveOps(Mov)
	for _, op := range p.Ops {
		if op.Type == Mov {
			t.Fatal("expected all mov ops removed")
		}
	}
	if p.NumOps(true) >= before {
		t.Fatal("expected fewer operations after removal")
	}
}

func TestMetaLookup(t *testing.T) {
	md := Meta(Trn)
	if md.Short != "trn" || md.Arity != 2 {
		t.Fatalf("unexpected metadata for trn: %+v", md)
	}
	typ, ok := ParseOpType("TRN")
	if !ok || typ != Trn {
		t.Fatal("expected case-insensitive lookup to find trn")
	}
}
